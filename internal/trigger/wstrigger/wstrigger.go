// Package wstrigger serves a WebSocket endpoint where every message is one
// invocation and the response body is sent back as one message.
package wstrigger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/cryguy/fnbridge/internal/core"
	"github.com/cryguy/fnbridge/internal/logging"
	"github.com/cryguy/fnbridge/internal/trigger"
	"go.uber.org/zap"
)

const maxMessageBytes = 1 << 20

// Handler accepts WebSocket connections.
type Handler struct {
	inv trigger.Invoker
	log *zap.Logger

	// AcceptOptions is passed to websocket.Accept.
	AcceptOptions *websocket.AcceptOptions
}

func New(inv trigger.Invoker, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{inv: inv, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.AcceptOptions)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageBytes)

	if err := h.serve(r.Context(), conn, r); err != nil {
		h.log.Debug("WebSocket closed", zap.Error(err))
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) serve(ctx context.Context, conn *websocket.Conn, r *http.Request) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}

		ev := newEvent(r, typ, data)
		reqLog := h.log.With(zap.String("event_id", ev.EventID))
		resp, err := h.inv.Invoke(ctx, &core.Context{Logger: logging.New(reqLog)}, ev)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			if werr := writeError(ctx, conn, err.Error()); werr != nil {
				return werr
			}
			continue
		}
		err = h.reply(ctx, conn, typ, resp)
		_ = resp.Free()
		if err != nil {
			return err
		}
	}
}

func (h *Handler) reply(ctx context.Context, conn *websocket.Conn, typ websocket.MessageType, resp *core.Response) error {
	if resp.Failed() {
		h.log.Error("Invocation failed", zap.String("error", resp.ErrorMessage))
		return writeError(ctx, conn, resp.ErrorMessage)
	}
	return conn.Write(ctx, typ, resp.Body)
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) error {
	b, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

func newEvent(r *http.Request, typ websocket.MessageType, data []byte) *core.MemoryEvent {
	ev := trigger.NewEvent(trigger.KindWebSocket)
	ev.Data = data
	ev.Type = "text/plain"
	if typ == websocket.MessageBinary {
		ev.Type = "application/octet-stream"
	}
	ev.EventPath = r.URL.Path
	ev.EventURL = r.URL.String()
	ev.EventMethod = r.Method
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			ev.FieldMap[k] = v[0]
		}
	}
	return ev
}
