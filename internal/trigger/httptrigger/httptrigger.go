// Package httptrigger turns HTTP requests into events and writes the
// normalized responses back.
package httptrigger

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cryguy/fnbridge/internal/core"
	"github.com/cryguy/fnbridge/internal/logging"
	"github.com/cryguy/fnbridge/internal/trigger"
	"github.com/go-chi/chi/v5"
	chimd "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const defaultMaxBody = 10 << 20

type Options struct {
	Logger       *zap.Logger
	Metrics      http.Handler // served at /metrics when set
	WebSocket    http.Handler // served at /ws when set
	JWTSecret    string       // enables bearer auth on function routes
	Issuer       string
	Compress     bool // brotli when the client accepts br
	MaxBodyBytes int64
}

// NewRouter routes every path except /healthz, /metrics and /ws to inv.
func NewRouter(inv trigger.Invoker, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	h := &handler{inv: inv, opts: opts, log: opts.Logger}

	r := chi.NewRouter()
	r.Use(chimd.RequestID, chimd.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Group(func(r chi.Router) {
		if opts.JWTSecret != "" {
			r.Use(bearerAuth(opts.JWTSecret, opts.Issuer, opts.Logger))
		}
		if opts.WebSocket != nil {
			r.Handle("/ws", opts.WebSocket)
		}
		r.HandleFunc("/*", h.serve)
	})
	return r
}

// NewServer wraps h in an http.Server, accepting cleartext HTTP/2 when
// enableH2C is set.
func NewServer(addr string, h http.Handler, enableH2C bool, readTimeout, writeTimeout time.Duration) *http.Server {
	if enableH2C {
		h = h2c.NewHandler(h, &http2.Server{})
	}
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

type handler struct {
	inv  trigger.Invoker
	opts Options
	log  *zap.Logger
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.opts.MaxBodyBytes+1))
	if err != nil {
		http.Error(w, "reading request body", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > h.opts.MaxBodyBytes {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	ev := NewEvent(r, body)
	reqLog := h.log.With(zap.String("event_id", ev.EventID), zap.String("request_id", chimd.GetReqID(r.Context())))
	resp, err := h.inv.Invoke(r.Context(), &core.Context{Logger: logging.New(reqLog)}, ev)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, core.ErrWorkerClosed) {
			status = http.StatusGone
		}
		reqLog.Warn("Invocation not dispatched", zap.Error(err))
		http.Error(w, err.Error(), status)
		return
	}
	defer func() { _ = resp.Free() }()

	if resp.Failed() {
		reqLog.Error("Invocation failed", zap.String("error", resp.ErrorMessage))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, resp.ErrorMessage)
		return
	}
	h.write(w, r, resp)
}

func (h *handler) write(w http.ResponseWriter, r *http.Request, resp *core.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	if !h.opts.Compress || len(resp.Body) == 0 || !acceptsBrotli(r) {
		w.WriteHeader(status)
		_, _ = w.Write(resp.Body)
		return
	}
	w.Header().Set("Content-Encoding", "br")
	w.Header().Add("Vary", "Accept-Encoding")
	w.Header().Del("Content-Length")
	w.WriteHeader(status)
	bw := brotli.NewWriter(w)
	if _, err := bw.Write(resp.Body); err != nil {
		h.log.Warn("Writing compressed body", zap.Error(err))
	}
	_ = bw.Close()
}

func acceptsBrotli(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(enc, "br") {
			return true
		}
	}
	return false
}

// NewEvent maps r to an event. Multi-valued headers and query parameters
// are joined with ", ".
func NewEvent(r *http.Request, body []byte) *core.MemoryEvent {
	ev := trigger.NewEvent(trigger.KindHTTP)
	ev.Type = r.Header.Get("Content-Type")
	ev.Data = body
	ev.EventPath = r.URL.Path
	ev.EventURL = r.URL.String()
	ev.EventMethod = r.Method
	for k, v := range r.Header {
		ev.HeaderMap[k] = strings.Join(v, ", ")
	}
	for k, v := range r.URL.Query() {
		ev.FieldMap[k] = strings.Join(v, ", ")
	}
	if sub, ok := subjectFrom(r.Context()); ok {
		ev.FieldMap["auth_subject"] = sub
	}
	return ev
}
