package wstrigger

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/cryguy/fnbridge"
	"github.com/cryguy/fnbridge/internal/core"
	"github.com/cryguy/fnbridge/internal/trigger"
)

func dial(t *testing.T, h *Handler, query string) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func TestEchoThroughPool(t *testing.T) {
	src := `function handler(context, event) {
  if (event.body === "fail") throw new Error("asked to fail");
  return event.trigger_kind + ":" + event.body + ":" + event.fields.room;
}`
	pool, err := fnbridge.NewPool(fnbridge.Config{Name: "ws"}, 1, src, "handler")
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	conn, ctx := dial(t, New(pool, nil), "?room=a")

	if err := conn.Write(ctx, websocket.MessageText, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.MessageText || string(data) != "websocket:hello:a" {
		t.Errorf("got %v %q", typ, data)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("fail")); err != nil {
		t.Fatal(err)
	}
	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var msg map[string]string
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("error frame %q: %v", data, err)
	}
	if !strings.Contains(msg["error"], "asked to fail") {
		t.Errorf("error = %q", msg["error"])
	}

	// The connection survives a failed invocation.
	if err := conn.Write(ctx, websocket.MessageText, []byte("again")); err != nil {
		t.Fatal(err)
	}
	if _, data, err = conn.Read(ctx); err != nil || string(data) != "websocket:again:a" {
		t.Errorf("after failure: %q %v", data, err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func TestBinaryMessage(t *testing.T) {
	inv := trigger.InvokerFunc(func(_ context.Context, _ *core.Context, ev core.Event) (*core.Response, error) {
		if ev.ContentType() != "application/octet-stream" {
			t.Errorf("content type = %q", ev.ContentType())
		}
		r := &core.Response{StatusCode: 200}
		r.SetBody(append([]byte{0xff}, ev.Body()...))
		return r, nil
	})
	conn, ctx := dial(t, New(inv, nil), "")
	if err := conn.Write(ctx, websocket.MessageBinary, []byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if typ != websocket.MessageBinary || string(data) != string([]byte{0xff, 1, 2}) {
		t.Errorf("got %v %v", typ, data)
	}
}
