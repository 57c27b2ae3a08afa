// Package trigger holds what the HTTP and WebSocket triggers share: the
// invoker they dispatch to and event construction.
package trigger

import (
	"context"
	"time"

	"github.com/cryguy/fnbridge/internal/core"
	"github.com/google/uuid"
)

// Invoker runs one event. *fnbridge.Pool implements it.
type Invoker interface {
	Invoke(ctx context.Context, hostCtx *core.Context, ev core.Event) (*core.Response, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, hostCtx *core.Context, ev core.Event) (*core.Response, error)

func (f InvokerFunc) Invoke(ctx context.Context, hostCtx *core.Context, ev core.Event) (*core.Response, error) {
	return f(ctx, hostCtx, ev)
}

// Trigger classes and kinds reported to guests.
const (
	ClassSync     = "sync"
	KindHTTP      = "http"
	KindWebSocket = "websocket"
)

// NewEvent builds an event with a fresh id and the current time.
func NewEvent(kind string) *core.MemoryEvent {
	return &core.MemoryEvent{
		EventID:      uuid.NewString(),
		EventVersion: 1,
		Trigger:      ClassSync,
		Kind:         kind,
		Time:         time.Now(),
		HeaderMap:    map[string]any{},
		FieldMap:     map[string]any{},
	}
}
