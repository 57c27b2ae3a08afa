package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// Context is the host side of the guest-visible context object.
// A nil Logger falls back to the worker logger.
type Context struct {
	Logger Logger
}

// MemoryEvent is an Event backed by plain fields. Triggers build one per
// request; tests use it directly.
type MemoryEvent struct {
	EventID      string
	EventVersion int
	Trigger      string // trigger class
	Kind         string // trigger kind
	Type         string // content type
	Data         []byte
	HeaderMap    map[string]any
	FieldMap     map[string]any
	Time         time.Time
	EventPath    string
	EventURL     string
	EventMethod  string
	Shard        int
	Shards       int
}

var _ Event = (*MemoryEvent)(nil)

func (e *MemoryEvent) ID() string              { return e.EventID }
func (e *MemoryEvent) Version() int            { return e.EventVersion }
func (e *MemoryEvent) Size() int               { return len(e.Data) }
func (e *MemoryEvent) TriggerClass() string    { return e.Trigger }
func (e *MemoryEvent) TriggerKind() string     { return e.Kind }
func (e *MemoryEvent) ContentType() string     { return e.Type }
func (e *MemoryEvent) Body() []byte            { return e.Data }
func (e *MemoryEvent) Headers() map[string]any { return e.HeaderMap }
func (e *MemoryEvent) Fields() map[string]any  { return e.FieldMap }
func (e *MemoryEvent) Timestamp() time.Time    { return e.Time }
func (e *MemoryEvent) Path() string            { return e.EventPath }
func (e *MemoryEvent) URL() string             { return e.EventURL }
func (e *MemoryEvent) Method() string          { return e.EventMethod }
func (e *MemoryEvent) ShardID() int            { return e.Shard }
func (e *MemoryEvent) NumShards() int          { return e.Shards }

// Response is the canonical result of one invocation. When ErrorMessage is
// set the call failed and the remaining fields carry no meaning.
//
// Body is owned by the response until Free is called; after that the host
// must not touch it.
type Response struct {
	Body         []byte
	ContentType  string
	StatusCode   int
	Headers      map[string]string
	ErrorMessage string

	// Err is the structured form of ErrorMessage.
	Err *Error

	// Duration is the wall time spent inside the worker.
	Duration time.Duration

	freed  atomic.Bool
	pooled *[]byte
}

// Failed reports whether the invocation produced an error response.
func (r *Response) Failed() bool {
	return r.ErrorMessage != ""
}

// Free releases the buffers owned by r. It must be called at most once;
// a second call returns ErrAlreadyFreed and does nothing.
func (r *Response) Free() error {
	if !r.freed.CompareAndSwap(false, true) {
		return ErrAlreadyFreed
	}
	if r.pooled != nil {
		*r.pooled = (*r.pooled)[:0]
		bodyPool.Put(r.pooled)
		r.pooled = nil
	}
	r.Body = nil
	r.Headers = nil
	return nil
}

// Freed reports whether Free has been called.
func (r *Response) Freed() bool {
	return r.freed.Load()
}

const maxPooledBody = 64 << 10

var bodyPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 4096)
		return &b
	},
}

// SetBody copies data into a buffer owned by r.
func (r *Response) SetBody(data []byte) {
	if data == nil {
		r.Body = nil
		return
	}
	if len(data) > maxPooledBody {
		r.Body = append([]byte(nil), data...)
		return
	}
	buf := bodyPool.Get().(*[]byte)
	*buf = append((*buf)[:0], data...)
	r.pooled = buf
	r.Body = *buf
}

// ErrorResponse builds a failed response from err.
func ErrorResponse(err *Error) *Response {
	return &Response{ErrorMessage: err.Error(), Err: err}
}
