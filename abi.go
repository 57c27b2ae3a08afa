package fnbridge

import "github.com/cryguy/fnbridge/internal/core"

// Handle-based surface for hosts that keep workers behind opaque integers.

var workers core.HandleTable[*Worker]

// InitResult is the outcome of InitializeHandle. Worker is 0 when
// ErrorMessage is set.
type InitResult struct {
	Worker       uint64
	ErrorMessage string
}

// InitializeHandle loads a worker and returns its handle.
func InitializeHandle(cfg Config, source, handler string) InitResult {
	w, err := Load(cfg, source, handler)
	if err != nil {
		return InitResult{ErrorMessage: err.Error()}
	}
	return InitResult{Worker: workers.Register(w)}
}

// InvokeHandle invokes the worker behind handle.
func InvokeHandle(handle uint64, ctx *Context, ev Event) *Response {
	w, ok := workers.Get(handle)
	if !ok {
		return core.ErrorResponse(core.NewError(core.KindHandle, ErrUnknownWorker))
	}
	return w.Invoke(ctx, ev)
}

// DestroyHandle closes the worker behind handle and invalidates it.
func DestroyHandle(handle uint64) error {
	w, ok := workers.Release(handle)
	if !ok {
		return ErrUnknownWorker
	}
	w.Close()
	return nil
}

// FreeResponse releases resp's buffers. Each response must be freed once;
// a second call returns ErrAlreadyFreed.
func FreeResponse(resp *Response) error {
	if resp == nil {
		return nil
	}
	return resp.Free()
}
