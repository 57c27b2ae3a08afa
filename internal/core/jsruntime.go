package core

// JSRuntime is the engine surface the shared bridge code in internal/bridge
// is written against. V8 and QuickJS both implement it.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// Arguments and results are limited to string, int, float64 and bool.
	// A non-nil error result makes the JS call throw "calling <name>: <err>".
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable on the JS context to a string,
	// number or bool.
	SetGlobal(name string, value any) error

	// RunMicrotasks drains the microtask queue.
	// V8: PerformMicrotaskCheckpoint, QuickJS: ExecutePendingJob loop.
	RunMicrotasks()
}

// BinaryTransferer moves byte buffers between Go and JS without a JSON
// round trip. V8 uses SharedArrayBuffer; QuickJS copies through the
// libquickjs ArrayBuffer API.
type BinaryTransferer interface {
	// ReadBinaryFromJS reads the buffer stored at the given global and
	// deletes the global.
	ReadBinaryFromJS(globalName string) ([]byte, error)

	// WriteBinaryToJS stores a copy of data as an ArrayBuffer at the given
	// global.
	WriteBinaryToJS(globalName string, data []byte) error

	// BinaryMode is "sab" for SharedArrayBuffer (V8) or "ab" for
	// ArrayBuffer (QuickJS).
	BinaryMode() string
}
