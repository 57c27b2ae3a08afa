package core

// Engine is one embedded JavaScript engine instance (QuickJS or V8) with an
// isolated global scope. The root package picks the implementation with
// build tags; everything above the engine only talks to this interface.
type Engine interface {
	JSRuntime

	// RunScript compiles source as a classic script and runs its top level.
	// filename is used for stack traces where the engine supports it.
	// Failures are returned as *ScriptError.
	RunScript(source, filename string) error

	// Close releases the engine. The engine must not be used afterwards.
	Close()
}

// EngineFactory creates a fresh engine for one worker.
type EngineFactory func(cfg EngineConfig) (Engine, error)

// ScriptError is an exception or syntax error reported by the engine while
// running a script outside the guarded invocation path.
type ScriptError struct {
	Name    string
	Message string
	Stack   string
	Line    int
	Column  int
	Syntax  bool
}

func (e *ScriptError) Error() string {
	if e.Name != "" {
		return e.Name + ": " + e.Message
	}
	return e.Message
}
