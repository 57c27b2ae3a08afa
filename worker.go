package fnbridge

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cryguy/fnbridge/internal/bridge"
	"github.com/cryguy/fnbridge/internal/core"
)

// processMu serializes every call made under LockProcess.
var processMu sync.Mutex

// Worker is one engine, one loaded program and one resolved handler.
type Worker struct {
	cfg    Config
	engine core.Engine
	bridge *bridge.Bridge

	mu          sync.Mutex
	initialized bool
	closed      bool

	busy atomic.Bool // LockNone only
}

// NewWorker creates an engine for cfg with the bridge installed. The worker
// is not usable until Initialize succeeds.
func NewWorker(cfg Config) (*Worker, error) {
	cfg = cfg.withDefaults()
	engine, err := newEngine(cfg.engineConfig())
	if err != nil {
		return nil, fmt.Errorf("creating %s engine: %w", Backend, err)
	}
	b, err := bridge.New(engine, bridge.Options{
		Name:     cfg.Name,
		Filename: cfg.Filename,
		Loader:   cfg.Loader,
		Logger:   cfg.Logger,
	})
	if err != nil {
		engine.Close()
		return nil, err
	}
	return &Worker{cfg: cfg, engine: engine, bridge: b}, nil
}

// Load creates a worker and initializes it with source and handler.
func Load(cfg Config, source, handler string) (*Worker, error) {
	w, err := NewWorker(cfg)
	if err != nil {
		return nil, err
	}
	if err := w.Initialize(source, handler); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// Initialize compiles source, runs its top level once and resolves handler.
// A worker is initialized at most once: later calls return an error wrapping
// ErrAlreadyInitialized, whether or not the first call succeeded.
func (w *Worker) Initialize(source, handler string) error {
	unlock := w.lock()
	defer unlock()

	if w.closed {
		return core.NewError(core.KindLoad, core.ErrWorkerClosed)
	}
	if w.initialized {
		return core.NewError(core.KindLoad, core.ErrAlreadyInitialized)
	}
	w.initialized = true

	start := time.Now()
	err := w.bridge.Load(source, handler)
	w.cfg.Metrics.Load(w.cfg.Name, err)
	if err != nil {
		w.cfg.Logger.ErrorWith("Failed to load worker", "worker", w.cfg.Name, "handler", handler, "err", err.Error())
		return err
	}
	w.cfg.Logger.InfoWith("Worker loaded",
		"worker", w.cfg.Name,
		"handler", w.bridge.Handler(),
		"backend", Backend,
		"duration", time.Since(start).String())
	return nil
}

// Name returns the configured worker name.
func (w *Worker) Name() string { return w.cfg.Name }

// Invoke calls the handler with ctx and ev. It never panics and never
// returns nil: every failure is reported through Response.ErrorMessage.
func (w *Worker) Invoke(ctx *Context, ev Event) (resp *Response) {
	unlock, err := w.acquire()
	if err != nil {
		resp = core.ErrorResponse(err)
		w.cfg.Metrics.Begin(w.cfg.Name)(resp)
		return resp
	}
	defer unlock()

	done := w.cfg.Metrics.Begin(w.cfg.Name)
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.cfg.Logger.ErrorWith("Recovered from panic during invocation", "worker", w.cfg.Name, "panic", fmt.Sprint(r))
			resp = core.ErrorResponse(core.NewError(core.KindInvocation, fmt.Errorf("panic during invocation: %v", r)))
		}
		resp.Duration = time.Since(start)
		done(resp)
	}()

	if w.closed {
		return core.ErrorResponse(core.NewError(core.KindInvocation, core.ErrWorkerClosed))
	}
	return w.bridge.Invoke(ctx, ev)
}

// acquire takes the lock selected by the worker's LockMode.
func (w *Worker) acquire() (func(), *core.Error) {
	if w.cfg.LockMode != LockNone {
		return w.lock(), nil
	}
	if w.bridge.InCallback() {
		return nil, core.NewError(core.KindInvocation, fmt.Errorf("%w: called from a logging callback", core.ErrReentrantInvocation))
	}
	if !w.busy.CompareAndSwap(false, true) {
		return nil, core.NewError(core.KindInvocation, fmt.Errorf("%w: worker is busy", core.ErrReentrantInvocation))
	}
	return func() { w.busy.Store(false) }, nil
}

func (w *Worker) lock() func() {
	if w.cfg.LockMode == LockProcess {
		processMu.Lock()
		return processMu.Unlock
	}
	w.mu.Lock()
	return w.mu.Unlock
}

// Close releases the engine. Invoke after Close returns an error response.
// Under LockNone the host must not call Close concurrently with Invoke.
func (w *Worker) Close() {
	unlock := w.lock()
	defer unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.bridge.Close()
	w.engine.Close()
}
