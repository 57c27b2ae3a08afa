// Package bridge runs guest handlers on a core.Engine: it installs the
// guest shim, loads and resolves the handler, projects events and contexts,
// forwards guest logging and normalizes results. It holds no locks; callers
// serialize access per engine.
package bridge

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cryguy/fnbridge/internal/core"
	"github.com/cryguy/fnbridge/internal/logging"
	"github.com/cryguy/fnbridge/internal/marshal"
	"github.com/cryguy/fnbridge/internal/normalize"
	"github.com/google/uuid"
)

// Options configures a Bridge.
type Options struct {
	Name     string      // worker name, visible to guests as context.worker
	Filename string      // guest file name for stack traces
	Loader   string      // "js" or "ts"
	Logger   core.Logger // worker logger, also used for initContext
}

// Bridge is the guest-facing half of one worker.
type Bridge struct {
	rt     core.Engine
	bt     core.BinaryTransferer
	opts   Options
	logger core.Logger

	// Handles live for one call. A guest may pass any handle number back,
	// so callbacks resolve them only against this bridge's tables and only
	// under the nonce of the call in progress.
	events   core.HandleTable[*eventEntry]
	contexts core.HandleTable[*contextEntry]
	nonce    string

	script  *Script
	handler string
	loaded  bool

	callbacks atomic.Int32
}

// New installs the bridge shim into rt.
func New(rt core.Engine, opts Options) (*Bridge, error) {
	if opts.Filename == "" {
		opts.Filename = DefaultFilename
	}
	b := &Bridge{rt: rt, opts: opts, logger: opts.Logger}
	if b.logger == nil {
		b.logger = logging.Nop()
	}
	if bt, ok := rt.(core.BinaryTransferer); ok {
		b.bt = bt
	}
	if err := b.install(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bridge) install() error {
	funcs := []struct {
		name string
		fn   any
	}{
		{fnEventField, b.eventField},
		{fnEventBody, b.eventBody},
		{fnLog, b.log},
		{fnLogWith, b.logWith},
	}
	for _, f := range funcs {
		if err := b.rt.RegisterFunc(f.name, f.fn); err != nil {
			return fmt.Errorf("registering %s: %w", f.name, err)
		}
	}
	mode := ""
	if b.bt != nil {
		mode = b.bt.BinaryMode()
	}
	if err := b.rt.SetGlobal(globalBinaryMode, mode); err != nil {
		return fmt.Errorf("setting %s: %w", globalBinaryMode, err)
	}
	if err := b.rt.SetGlobal(globalWorkerName, b.opts.Name); err != nil {
		return fmt.Errorf("setting %s: %w", globalWorkerName, err)
	}
	if err := b.rt.RunScript(buildShim(), shimFilename); err != nil {
		return fmt.Errorf("installing bridge shim: %w", err)
	}
	return nil
}

// begin opens a call and returns its nonce.
func (b *Bridge) begin() string {
	b.nonce = uuid.NewString()
	return b.nonce
}

// end closes the call opened by begin, on the guest side as well.
func (b *Bridge) end(nonce string) {
	b.nonce = ""
	if err := b.rt.Eval(fmt.Sprintf("__bridge__.end(%q)", nonce)); err != nil {
		b.logger.WarnWith("Failed to close guest call", "error", err.Error())
	}
}

// active reports whether nonce belongs to the call in progress.
func (b *Bridge) active(nonce string) bool {
	return nonce != "" && nonce == b.nonce
}

// Load runs source once and resolves handlerName in it. A bridge loads at
// most one program; later calls fail with core.ErrAlreadyInitialized.
func (b *Bridge) Load(source, handlerName string) error {
	if b.script != nil {
		return core.NewError(core.KindLoad, core.ErrAlreadyInitialized)
	}
	name, err := ParseHandlerName(handlerName)
	if err != nil {
		return core.NewError(core.KindLoad, err)
	}
	script, err := Prepare(source, b.opts.Filename, b.opts.Loader)
	if err != nil {
		return err
	}
	b.script = script

	if err := b.rt.RunScript(script.Source, script.Filename); err != nil {
		return scriptLoadError(err, script)
	}

	status, err := b.rt.EvalString(fmt.Sprintf("__bridge__.resolve(%q)", name))
	if err != nil {
		return core.NewError(core.KindLoad, fmt.Errorf("resolving handler: %w", err))
	}
	switch status {
	case "ok":
	case "missing":
		return core.NewError(core.KindLoad, fmt.Errorf("%w: can't find %s in code", core.ErrHandlerNotFound, name))
	case "not_callable":
		return core.NewError(core.KindLoad, fmt.Errorf("%w: %s is not a function", core.ErrHandlerNotCallable, name))
	default:
		return core.NewError(core.KindLoad, fmt.Errorf("resolving handler: unexpected status %q", status))
	}
	b.handler = name

	nonce := b.begin()
	defer b.end(nonce)
	out, err := b.call(fmt.Sprintf("__bridge__.init(%q)", nonce))
	if err != nil {
		return core.NewError(core.KindLoad, fmt.Errorf("initContext: %w", err))
	}
	if !out.OK {
		e := core.NewError(core.KindLoad, fmt.Errorf("initContext: %w", exception(out.Error)))
		e.Diagnostic = b.diagnose(out.Error)
		return e
	}

	b.loaded = true
	return nil
}

// Handler is the resolved handler name.
func (b *Bridge) Handler() string { return b.handler }

// Invoke calls the handler with projections of ctx and ev. A nil ev or ctx
// projects the null handle. Every failure is returned as an error response.
func (b *Bridge) Invoke(ctx *core.Context, ev core.Event) *core.Response {
	if !b.loaded {
		return core.ErrorResponse(core.NewError(core.KindLoad, core.ErrNotInitialized))
	}

	var evH, ctxH uint64
	if ev != nil {
		evH = b.events.Register(&eventEntry{event: ev})
		defer b.events.Release(evH)
	}
	if ctx != nil {
		entry := &contextEntry{logger: ctx.Logger}
		if entry.logger == nil {
			entry.logger = b.logger
		}
		ctxH = b.contexts.Register(entry)
		defer b.contexts.Release(ctxH)
	}

	nonce := b.begin()
	defer b.end(nonce)
	out, err := b.call(fmt.Sprintf("__bridge__.invoke(%q, %q, %q)", nonce, core.FormatHandle(ctxH), core.FormatHandle(evH)))
	if err != nil {
		return core.ErrorResponse(core.NewError(core.KindInvocation, err))
	}
	if !out.OK {
		e := core.NewError(core.KindInvocation, exception(out.Error))
		e.Diagnostic = b.diagnose(out.Error)
		return core.ErrorResponse(e)
	}
	if b.bt != nil && out.Value != nil {
		if err := out.Value.ResolveTransferred(func() ([]byte, error) {
			return b.bt.ReadBinaryFromJS(bytesOutSlot)
		}); err != nil {
			return core.ErrorResponse(core.NewError(core.KindMarshal, err))
		}
	}
	return normalize.Normalize(out.Value, b.logger)
}

// call evaluates a shim entry point and settles a returned promise by
// draining the microtask queue.
func (b *Bridge) call(js string) (*marshal.Outcome, error) {
	s, err := b.rt.EvalString(js)
	if err != nil {
		return nil, err
	}
	out, err := marshal.DecodeOutcome(s)
	if err != nil {
		return nil, err
	}
	if !out.Pending {
		return out, nil
	}

	b.rt.RunMicrotasks()
	s, err = b.rt.EvalString("__bridge__.settle()")
	if err != nil {
		return nil, err
	}
	if out, err = marshal.DecodeOutcome(s); err != nil {
		return nil, err
	}
	if !out.OK && out.Pending {
		return nil, core.ErrPromiseNotSettled
	}
	return out, nil
}

func (b *Bridge) diagnose(ge *marshal.GuestError) *core.Diagnostic {
	if ge == nil {
		return nil
	}
	return diagnose(ge.Name, ge.Message, ge.Stack, ge.Line, ge.Column, b.script)
}

func exception(ge *marshal.GuestError) error {
	if ge == nil {
		return errors.New("unknown guest exception")
	}
	return &core.ExceptionError{Name: ge.Name, Message: ge.Message}
}

// Close stops further invocations. The engine is owned by the caller.
func (b *Bridge) Close() {
	b.loaded = false
}
