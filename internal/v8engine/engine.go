//go:build v8

// Package v8engine is the V8 engine backend (github.com/tommie/v8go).
package v8engine

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/cryguy/fnbridge/internal/core"
	v8 "github.com/tommie/v8go"
)

// Engine is one V8 isolate with a single context. Not safe for concurrent
// use.
type Engine struct {
	v8Runtime
}

var _ core.Engine = (*Engine)(nil)

// NewEngine creates an isolate and context.
func NewEngine(cfg core.EngineConfig) (core.Engine, error) {
	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	ctx := v8.NewContext(iso)
	return &Engine{v8Runtime: v8Runtime{iso: iso, ctx: ctx}}, nil
}

// RunScript compiles source under filename and runs it once.
func (e *Engine) RunScript(source, filename string) error {
	script, err := e.iso.CompileUnboundScript(source, filename, v8.CompileOptions{})
	if err != nil {
		se := scriptError(err)
		se.Syntax = true
		return se
	}
	if _, err := script.Run(e.ctx); err != nil {
		return scriptError(err)
	}
	e.ctx.PerformMicrotaskCheckpoint()
	return nil
}

// Close disposes the context and isolate.
func (e *Engine) Close() {
	if e.ctx != nil {
		e.ctx.Close()
		e.ctx = nil
	}
	if e.iso != nil {
		e.iso.Dispose()
		e.iso = nil
	}
}

var locationRE = regexp.MustCompile(`:(\d+)(?::(\d+))?$`)

// scriptError converts a *v8.JSError ("Name: message", "file:line:col").
func scriptError(err error) *core.ScriptError {
	se := &core.ScriptError{Message: err.Error()}
	var jsErr *v8.JSError
	if !errors.As(err, &jsErr) {
		return se
	}
	se.Message = jsErr.Message
	se.Stack = jsErr.StackTrace
	if name, msg, ok := strings.Cut(jsErr.Message, ": "); ok && !strings.ContainsAny(name, " \t") {
		se.Name = name
		se.Message = msg
	}
	if m := locationRE.FindStringSubmatch(jsErr.Location); m != nil {
		se.Line, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			se.Column, _ = strconv.Atoi(m[2])
		}
	}
	return se
}
