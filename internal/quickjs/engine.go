//go:build !v8

// Package quickjs is the QuickJS engine backend (modernc.org/quickjs).
package quickjs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cryguy/fnbridge/internal/core"
	"modernc.org/quickjs"
)

// Engine is one QuickJS VM. Not safe for concurrent use.
type Engine struct {
	qjsRuntime
}

var _ core.Engine = (*Engine)(nil)

// NewEngine creates a VM with its own runtime and global scope.
func NewEngine(cfg core.EngineConfig) (core.Engine, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimitMB) * 1024 * 1024)
	}
	e := &Engine{qjsRuntime: qjsRuntime{vm: vm}}
	e.initBinaryTransfer()
	return e, nil
}

// RunScript evaluates source in the global scope and drains any jobs its
// top level queued. QuickJS does not take a file name through the Go
// wrapper, so filename is unused.
func (e *Engine) RunScript(source, filename string) error {
	v, err := e.vm.EvalValue(source, quickjs.EvalGlobal)
	if err != nil {
		return scriptError(err)
	}
	v.Free()
	executePendingJobs(e.vm)
	return nil
}

// Close frees the VM.
func (e *Engine) Close() {
	if e.vm != nil {
		e.vm.Close()
		e.vm = nil
	}
}

var (
	errorNameRE = regexp.MustCompile(`^[A-Z][A-Za-z]*Error$`)
	lineRE      = regexp.MustCompile(`:(\d+)(?::(\d+))?\)?\s*$`)
)

// scriptError splits a QuickJS exception string ("Name: message\n  at ...")
// into its parts.
func scriptError(err error) *core.ScriptError {
	first, rest, _ := strings.Cut(err.Error(), "\n")
	se := &core.ScriptError{Message: first, Stack: strings.TrimRight(rest, "\n")}
	if name, msg, ok := strings.Cut(first, ": "); ok && errorNameRE.MatchString(name) {
		se.Name = name
		se.Message = msg
	}
	se.Syntax = se.Name == "SyntaxError"
	for _, l := range strings.Split(se.Stack, "\n") {
		m := lineRE.FindStringSubmatch(strings.TrimSpace(l))
		if m == nil {
			continue
		}
		se.Line, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			se.Column, _ = strconv.Atoi(m[2])
		}
		break
	}
	return se
}
