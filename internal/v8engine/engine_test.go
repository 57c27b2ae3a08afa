//go:build v8

package v8engine

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/cryguy/fnbridge/internal/core"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(core.EngineConfig{MemoryLimitMB: 64})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e.(*Engine)
}

func TestRunScriptDefinesGlobals(t *testing.T) {
	e := newTestEngine(t)
	if err := e.RunScript("var answer = 6 * 7;", "t.js"); err != nil {
		t.Fatal(err)
	}
	got, err := e.EvalString("answer")
	if err != nil || got != "42" {
		t.Fatalf("answer = %q, %v", got, err)
	}
}

func TestRunScriptException(t *testing.T) {
	e := newTestEngine(t)
	err := e.RunScript("\nthrow new TypeError('bad thing');", "t.js")
	var se *core.ScriptError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want ScriptError", err)
	}
	if se.Syntax {
		t.Error("runtime exception reported as syntax error")
	}
	if !strings.Contains(se.Message, "bad thing") {
		t.Errorf("Message = %q", se.Message)
	}
	if se.Line != 2 {
		t.Errorf("Line = %d, want 2", se.Line)
	}
}

func TestRunScriptSyntaxError(t *testing.T) {
	e := newTestEngine(t)
	err := e.RunScript("function (", "t.js")
	var se *core.ScriptError
	if !errors.As(err, &se) || !se.Syntax {
		t.Fatalf("err = %v, want syntax ScriptError", err)
	}
}

func TestRegisterFuncError(t *testing.T) {
	e := newTestEngine(t)
	err := e.RegisterFunc("fail", func(s string) (string, error) {
		return "", errors.New("nope " + s)
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := e.EvalString("(function(){ try { fail('x'); return 'no'; } catch (e) { return String(e); } })()")
	if err != nil {
		t.Fatal(err)
	}
	if got != "calling fail: nope x" {
		t.Errorf("got %q", got)
	}
}

func TestRegisterFuncLargeInt(t *testing.T) {
	e := newTestEngine(t)
	if err := e.RegisterFunc("big", func() int64 { return 1 << 40 }); err != nil {
		t.Fatal(err)
	}
	got, err := e.EvalString("String(big() === 1099511627776)")
	if err != nil || got != "true" {
		t.Fatalf("big() lost precision: %v", err)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	in := []byte{0, 1, 2, 254, 255}
	if err := e.WriteBinaryToJS("__buf", in); err != nil {
		t.Fatal(err)
	}
	if err := e.Eval("globalThis.__out = new SharedArrayBuffer(__buf.byteLength); new Uint8Array(__out).set(new Uint8Array(__buf));"); err != nil {
		t.Fatal(err)
	}
	out, err := e.ReadBinaryFromJS("__out")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("got %v, want %v", out, in)
	}
	gone, _ := e.EvalString("typeof globalThis.__out")
	if gone != "undefined" {
		t.Error("ReadBinaryFromJS left the global in place")
	}
}

func TestMicrotasks(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Eval("var done = false; Promise.resolve().then(function(){ done = true; });"); err != nil {
		t.Fatal(err)
	}
	e.RunMicrotasks()
	done, _ := e.EvalString("String(done)")
	if done != "true" {
		t.Error("microtask did not run")
	}
}

func TestSetGlobal(t *testing.T) {
	e := newTestEngine(t)
	if err := e.SetGlobal("__name", "fn-1"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetGlobal("__n", int64(1)<<40); err != nil {
		t.Fatal(err)
	}
	got, err := e.EvalString("__name + ':' + (__n === 1099511627776)")
	if err != nil || got != "fn-1:true" {
		t.Fatalf("globals = %q, %v", got, err)
	}
	if err := e.SetGlobal("__bad", []string{"x"}); err == nil {
		t.Error("expected error for a non-scalar value")
	}
}
