//go:build v8

package v8engine

import (
	"fmt"
	"math"
	"reflect"

	"github.com/cryguy/fnbridge/internal/core"
	v8 "github.com/tommie/v8go"
)

// evalFilename names every internal eval in stack traces.
const evalFilename = "bridge_eval.js"

// v8Runtime implements core.JSRuntime on one isolate and context.
type v8Runtime struct {
	iso *v8.Isolate
	ctx *v8.Context
}

var _ core.JSRuntime = (*v8Runtime)(nil)
var _ core.BinaryTransferer = (*v8Runtime)(nil)

func (r *v8Runtime) run(js string) (*v8.Value, error) {
	return r.ctx.RunScript(js, evalFilename)
}

// Eval evaluates JavaScript and discards the result.
func (r *v8Runtime) Eval(js string) error {
	_, err := r.run(js)
	return err
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *v8Runtime) EvalString(js string) (string, error) {
	val, err := r.run(js)
	if err != nil || val == nil {
		return "", err
	}
	return val.String(), nil
}

// RegisterFunc exposes fn as a global function through a FunctionTemplate.
// fn may return nothing, T, or (T, error); a non-nil error is thrown as
// "calling <name>: <message>". Arguments and results may be string, int,
// int64, float64 or bool.
func (r *v8Runtime) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}
	if fnType.NumOut() > 2 {
		return fmt.Errorf("RegisterFunc: %s returns %d values", name, fnType.NumOut())
	}

	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < fnType.NumIn() {
			r.throw(fmt.Sprintf("%s requires %d argument(s), got %d", name, fnType.NumIn(), len(args)))
			return nil
		}
		in := make([]reflect.Value, fnType.NumIn())
		for i := range in {
			in[i] = jsToGo(args[i], fnType.In(i))
		}
		out := fnVal.Call(in)
		switch len(out) {
		case 0:
			return nil
		case 2:
			if !out[1].IsNil() {
				r.throw(fmt.Sprintf("calling %s: %s", name, out[1].Interface().(error).Error()))
				return nil
			}
		}
		return goToJS(r.iso, out[0])
	})
	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

func (r *v8Runtime) throw(msg string) {
	v, _ := v8.NewValue(r.iso, msg)
	r.iso.ThrowException(v)
}

// SetGlobal sets a global variable to a string, number or bool.
func (r *v8Runtime) SetGlobal(name string, value any) error {
	v := goToJS(r.iso, reflect.ValueOf(value))
	if v == nil {
		return fmt.Errorf("setting %q: unsupported type %T", name, value)
	}
	return r.ctx.Global().Set(name, v)
}

// RunMicrotasks runs a microtask checkpoint.
func (r *v8Runtime) RunMicrotasks() {
	r.ctx.PerformMicrotaskCheckpoint()
}

// BinaryMode returns "sab": buffers cross as SharedArrayBuffers whose
// backing store Go can read and write directly.
func (r *v8Runtime) BinaryMode() string { return "sab" }

// ReadBinaryFromJS copies the SharedArrayBuffer at globalName and deletes
// the global.
func (r *v8Runtime) ReadBinaryFromJS(globalName string) ([]byte, error) {
	defer func() {
		_, _ = r.run(fmt.Sprintf("delete globalThis[%q];", globalName))
	}()
	val, err := r.ctx.Global().Get(globalName)
	if err != nil {
		return nil, fmt.Errorf("retrieving %s: %w", globalName, err)
	}
	data, release, err := val.SharedArrayBufferGetContents()
	if err != nil {
		return nil, fmt.Errorf("reading SharedArrayBuffer %s: %w", globalName, err)
	}
	defer release()
	if len(data) == 0 {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// WriteBinaryToJS allocates a SharedArrayBuffer at globalName and fills it
// from data.
func (r *v8Runtime) WriteBinaryToJS(globalName string, data []byte) error {
	if _, err := r.run(fmt.Sprintf("globalThis[%q] = new SharedArrayBuffer(%d);", globalName, len(data))); err != nil {
		return fmt.Errorf("allocating SharedArrayBuffer: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	val, err := r.ctx.Global().Get(globalName)
	if err != nil {
		return fmt.Errorf("retrieving %s: %w", globalName, err)
	}
	buf, release, err := val.SharedArrayBufferGetContents()
	if err != nil {
		return fmt.Errorf("writing SharedArrayBuffer %s: %w", globalName, err)
	}
	copy(buf, data)
	release()
	return nil
}

func jsToGo(val *v8.Value, t reflect.Type) reflect.Value {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(val.String())
	case reflect.Int:
		return reflect.ValueOf(int(val.Integer()))
	case reflect.Int64:
		return reflect.ValueOf(val.Integer())
	case reflect.Float64:
		return reflect.ValueOf(val.Number())
	case reflect.Bool:
		return reflect.ValueOf(val.Boolean())
	default:
		return reflect.Zero(t)
	}
}

func goToJS(iso *v8.Isolate, val reflect.Value) *v8.Value {
	var (
		v   *v8.Value
		err error
	)
	switch val.Kind() {
	case reflect.String:
		v, err = v8.NewValue(iso, val.String())
	case reflect.Int, reflect.Int32, reflect.Int64:
		v, err = intValue(iso, val.Int())
	case reflect.Float32, reflect.Float64:
		v, err = v8.NewValue(iso, val.Float())
	case reflect.Bool:
		v, err = v8.NewValue(iso, val.Bool())
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return v
}

func intValue(iso *v8.Isolate, n int64) (*v8.Value, error) {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return v8.NewValue(iso, int32(n))
	}
	return v8.NewValue(iso, float64(n))
}
