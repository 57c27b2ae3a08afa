//go:build !v8

package quickjs

import (
	"fmt"
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// executePendingJobs drains the QuickJS job queue. The modernc.org/quickjs
// wrapper never calls JS_ExecutePendingJob, so promise reactions only run
// when we pump them here. Returns the number of jobs run.
func executePendingJobs(vm *quickjs.VM) int {
	rt, tls, err := vmRuntime(vm)
	if err != nil {
		return 0
	}
	count := 0
	for lib.XJS_ExecutePendingJob(tls, rt, 0) > 0 {
		count++
	}
	return count
}

// vmRuntime pulls the unexported cRuntime and tls out of a *quickjs.VM.
//
// Layout (modernc.org/quickjs@v0.17.1):
//
//	type VM struct {
//	    cContext uintptr
//	    ...
//	    runtime  *runtime
//	}
//	type runtime struct {
//	    cRuntime uintptr
//	    tls      *libc.TLS
//	}
func vmRuntime(vm *quickjs.VM) (cRuntime uintptr, tls *libc.TLS, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reading VM runtime: %v", p)
		}
	}()

	rtField := reflect.ValueOf(vm).Elem().FieldByName("runtime")
	if !rtField.IsValid() || rtField.IsNil() {
		return 0, nil, fmt.Errorf("quickjs.VM has no runtime field")
	}
	rtVal := reflect.NewAt(rtField.Type().Elem(), unsafe.Pointer(rtField.Pointer())).Elem()

	cRuntimeField := rtVal.FieldByName("cRuntime")
	if !cRuntimeField.IsValid() {
		return 0, nil, fmt.Errorf("runtime has no cRuntime field")
	}
	tlsField := rtVal.FieldByName("tls")
	if !tlsField.IsValid() || tlsField.IsNil() {
		return 0, nil, fmt.Errorf("runtime has no tls")
	}
	return uintptr(cRuntimeField.Uint()), (*libc.TLS)(unsafe.Pointer(tlsField.Pointer())), nil
}

// vmContext returns the JSContext pointer, the first field of VM.
func vmContext(vm *quickjs.VM) uintptr {
	return *(*uintptr)(unsafe.Pointer(vm))
}
