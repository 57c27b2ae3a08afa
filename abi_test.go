package fnbridge

import (
	"errors"
	"testing"
)

func TestHandleLifecycle(t *testing.T) {
	res := InitializeHandle(testCfg(), `function handler(c, e) { return "abi:" + e.body; }`, "handler")
	if res.ErrorMessage != "" || res.Worker == 0 {
		t.Fatalf("InitializeHandle = %+v", res)
	}

	r := InvokeHandle(res.Worker, &Context{}, textEvent("x"))
	assertOK(t, r, 200, "text/plain", "abi:x")
	if err := FreeResponse(r); err != nil {
		t.Fatalf("FreeResponse: %v", err)
	}
	if r.Body != nil || !r.Freed() {
		t.Error("response still holds its body after FreeResponse")
	}
	if err := FreeResponse(r); !errors.Is(err, ErrAlreadyFreed) {
		t.Errorf("second FreeResponse = %v, want ErrAlreadyFreed", err)
	}

	if err := DestroyHandle(res.Worker); err != nil {
		t.Fatalf("DestroyHandle: %v", err)
	}
	if err := DestroyHandle(res.Worker); !errors.Is(err, ErrUnknownWorker) {
		t.Errorf("second DestroyHandle = %v", err)
	}
	r = InvokeHandle(res.Worker, &Context{}, textEvent("x"))
	if !r.Failed() || r.Err.Kind != KindHandle || !errors.Is(r.Err, ErrUnknownWorker) {
		t.Errorf("invoke after destroy = %+v", r)
	}
}

func TestInitializeHandle_Error(t *testing.T) {
	res := InitializeHandle(testCfg(), "var x = ;", "handler")
	if res.Worker != 0 || res.ErrorMessage == "" {
		t.Fatalf("InitializeHandle = %+v", res)
	}
}

func TestInvokeHandle_Zero(t *testing.T) {
	r := InvokeHandle(0, &Context{}, textEvent(""))
	if !errors.Is(r.Err, ErrUnknownWorker) {
		t.Errorf("got %+v", r)
	}
}

func TestFreeResponse_Nil(t *testing.T) {
	if err := FreeResponse(nil); err != nil {
		t.Error(err)
	}
}
