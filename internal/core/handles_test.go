package core

import (
	"sync"
	"testing"
)

func TestHandleTableNullSentinel(t *testing.T) {
	var tbl HandleTable[string]
	if _, ok := tbl.Get(0); ok {
		t.Fatal("handle 0 resolved")
	}
	if _, ok := tbl.Release(0); ok {
		t.Fatal("handle 0 released")
	}
}

func TestHandleTableLifecycle(t *testing.T) {
	var tbl HandleTable[string]
	h := tbl.Register("event")
	if h == 0 {
		t.Fatal("Register returned the null handle")
	}
	v, ok := tbl.Get(h)
	if !ok || v != "event" {
		t.Fatalf("Get = %q, %v", v, ok)
	}
	if v, ok := tbl.Release(h); !ok || v != "event" {
		t.Fatalf("Release = %q, %v", v, ok)
	}
	if _, ok := tbl.Get(h); ok {
		t.Fatal("stale handle still resolves")
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len = %d, want 0", tbl.Len())
	}
}

func TestHandleTableConcurrentRegister(t *testing.T) {
	var tbl HandleTable[int]
	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := tbl.Register(i)
			if _, dup := seen.LoadOrStore(h, i); dup {
				t.Errorf("duplicate handle %d", h)
			}
		}(i)
	}
	wg.Wait()
	if tbl.Len() != 64 {
		t.Fatalf("Len = %d, want 64", tbl.Len())
	}
}

func TestParseHandle(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"", 0, false},
		{"undefined", 0, false},
		{"null", 0, false},
		{"42", 42, false},
		{"18446744073709551615", 18446744073709551615, false},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseHandle(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHandle(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHandle(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if s := FormatHandle(7); s != "7" {
		t.Errorf("FormatHandle(7) = %q", s)
	}
}
