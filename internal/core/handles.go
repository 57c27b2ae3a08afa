package core

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
)

// HandleTable maps opaque uint64 handles to host-owned values. Handle 0 is
// the null sentinel and never resolves. The zero value is ready to use.
type HandleTable[T any] struct {
	next    atomic.Uint64
	entries sync.Map // uint64 -> T
}

// Register stores v and returns its new handle.
func (t *HandleTable[T]) Register(v T) uint64 {
	id := t.next.Add(1)
	t.entries.Store(id, v)
	return id
}

// Get returns the value for h.
func (t *HandleTable[T]) Get(h uint64) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	v, ok := t.entries.Load(h)
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// Release removes h and returns the value it held.
func (t *HandleTable[T]) Release(h uint64) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	v, ok := t.entries.LoadAndDelete(h)
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// Len counts live handles.
func (t *HandleTable[T]) Len() int {
	n := 0
	t.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// ParseHandle parses a handle passed back from guest code as a decimal
// string. Empty and "undefined" map to the null handle.
func ParseHandle(s string) (uint64, error) {
	if s == "" || s == "undefined" || s == "null" {
		return 0, nil
	}
	h, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing handle %q: %w", s, err)
	}
	return h, nil
}

// FormatHandle renders h for embedding in guest source.
func FormatHandle(h uint64) string {
	return strconv.FormatUint(h, 10)
}
