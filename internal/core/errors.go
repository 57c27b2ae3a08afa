package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies bridge failures.
type ErrorKind string

const (
	KindLoad          ErrorKind = "load"          // compile failure, missing or non-callable handler
	KindInvocation    ErrorKind = "invocation"    // guest exception during a call
	KindNormalization ErrorKind = "normalization" // unusable return value
	KindMarshal       ErrorKind = "marshal"       // value could not cross the boundary
	KindHandle        ErrorKind = "handle"        // zero or stale host handle
)

var (
	ErrEmptySource         = errors.New("source code is empty")
	ErrInvalidHandlerName  = errors.New("invalid handler name")
	ErrHandlerNotFound     = errors.New("handler not found")
	ErrHandlerNotCallable  = errors.New("handler is not a function")
	ErrAlreadyInitialized  = errors.New("worker already initialized")
	ErrNotInitialized      = errors.New("worker not initialized")
	ErrWorkerClosed        = errors.New("worker is closed")
	ErrUnknownWorker       = errors.New("unknown worker handle")
	ErrUninitializedHandle = errors.New("uninitialized handle")
	ErrInvalidStatusCode   = errors.New("invalid status code")
	ErrNotSerializable     = errors.New("result is not serializable")
	ErrReentrantInvocation = errors.New("re-entrant invocation")
	ErrPromiseNotSettled   = errors.New("handler promise did not settle")
	ErrAlreadyFreed        = errors.New("response already freed")
)

// Error is a classified bridge failure. Diagnostic is set for guest
// exceptions.
type Error struct {
	Kind       ErrorKind
	Err        error
	Diagnostic *Diagnostic
}

// NewError wraps err with kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Diagnostic != nil {
		return e.Diagnostic.String()
	}
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// CompileError reports a syntax error in guest source.
type CompileError struct {
	Line    int // 1-based
	Column  int // 1-based
	Message string
	Snippet string
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "compile error at %d:%d: %s", e.Line, e.Column, e.Message)
	if e.Snippet != "" {
		b.WriteString("\n")
		b.WriteString(e.Snippet)
	}
	return b.String()
}

// UnknownResultTypeError reports a handler result with no response mapping.
type UnknownResultTypeError struct {
	TypeName string
}

func (e *UnknownResultTypeError) Error() string {
	return "Unknown result type " + e.TypeName
}

// ExceptionError is a guest exception without its location details; the
// full record travels in Error.Diagnostic.
type ExceptionError struct {
	Name    string
	Message string
}

func (e *ExceptionError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}
