// Package fnbridge loads guest JavaScript handlers into an embedded engine
// and invokes them once per host event, normalizing every outcome into a
// Response.
//
// The default build uses QuickJS (modernc.org/quickjs); build with -tags v8
// for V8.
package fnbridge

import "github.com/cryguy/fnbridge/internal/core"

type (
	Event       = core.Event
	Logger      = core.Logger
	Context     = core.Context
	Response    = core.Response
	MemoryEvent = core.MemoryEvent
	Diagnostic  = core.Diagnostic

	Error                  = core.Error
	ErrorKind              = core.ErrorKind
	CompileError           = core.CompileError
	UnknownResultTypeError = core.UnknownResultTypeError
	ExceptionError         = core.ExceptionError
	SourceLoader           = core.SourceLoader
)

const (
	KindLoad          = core.KindLoad
	KindInvocation    = core.KindInvocation
	KindNormalization = core.KindNormalization
	KindMarshal       = core.KindMarshal
	KindHandle        = core.KindHandle
)

var (
	ErrEmptySource         = core.ErrEmptySource
	ErrInvalidHandlerName  = core.ErrInvalidHandlerName
	ErrHandlerNotFound     = core.ErrHandlerNotFound
	ErrHandlerNotCallable  = core.ErrHandlerNotCallable
	ErrAlreadyInitialized  = core.ErrAlreadyInitialized
	ErrNotInitialized      = core.ErrNotInitialized
	ErrWorkerClosed        = core.ErrWorkerClosed
	ErrUnknownWorker       = core.ErrUnknownWorker
	ErrUninitializedHandle = core.ErrUninitializedHandle
	ErrInvalidStatusCode   = core.ErrInvalidStatusCode
	ErrNotSerializable     = core.ErrNotSerializable
	ErrReentrantInvocation = core.ErrReentrantInvocation
	ErrPromiseNotSettled   = core.ErrPromiseNotSettled
	ErrAlreadyFreed        = core.ErrAlreadyFreed
)
