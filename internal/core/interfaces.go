package core

import "time"

// Event is the host's request representation. The bridge reads it through
// these accessors only and never retains it past one invocation.
type Event interface {
	ID() string
	Version() int
	Size() int
	TriggerClass() string
	TriggerKind() string
	ContentType() string
	Body() []byte
	Headers() map[string]any
	Fields() map[string]any
	Timestamp() time.Time
	Path() string
	URL() string
	Method() string
	ShardID() int
	NumShards() int
}

// Logger is the host's structured logger. vars are alternating key/value
// pairs.
type Logger interface {
	Error(message string)
	Warn(message string)
	Info(message string)
	Debug(message string)
	ErrorWith(message string, vars ...any)
	WarnWith(message string, vars ...any)
	InfoWith(message string, vars ...any)
	DebugWith(message string, vars ...any)
}

// SourceLoader supplies guest source and the handler to resolve in it.
type SourceLoader interface {
	GetFunction(name string) (source, handler string, err error)
}
