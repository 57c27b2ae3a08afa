package bridge

import (
	"github.com/cryguy/fnbridge/internal/core"
	"github.com/cryguy/fnbridge/internal/marshal"
)

// loggerFor resolves the logger behind a context handle of the current
// call. Logging never fails the guest, so a zero, stale or foreign handle
// falls back to the worker logger.
func (b *Bridge) loggerFor(nonce, hs string) core.Logger {
	if !b.active(nonce) {
		return b.logger
	}
	h, err := core.ParseHandle(hs)
	if err == nil {
		if entry, ok := b.contexts.Get(h); ok && entry.logger != nil {
			return entry.logger
		}
	}
	return b.logger
}

func (b *Bridge) log(nonce, hs, level, message string) {
	b.callbacks.Add(1)
	defer b.callbacks.Add(-1)

	l := b.loggerFor(nonce, hs)
	switch level {
	case "error":
		l.Error(message)
	case "warn":
		l.Warn(message)
	case "info":
		l.Info(message)
	case "debug":
		l.Debug(message)
	default:
		b.logger.WarnWith("Unknown log level", "level", level)
		l.Info(message)
	}
}

func (b *Bridge) logWith(nonce, hs, level, message, fieldsJSON string) {
	b.callbacks.Add(1)
	defer b.callbacks.Add(-1)

	l := b.loggerFor(nonce, hs)
	vars := marshal.ParseLogFields(fieldsJSON)
	switch level {
	case "error":
		l.ErrorWith(message, vars...)
	case "warn":
		l.WarnWith(message, vars...)
	case "info":
		l.InfoWith(message, vars...)
	case "debug":
		l.DebugWith(message, vars...)
	default:
		b.logger.WarnWith("Unknown log level", "level", level)
		l.InfoWith(message, vars...)
	}
}

// InCallback reports whether a guest logging call is currently running
// host code.
func (b *Bridge) InCallback() bool {
	return b.callbacks.Load() > 0
}
