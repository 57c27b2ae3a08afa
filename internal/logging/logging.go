// Package logging adapts zap to the host logger contract and builds the
// process logger used by the fnbridge binary.
package logging

import (
	"os"
	"path/filepath"

	"github.com/cryguy/fnbridge/internal/core"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// HostLogger implements core.Logger on a zap SugaredLogger.
type HostLogger struct {
	s *zap.SugaredLogger
}

var _ core.Logger = (*HostLogger)(nil)

// New wraps l. A nil l yields a no-op logger.
func New(l *zap.Logger) *HostLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &HostLogger{s: l.Sugar()}
}

// Nop discards everything.
func Nop() *HostLogger { return New(zap.NewNop()) }

// Named returns a child logger with name appended.
func (h *HostLogger) Named(name string) *HostLogger {
	return &HostLogger{s: h.s.Named(name)}
}

func (h *HostLogger) Error(message string) { h.s.Error(message) }
func (h *HostLogger) Warn(message string)  { h.s.Warn(message) }
func (h *HostLogger) Info(message string)  { h.s.Info(message) }
func (h *HostLogger) Debug(message string) { h.s.Debug(message) }

func (h *HostLogger) ErrorWith(message string, vars ...any) { h.s.Errorw(message, vars...) }
func (h *HostLogger) WarnWith(message string, vars ...any)  { h.s.Warnw(message, vars...) }
func (h *HostLogger) InfoWith(message string, vars ...any)  { h.s.Infow(message, vars...) }
func (h *HostLogger) DebugWith(message string, vars ...any) { h.s.Debugw(message, vars...) }

// Options configures NewLog.
type Options struct {
	Dir        string // defaults to "log"
	File       string // defaults to "fnbridge.log"
	Level      string // debug, info, warn, error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    bool // also write to stdout
}

// NewLog builds a JSON logger writing to a rotated file and, optionally,
// stdout.
func NewLog(o Options) (*zap.Logger, error) {
	if o.Dir == "" {
		o.Dir = "log"
	}
	if o.File == "" {
		o.File = "fnbridge.log"
	}
	if o.MaxSizeMB == 0 {
		o.MaxSizeMB = 50
	}
	if o.MaxBackups == 0 {
		o.MaxBackups = 3
	}
	if o.MaxAgeDays == 0 {
		o.MaxAgeDays = 7
	}
	level := zap.InfoLevel
	if o.Level != "" {
		if err := level.UnmarshalText([]byte(o.Level)); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return nil, err
	}

	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	file := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(o.Dir, o.File),
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAgeDays,
	})
	cores := []zapcore.Core{zapcore.NewCore(zapcore.NewJSONEncoder(enc), file, level)}
	if o.Console {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.Lock(os.Stdout), level))
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}
