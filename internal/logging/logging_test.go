package logging

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHostLoggerLevels(t *testing.T) {
	zc, logs := observer.New(zap.DebugLevel)
	l := New(zap.New(zc))

	l.Error("e")
	l.Warn("w")
	l.Info("i")
	l.Debug("d")
	l.InfoWith("with", "k", "v", "n", 2)

	entries := logs.All()
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	wantLevels := []zapcore.Level{zap.ErrorLevel, zap.WarnLevel, zap.InfoLevel, zap.DebugLevel, zap.InfoLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, wantLevels[i])
		}
	}
	ctx := entries[4].ContextMap()
	if ctx["k"] != "v" || ctx["n"] != int64(2) {
		t.Fatalf("fields = %v", ctx)
	}
}

func TestNilLoggerIsNop(t *testing.T) {
	l := New(nil)
	l.ErrorWith("ignored", "a", 1)
	Nop().Info("ignored")
}

func TestNamed(t *testing.T) {
	zc, logs := observer.New(zap.InfoLevel)
	New(zap.New(zc)).Named("worker").Info("hi")
	if got := logs.All()[0].LoggerName; got != "worker" {
		t.Fatalf("logger name = %q", got)
	}
}

func TestNewLogWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLog(Options{Dir: dir, File: "test.log", Level: "debug"})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("written")
	_ = l.Sync()
	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("log file is empty")
	}
}

func TestNewLogBadLevel(t *testing.T) {
	if _, err := NewLog(Options{Dir: t.TempDir(), Level: "loud"}); err == nil {
		t.Fatal("bad level accepted")
	}
}
