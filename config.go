package fnbridge

import (
	"github.com/cryguy/fnbridge/internal/core"
	"github.com/cryguy/fnbridge/internal/logging"
	"github.com/cryguy/fnbridge/internal/metrics"
)

// LockMode selects how concurrent Invoke calls on a worker are serialized.
type LockMode int

const (
	// LockWorker serializes calls per worker. Workers run in parallel.
	LockWorker LockMode = iota
	// LockProcess serializes every call in the process behind one mutex.
	LockProcess
	// LockNone takes no lock. The host guarantees a single calling
	// goroutine per worker; calls made while a logging callback is running
	// fail with ErrReentrantInvocation.
	LockNone
)

func (m LockMode) String() string {
	switch m {
	case LockWorker:
		return "worker"
	case LockProcess:
		return "process"
	case LockNone:
		return "none"
	}
	return "unknown"
}

// ParseLockMode maps "worker", "process" or "none" to a LockMode. The empty
// string is LockWorker.
func ParseLockMode(s string) (LockMode, bool) {
	switch s {
	case "", "worker":
		return LockWorker, true
	case "process":
		return LockProcess, true
	case "none":
		return LockNone, true
	}
	return LockWorker, false
}

// Config holds the configuration of one worker.
type Config struct {
	Name          string   // visible to guests as context.worker
	LockMode      LockMode // default LockWorker
	MemoryLimitMB int      // per-engine heap limit, 0 for none
	Loader        string   // "js" (default) or "ts"
	Filename      string   // guest file name in diagnostics, default handler.js
	Logger        Logger   // worker logger, default no-op
	Metrics       *metrics.Collector
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "worker"
	}
	if c.Loader == "" {
		c.Loader = "js"
	}
	if c.Logger == nil {
		c.Logger = logging.Nop()
	}
	return c
}

func (c Config) engineConfig() core.EngineConfig {
	return core.EngineConfig{MemoryLimitMB: c.MemoryLimitMB}
}
