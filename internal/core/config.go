package core

// EngineConfig holds per-engine settings.
type EngineConfig struct {
	MemoryLimitMB int // engine heap cap, 0 for the engine default
}
