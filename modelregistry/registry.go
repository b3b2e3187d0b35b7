// Package modelregistry implements the process-local model registry
// (§4.3): a singleton mapping a key to a lazily loaded, reference-
// counted, shareable model handle, so that e.g. two nodes using the
// same Whisper model load it once.
package modelregistry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
)

// EvictionPolicy selects which models a capacity or manual sweep
// removes first.
type EvictionPolicy string

const (
	EvictionLRU    EvictionPolicy = "lru"
	EvictionLFU    EvictionPolicy = "lfu"
	EvictionTTL    EvictionPolicy = "ttl"
	EvictionManual EvictionPolicy = "manual"
)

// Config tunes a Registry. Zero values take the defaults noted below.
type Config struct {
	// TTL is how long an unreferenced model may sit idle before
	// EvictExpired removes it. Default: 30s, matching the original's
	// RegistryConfig.ttl_seconds.
	TTL time.Duration
	// MaxMemoryBytes caps total estimated memory; 0 means unbounded.
	MaxMemoryBytes int64
	// Policy selects eviction order when capacity is breached or
	// EvictExpired runs. Default: EvictionLRU.
	Policy EvictionPolicy
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	if c.Policy == "" {
		c.Policy = EvictionLRU
	}
	return c
}

type entry struct {
	model        any
	memoryBytes  int64
	refCount     int64
	loadedAt     time.Time
	lastAccessed time.Time
	accessCount  int64
}

// Registry is a process-local singleton; callers obtain the shared
// instance via Default() or construct an isolated one with New for
// tests.
type Registry struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	loading map[string]chan struct{} // key -> closed when the in-flight load completes

	clock func() time.Time

	metrics Metrics
}

// New constructs an independent Registry (tests should use this rather
// than the process-wide Default()).
func New(cfg Config) *Registry {
	return &Registry{
		cfg:     cfg.withDefaults(),
		log:     logger.DefaultLogger.With("component", "modelregistry.Registry"),
		entries: make(map[string]*entry),
		loading: make(map[string]chan struct{}),
		clock:   time.Now,
	}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide Registry singleton, constructing it
// on first use with a default Config (§9 "Global singletons... pass
// them explicitly to the Scheduler rather than relying on a global
// import" — Default exists for convenience callers but the Scheduler
// threads an explicit *Registry through node construction).
func Default() *Registry {
	defaultOnce.Do(func() { defaultReg = New(Config{}) })
	return defaultReg
}

// estimateMemory is the best-effort heuristic from §4.3: prefer a
// model-advertised size, fall back to a flat default. Go has no
// reflection-based "count floating point parameters" equivalent to the
// original's PyTorch-parameter heuristic, so a MemoryEstimator is the
// idiomatic substitute — a loaded value that knows its own size
// implements it.
type MemoryEstimator interface {
	EstimatedMemoryBytes() int64
}

const defaultMemoryEstimateBytes = 100 * 1024 * 1024

func estimateMemory(model any) int64 {
	if m, ok := model.(MemoryEstimator); ok {
		return m.EstimatedMemoryBytes()
	}
	return defaultMemoryEstimateBytes
}
