package scheduler

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/events"
)

const (
	// DefaultEdgeQueueCapacity is the default bounded per-edge queue
	// capacity (§4.5 item 3).
	DefaultEdgeQueueCapacity = 100
	// DefaultReadyTimeout is how long Start waits for an out-of-process
	// worker's READY signal before surfacing WorkerStartupTimeout (§4.5
	// item 4, §5).
	DefaultReadyTimeout = 60 * time.Second
	// DefaultStopGrace is the grace period for a clean forced shutdown
	// before the scheduler force-terminates lingering workers (§4.5
	// item 7, §5).
	DefaultStopGrace = 10 * time.Second
)

// DefaultWorkerBinaryName is the out-of-process node entrypoint binary
// (see cmd/remotemedia-worker) the scheduler looks for alongside its
// own executable when Config.WorkerBinary is left unset.
const DefaultWorkerBinaryName = "remotemedia-worker"

// Config tunes scheduler timeouts and defaults. Zero values take the
// package defaults; NewConfigFromEnv overlays §6.5's environment
// variables on top of those defaults.
type Config struct {
	ReadyTimeout        time.Duration
	StopGrace           time.Duration
	DefaultEdgeCapacity int

	// WorkerBinary is the executable launched for an OutOfProcess node
	// (§4.5 item 2). Empty defaults to a "remotemedia-worker" binary
	// found next to this process's own executable.
	WorkerBinary string
	WorkerArgs   []string

	// Bus, if set, receives pipeline/node/worker lifecycle events
	// (pipeline.started, node.ready, worker.lost, ...) published by
	// every Pipeline this Scheduler builds. Nil disables event
	// publishing entirely.
	Bus *events.EventBus
}

func (c Config) withDefaults() Config {
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.StopGrace <= 0 {
		c.StopGrace = DefaultStopGrace
	}
	if c.DefaultEdgeCapacity <= 0 {
		c.DefaultEdgeCapacity = DefaultEdgeQueueCapacity
	}
	if c.WorkerBinary == "" {
		if self, err := os.Executable(); err == nil {
			c.WorkerBinary = filepath.Join(filepath.Dir(self), DefaultWorkerBinaryName)
		}
	}
	return c
}

// NewConfigFromEnv builds a Config from §6.5's observable environment
// variables, falling back to defaults for anything unset or unparsable.
func NewConfigFromEnv() Config {
	cfg := Config{
		ReadyTimeout: durationMSEnv("PIPELINE_WORKER_READY_TIMEOUT_MS", DefaultReadyTimeout),
		StopGrace:    durationMSEnv("PIPELINE_STOP_GRACE_MS", DefaultStopGrace),
	}
	return cfg.withDefaults()
}

func durationMSEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
