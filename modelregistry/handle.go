package modelregistry

import (
	"fmt"

	prommetrics "github.com/matbeedotcom/remotemedia-sdk-sub000/metrics/prometheus"
)

// Handle is a reference-counted pointer to a shared model instance.
// Release must be called exactly once per handle obtained from
// GetOrLoad; the underlying instance is only eligible for eviction once
// its reference count reaches zero.
type Handle[T any] struct {
	model    T
	key      string
	registry *Registry
	released bool
}

// Model returns the shared instance for inference.
func (h *Handle[T]) Model() T { return h.model }

// Key returns the registry key this handle was obtained under.
func (h *Handle[T]) Key() string { return h.key }

// Release decrements the reference count. Safe to call more than once;
// only the first call has effect.
func (h *Handle[T]) Release() {
	if h.released {
		return
	}
	h.released = true
	h.registry.release(h.key)
}

// GetOrLoad returns a handle to the model registered under key,
// invoking loader exactly once across any number of concurrent callers
// (§8 property 4). A loader failure is returned to every waiter for
// that call generation; the key remains absent so the next call
// retries, matching §4.3's concurrency contract.
func GetOrLoad[T any](r *Registry, key string, loader func() (T, error)) (*Handle[T], error) {
	for {
		r.mu.Lock()
		if e, ok := r.entries[key]; ok {
			e.refCount++
			e.lastAccessed = r.clock()
			e.accessCount++
			r.metrics.CacheHits++
			totalBytes := r.metrics.TotalMemoryBytes
			r.mu.Unlock()
			prommetrics.RecordModelCacheLookup(true, totalBytes)
			model, ok := e.model.(T)
			if !ok {
				return nil, fmt.Errorf("modelregistry: key %q loaded with a different type than requested", key)
			}
			r.log.Debug("model cache hit", "key", key)
			return &Handle[T]{model: model, key: key, registry: r}, nil
		}

		if wait, inFlight := r.loading[key]; inFlight {
			r.mu.Unlock()
			<-wait // another goroutine is loading this key; wait for it to finish
			continue
		}

		done := make(chan struct{})
		r.loading[key] = done
		r.mu.Unlock()

		r.log.Info("loading model", "key", key)
		model, err := loader()

		r.mu.Lock()
		delete(r.loading, key)
		close(done)
		if err != nil {
			r.mu.Unlock()
			return nil, fmt.Errorf("modelregistry: load %q: %w", key, err)
		}

		now := r.clock()
		memBytes := estimateMemory(model)
		r.evictForCapacityLocked(memBytes)
		r.entries[key] = &entry{
			model: model, memoryBytes: memBytes, refCount: 1,
			loadedAt: now, lastAccessed: now, accessCount: 1,
		}
		r.metrics.CacheMisses++
		r.metrics.TotalModels++
		r.metrics.TotalMemoryBytes += memBytes
		totalBytes := r.metrics.TotalMemoryBytes
		r.mu.Unlock()
		prommetrics.RecordModelCacheLookup(false, totalBytes)
		r.log.Info("model loaded", "key", key, "memory_bytes", memBytes)

		return &Handle[T]{model: model, key: key, registry: r}, nil
	}
}

func (r *Registry) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return
	}
	if e.refCount > 0 {
		e.refCount--
	}
}
