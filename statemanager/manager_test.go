package statemanager

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/events"
)

func TestGetOrCreate_ReturnsExistingSession(t *testing.T) {
	m := NewManager("test-node", Config{})
	s1 := m.GetOrCreate("sess-1")
	s1.Set("k", "v")

	s2 := m.GetOrCreate("sess-1")
	v, ok := s2.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Same(t, s1, s2)
}

func TestGetOrCreate_EvictsLRUVictimAtCapacity(t *testing.T) {
	clock := time.Unix(0, 0)
	m := NewManager("test-node", Config{MaxSessions: 2})
	m.clock = func() time.Time { clock = clock.Add(time.Second); return clock }

	m.GetOrCreate("a") // t=1s
	m.GetOrCreate("b") // t=2s
	assert.Equal(t, 2, m.Count())

	// touch "a" so "b" becomes the LRU victim
	m.GetOrCreate("a") // t=3s

	m.GetOrCreate("c") // t=4s, evicts "b"
	assert.Equal(t, 2, m.Count())

	_, hasA := m.byID["a"]
	_, hasB := m.byID["b"]
	_, hasC := m.byID["c"]
	assert.True(t, hasA)
	assert.False(t, hasB)
	assert.True(t, hasC)
}

func TestSweep_RemovesExpiredSessions(t *testing.T) {
	clock := time.Unix(0, 0)
	m := NewManager("test-node", Config{DefaultTTL: 10 * time.Second})
	m.clock = func() time.Time { return clock }

	m.GetOrCreate("old")
	clock = clock.Add(5 * time.Second)
	m.GetOrCreate("fresh")
	clock = clock.Add(6 * time.Second) // old is 11s stale, fresh is 6s

	evicted := m.Sweep()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, m.Count())
	_, hasFresh := m.byID["fresh"]
	assert.True(t, hasFresh)
}

func TestStop_ClearsAllSessions(t *testing.T) {
	m := NewManager("test-node", Config{})
	m.GetOrCreate("a")
	m.GetOrCreate("b")
	m.Stop()
	assert.Equal(t, 0, m.Count())
}

func TestGetOrCreate_EvictionPublishesSessionEvictedEvent(t *testing.T) {
	bus := events.NewEventBus()
	m := NewManager("test-node", Config{MaxSessions: 1}).WithEvents(events.NewEmitter(bus, "pipeline-1"))

	var got *events.Event
	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(events.EventSessionEvicted, func(e *events.Event) {
		got = e
		wg.Done()
	})

	m.GetOrCreate("a")
	m.GetOrCreate("b") // evicts "a" at MaxSessions=1

	if !waitForEvent(&wg) {
		t.Fatal("timed out waiting for session.evicted event")
	}

	data, ok := got.Data.(*events.SessionEvictedData)
	require.True(t, ok)
	assert.Equal(t, "lru_capacity", data.Reason)
}

func waitForEvent(wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(200 * time.Millisecond):
		return false
	}
}
