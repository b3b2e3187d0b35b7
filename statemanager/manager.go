package statemanager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/events"
	"github.com/matbeedotcom/remotemedia-sdk-sub000/logger"
	prommetrics "github.com/matbeedotcom/remotemedia-sdk-sub000/metrics/prometheus"
)

// DefaultSessionID is used when a RuntimeData envelope carries an empty
// session_id ("default session", §3.1).
const DefaultSessionID = ""

// Config tunes a Manager; zero-value fields fall back to the defaults
// from §5/§6.5.
type Config struct {
	// MaxSessions bounds the session count; 0 means unbounded.
	MaxSessions int
	// DefaultTTL is how long a session may sit unaccessed before the
	// sweep evicts it. Default: 24h (§5, §6.5 STATE_DEFAULT_TTL_MS).
	DefaultTTL time.Duration
	// SweepInterval is how often the periodic sweep runs. Default: 5m.
	SweepInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	return c
}

// Manager is a per-node singleton managing that node's sessions (§4.7).
// A Scheduler constructs one Manager per node and passes it to that
// node's Host explicitly (§9 "Global singletons... pass them explicitly
// to the Scheduler rather than relying on a global import").
type Manager struct {
	cfg      Config
	nodeName string
	clock    func() time.Time
	log      *slog.Logger
	mu       sync.Mutex
	byID     map[string]*Session
	stopCh   chan struct{}

	events *events.Emitter // nil unless WithEvents is used
}

// NewManager constructs a Manager for one node.
func NewManager(nodeName string, cfg Config) *Manager {
	return &Manager{
		cfg:      cfg.withDefaults(),
		nodeName: nodeName,
		clock:    time.Now,
		log:      logger.DefaultLogger.With("component", "statemanager.Manager", "node", nodeName),
		byID:     make(map[string]*Session),
	}
}

// WithEvents attaches an emitter so session evictions publish
// session.evicted events (§4.7) alongside the sessions_active gauge.
func (m *Manager) WithEvents(emitter *events.Emitter) *Manager {
	m.events = emitter
	return m
}

// GetOrCreate returns the session for sessionID, creating it if absent.
// If creating would exceed MaxSessions, the least-recently-accessed
// session is evicted first (§3.4, §8 property 8), grounded on the
// original's min(last_accessed) victim selection.
func (m *Manager) GetOrCreate(sessionID string) *Session {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byID[sessionID]; ok {
		s.touch(now)
		return s
	}

	if m.cfg.MaxSessions > 0 && len(m.byID) >= m.cfg.MaxSessions {
		m.evictLRUVictimLocked()
	}

	s := newSession(sessionID, now)
	m.byID[sessionID] = s
	prommetrics.SetSessionsActive(m.nodeName, len(m.byID))
	return s
}

// evictLRUVictimLocked removes the session with the oldest LastAccessed.
// Callers must hold m.mu.
func (m *Manager) evictLRUVictimLocked() {
	var victimID string
	var oldest time.Time
	first := true
	for id, s := range m.byID {
		la := s.LastAccessed()
		if first || la.Before(oldest) {
			victimID, oldest = id, la
			first = false
		}
	}
	if !first {
		delete(m.byID, victimID)
		m.log.Debug("evicted LRU session", "session_id", victimID)
		if m.events != nil {
			m.events.SessionEvicted(victimID, "lru_capacity")
		}
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Sweep removes every session whose TTL since last access has elapsed,
// returning the number evicted. Exposed directly so callers (and tests)
// can trigger it synchronously instead of waiting on the ticker.
func (m *Manager) Sweep() int {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.byID {
		if now.Sub(s.LastAccessed()) >= m.cfg.DefaultTTL {
			delete(m.byID, id)
			evicted++
			if m.events != nil {
				m.events.SessionEvicted(id, "ttl_sweep")
			}
		}
	}
	if evicted > 0 {
		m.log.Debug("swept expired sessions", "count", evicted)
		prommetrics.SetSessionsActive(m.nodeName, len(m.byID))
	}
	return evicted
}

// StartSweep launches the periodic sweep goroutine; it stops when ctx
// is cancelled or Stop is called.
func (m *Manager) StartSweep(ctx context.Context) {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	m.stopCh = make(chan struct{})
	stop := m.stopCh
	m.mu.Unlock()

	ticker := time.NewTicker(m.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweep goroutine and clears all sessions (§4.7 "node is
// cleaned up" eviction trigger).
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	m.byID = make(map[string]*Session)
	m.mu.Unlock()
	prommetrics.SetSessionsActive(m.nodeName, 0)
}
