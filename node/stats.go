package node

import (
	"sync/atomic"
	"time"
)

// Stats tracks per-node counters (§4.4 item 5), mutated only by the
// owning host.
type Stats struct {
	processed   atomic.Int64
	failed      atomic.Int64
	totalProcNS atomic.Int64
}

func (s *Stats) recordSuccess(d time.Duration) {
	s.processed.Add(1)
	s.totalProcNS.Add(int64(d))
}

func (s *Stats) recordFailure() {
	s.failed.Add(1)
}

// Snapshot is a point-in-time, race-free read of Stats.
type Snapshot struct {
	Processed             int64
	Failed                int64
	CumulativeProcessTime time.Duration
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Processed:             s.processed.Load(),
		Failed:                s.failed.Load(),
		CumulativeProcessTime: time.Duration(s.totalProcNS.Load()),
	}
}
