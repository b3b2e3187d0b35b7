package ipc

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"
)

// Ring is one shared-memory publish/subscribe ring (§4.2): a fixed
// slot count, each slot a growable byte buffer. The publisher loans a
// slot, writes framed bytes directly into its memory (no intermediate
// copy), and commits; the subscriber polls non-blockingly, reads the
// committed slot in place, and releases it back to the pool. Exactly
// one producer and one consumer use a given Ring — one per logical
// edge direction, matching §4.2's "one service pair per edge".
type Ring struct {
	region *region

	capacity     uint64
	localSlot    uint64 // cached slot size; refreshed from the header on epoch change
	localEpoch   uint64
	isProducer   bool
}

const (
	// DefaultCapacity is the ring's slot count (§4.2 "subscriber buffer
	// >= 100 slots", also read as the per-ring sample history depth).
	DefaultCapacity = 100
	// DefaultSlotSize is the initial per-slot payload capacity (§4.2
	// "publisher initial slot size 1 KiB").
	DefaultSlotSize = 1024

	// Header field byte offsets, each 8-byte aligned for atomic access.
	offCapacity = 0
	offSlotSize = 8
	offEpoch    = 16
	offHead     = 24
	offTail     = 32
	headerSize  = 64
)

func ringTotalSize(capacity, slotSize uint64) int {
	return headerSize + int(capacity*(4+slotSize))
}

// newRing creates the backing region sized for capacity slots of
// slotSize bytes and initializes the header. The caller (always the
// host process, §4.2 "the host creates both rings") owns the returned
// file descriptor and must pass it to the worker via
// exec.Cmd.ExtraFiles; isProducer tags which side THIS local wrapper
// plays — the host is the producer for the input ring but the
// consumer for the output ring, since the worker writes results there.
func newRing(capacity, slotSize uint64, isProducer bool) (*Ring, error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if slotSize == 0 {
		slotSize = DefaultSlotSize
	}
	reg, err := newRegion(ringTotalSize(capacity, slotSize))
	if err != nil {
		return nil, err
	}
	r := &Ring{region: reg, capacity: capacity, localSlot: slotSize, isProducer: isProducer}
	r.storeU64(offCapacity, capacity)
	r.storeU64(offSlotSize, slotSize)
	r.storeU64(offEpoch, 0)
	r.storeU64(offHead, 0)
	r.storeU64(offTail, 0)
	return r, nil
}

// openConsumerRing / openProducerRing attach to a ring created by the
// other side of an already-spawned worker, given its inherited fd.
func openConsumerRing(fd int) (*Ring, error) { return openRing(fd, false) }
func openProducerRing(fd int) (*Ring, error) { return openRing(fd, true) }

func openRing(fd int, isProducer bool) (*Ring, error) {
	reg, err := openRegion(fd)
	if err != nil {
		return nil, err
	}
	r := &Ring{region: reg, isProducer: isProducer}
	r.capacity = r.loadU64(offCapacity)
	r.localSlot = r.loadU64(offSlotSize)
	r.localEpoch = r.loadU64(offEpoch)
	return r, nil
}

func (r *Ring) ptr(off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&r.region.data[off]))
}
func (r *Ring) loadU64(off int) uint64        { return atomic.LoadUint64(r.ptr(off)) }
func (r *Ring) storeU64(off int, v uint64)    { atomic.StoreUint64(r.ptr(off), v) }

func (r *Ring) slotOffset(index uint64) int {
	return headerSize + int(index*(4+r.localSlot))
}

// refreshIfGrown remaps this side's view when it observes the other
// side has grown the ring (epoch bump), per §4.2's growth strategy.
func (r *Ring) refreshIfGrown() error {
	epoch := r.loadU64(offEpoch)
	if epoch == r.localEpoch {
		return nil
	}
	if err := r.region.remap(); err != nil {
		return err
	}
	r.localSlot = r.loadU64(offSlotSize)
	r.localEpoch = epoch
	return nil
}

// Slot is a loaned, writable view into one ring slot's payload region,
// valid until Commit is called.
type Slot struct {
	ring  *Ring
	index uint64
	buf   []byte
}

// Bytes returns the slot's writable buffer (capacity = the ring's
// current slot size).
func (s *Slot) Bytes() []byte { return s.buf }

// LoanSlot blocks (spin-poll with backoff, §5 "host's periodic poll")
// until a slot is free, growing the ring if need bytes exceeds the
// current slot size and the ring is fully drained, then returns a
// writable view for the caller to encode directly into (§4.2 "no
// intermediate copies for large payloads").
func (r *Ring) LoanSlot(ctx context.Context, need int) (*Slot, error) {
	if !r.isProducer {
		return nil, fmt.Errorf("ipc: LoanSlot called on a consumer ring")
	}
	backoff := time.Microsecond
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		head := r.loadU64(offHead)
		tail := r.loadU64(offTail)
		full := head-tail >= r.capacity
		if !full && uint64(need) > r.localSlot {
			if head != tail {
				// Can't resize a ring with in-flight slots; wait for drain.
				full = true
			} else if err := r.growSlotSize(uint64(need)); err != nil {
				return nil, err
			}
		}
		if !full {
			index := head % r.capacity
			off := r.slotOffset(index)
			buf := r.region.data[off+4 : off+4+int(r.localSlot)]
			return &Slot{ring: r, index: index, buf: buf[:need]}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < time.Millisecond {
			backoff *= 2
		}
	}
}

// growSlotSize doubles slotSize until it can hold need bytes (§4.2
// "power-of-two growth strategy"), only ever called with head==tail.
func (r *Ring) growSlotSize(need uint64) error {
	newSlot := r.localSlot
	if newSlot == 0 {
		newSlot = DefaultSlotSize
	}
	for newSlot < need {
		newSlot *= 2
	}
	if err := r.region.grow(ringTotalSize(r.capacity, newSlot)); err != nil {
		return err
	}
	r.localSlot = newSlot
	r.storeU64(offSlotSize, newSlot)
	r.storeU64(offEpoch, r.loadU64(offEpoch)+1)
	return nil
}

// Commit publishes a loaned slot's n written bytes and advances head,
// making it visible to the subscriber (§4.2 "writes framed bytes...
// and commits").
func (s *Slot) Commit(n int) {
	off := s.ring.slotOffset(s.index)
	lenPtr := (*uint32)(unsafe.Pointer(&s.ring.region.data[off]))
	atomic.StoreUint32(lenPtr, uint32(n))
	s.ring.storeU64(offHead, s.ring.loadU64(offHead)+1)
}

// Received is a read-only view of one polled slot, returned by Poll.
type Received struct {
	ring  *Ring
	index uint64
	Data  []byte
}

// Poll non-blockingly checks for a committed slot (§4.2 "subscriber
// polls non-blockingly"). ok is false when the ring is currently
// empty — not an error; the caller should back off and retry.
func (r *Ring) Poll() (rec *Received, ok bool, err error) {
	if r.isProducer {
		return nil, false, fmt.Errorf("ipc: Poll called on a producer ring")
	}
	if err := r.refreshIfGrown(); err != nil {
		return nil, false, err
	}
	head := r.loadU64(offHead)
	tail := r.loadU64(offTail)
	if tail >= head {
		return nil, false, nil
	}
	index := tail % r.capacity
	off := r.slotOffset(index)
	lenPtr := (*uint32)(unsafe.Pointer(&r.region.data[off]))
	n := int(atomic.LoadUint32(lenPtr))
	data := r.region.data[off+4 : off+4+n]
	return &Received{ring: r, index: index, Data: data}, true, nil
}

// Release returns a polled slot to the producer's free pool (§4.2
// "releases it after deserialization").
func (rec *Received) Release() {
	rec.ring.storeU64(offTail, rec.ring.loadU64(offTail)+1)
}

// Close unmaps this side's view of the ring. Each side closes its own
// region independently; the underlying memfd is freed once both
// descriptors are closed.
func (r *Ring) Close() error {
	return r.region.close()
}

// FD returns the ring's backing file descriptor, to be attached to a
// child process's ExtraFiles by the launcher.
func (r *Ring) FD() int { return r.region.fd }
