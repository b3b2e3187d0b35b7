package node

import (
	"sync"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

// itemQueue is an unbounded, order-preserving FIFO fed by the relay
// goroutine and drained by the host's single consumer loop. Using one
// queue for both the queue-during-init phase and the steady-state loop
// (rather than draining a separate buffer and then switching modes)
// avoids a transition race: the relay goroutine never stops running
// until the input edge closes or the pipeline is cancelled, so no item
// can arrive in a gap between "draining" and "steady state".
type itemQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*runtimedata.Data
	closed bool
}

func newItemQueue() *itemQueue {
	q := &itemQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *itemQueue) push(item *runtimedata.Data) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, item)
	q.cond.Signal()
}

func (q *itemQueue) closeQ() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// pop blocks until an item is available or the queue is closed and
// drained, in which case it returns (nil, false).
func (q *itemQueue) pop() (*runtimedata.Data, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}
