package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// Two Ring wrappers over the same memfd (one producer-tagged, one
// consumer-tagged) stand in for the host/worker sides without actually
// forking a process. Each side dups its own fd, the same way a spawned
// child ends up with its own independent descriptor for an inherited
// file rather than sharing the parent's — so each side can Close
// independently, matching real fd-passing semantics.
func openBothSides(t *testing.T, capacity, slotSize uint64) (producer, consumer *Ring) {
	t.Helper()
	producer, err := newRing(capacity, slotSize, true)
	require.NoError(t, err)
	dup, err := unix.Dup(producer.FD())
	require.NoError(t, err)
	consumer, err = openRing(dup, false)
	require.NoError(t, err)
	return producer, consumer
}

func TestRing_LoanCommitPollRelease(t *testing.T) {
	producer, consumer := openBothSides(t, 4, 16)
	defer producer.Close()
	defer consumer.Close()

	ctx := context.Background()
	slot, err := producer.LoanSlot(ctx, 5)
	require.NoError(t, err)
	n := copy(slot.Bytes(), []byte("hello"))
	slot.Commit(n)

	rec, ok, err := consumer.Poll()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(rec.Data))
	rec.Release()

	_, ok, err = consumer.Poll()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRing_PreservesFIFOOrder(t *testing.T) {
	producer, consumer := openBothSides(t, 8, 16)
	defer producer.Close()
	defer consumer.Close()
	ctx := context.Background()

	for _, msg := range []string{"a", "bb", "ccc"} {
		slot, err := producer.LoanSlot(ctx, len(msg))
		require.NoError(t, err)
		n := copy(slot.Bytes(), []byte(msg))
		slot.Commit(n)
	}

	var got []string
	for i := 0; i < 3; i++ {
		rec, ok, err := consumer.Poll()
		require.NoError(t, err)
		require.True(t, ok)
		got = append(got, string(rec.Data))
		rec.Release()
	}
	assert.Equal(t, []string{"a", "bb", "ccc"}, got)
}

func TestRing_BlocksWhenFullAndUnblocksOnRelease(t *testing.T) {
	producer, consumer := openBothSides(t, 2, 16)
	defer producer.Close()
	defer consumer.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		slot, err := producer.LoanSlot(ctx, 1)
		require.NoError(t, err)
		slot.Commit(copy(slot.Bytes(), []byte("x")))
	}

	loaned := make(chan error, 1)
	go func() {
		_, err := producer.LoanSlot(ctx, 1)
		loaned <- err
	}()

	select {
	case <-loaned:
		t.Fatal("LoanSlot returned while the ring was still full")
	case <-time.After(20 * time.Millisecond):
	}

	rec, ok, err := consumer.Poll()
	require.NoError(t, err)
	require.True(t, ok)
	rec.Release()

	select {
	case err := <-loaned:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("LoanSlot did not unblock after a slot was released")
	}
}

func TestRing_LoanSlotRespectsContextCancellation(t *testing.T) {
	producer, consumer := openBothSides(t, 1, 16)
	defer producer.Close()
	defer consumer.Close()

	bgCtx := context.Background()
	slot, err := producer.LoanSlot(bgCtx, 1)
	require.NoError(t, err)
	slot.Commit(1)

	ctx, cancel := context.WithTimeout(bgCtx, 10*time.Millisecond)
	defer cancel()
	_, err = producer.LoanSlot(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRing_GrowsSlotSizeWhenDrained(t *testing.T) {
	producer, consumer := openBothSides(t, 2, 4)
	defer producer.Close()
	defer consumer.Close()
	ctx := context.Background()

	big := make([]byte, 100)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	slot, err := producer.LoanSlot(ctx, len(big))
	require.NoError(t, err)
	n := copy(slot.Bytes(), big)
	slot.Commit(n)
	assert.GreaterOrEqual(t, producer.localSlot, uint64(len(big)))

	rec, ok, err := consumer.Poll()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, big, rec.Data)
	rec.Release()
}

func TestRing_LoanOnConsumerAndPollOnProducerAreRejected(t *testing.T) {
	producer, consumer := openBothSides(t, 2, 16)
	defer producer.Close()
	defer consumer.Close()

	_, err := consumer.LoanSlot(context.Background(), 1)
	assert.Error(t, err)

	_, _, err = producer.Poll()
	assert.Error(t, err)
}
