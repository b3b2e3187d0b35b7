package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// openOtherSide dups fd before attaching a second ControlRing wrapper
// over it, so each side owns an independent descriptor to close — the
// same shape a spawned worker's inherited fd takes relative to the
// host's original, see ring_test.go's openBothSides.
func openOtherSide(t *testing.T, fd int) *ControlRing {
	t.Helper()
	dup, err := unix.Dup(fd)
	require.NoError(t, err)
	c, err := openControlRing(dup)
	require.NoError(t, err)
	return c
}

func TestControlRing_ReadySignalCrossesSides(t *testing.T) {
	host, err := newControlRing()
	require.NoError(t, err)
	defer host.Close()
	worker := openOtherSide(t, host.FD())
	defer worker.Close()

	assert.False(t, host.IsReady())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	waitErr := make(chan error, 1)
	go func() { waitErr <- host.WaitReady(ctx) }()

	worker.SignalReady()

	require.NoError(t, <-waitErr)
	assert.True(t, host.IsReady())
}

func TestControlRing_WaitReadyTimesOut(t *testing.T) {
	c, err := newControlRing()
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitReady(ctx), context.DeadlineExceeded)
}

func TestControlRing_HeartbeatStaleness(t *testing.T) {
	host, err := newControlRing()
	require.NoError(t, err)
	defer host.Close()
	worker := openOtherSide(t, host.FD())
	defer worker.Close()

	now := time.Now()
	assert.Equal(t, time.Duration(0), host.StaleSince(now), "never-beaten heartbeat reports not stale")

	worker.Heartbeat(now)
	assert.Less(t, host.StaleSince(now.Add(time.Second)), 2*time.Second)
	assert.GreaterOrEqual(t, host.StaleSince(now.Add(time.Second)), time.Second)
}
