package ipc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/matbeedotcom/remotemedia-sdk-sub000/runtimedata"
)

// attachLoopbackWorker opens a worker-side Transport on dups of the
// host-side Transport's own descriptors, the same way a spawned
// process ends up with its own independently-closable descriptors
// after inheriting them via ExtraFiles — standing in for an actual
// child process, since the wire protocol only cares about the shared
// memory, not which process maps it.
func attachLoopbackWorker(t *testing.T, host *Transport) *Transport {
	t.Helper()
	fds := host.FDs()
	dups := make([]int, len(fds))
	for i, fd := range fds {
		dup, err := unix.Dup(fd)
		require.NoError(t, err)
		dups[i] = dup
	}
	worker, err := AttachWorkerTransport(host.Name, dups[0], dups[1], dups[2])
	require.NoError(t, err)
	return worker
}

func TestTransport_SendReceiveRoundTrip(t *testing.T) {
	host, err := NewHostTransport("sess-1", "node-1")
	require.NoError(t, err)
	defer host.Close()
	worker := attachLoopbackWorker(t, host)
	defer worker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sent := runtimedata.Text("sess-1", 1000, "hello worker", "en")
	require.NoError(t, host.Send(ctx, sent))

	got, err := worker.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, sent.SessionID, got.SessionID)
	gotText, err := got.AsText()
	require.NoError(t, err)
	assert.Equal(t, "hello worker", gotText)

	reply := runtimedata.Text("sess-1", 2000, "hello host", "en")
	require.NoError(t, worker.Send(ctx, reply))

	back, err := host.Receive(ctx)
	require.NoError(t, err)
	backText, err := back.AsText()
	require.NoError(t, err)
	assert.Equal(t, "hello host", backText)
}

func TestTransport_ReceiveRespectsContextCancellation(t *testing.T) {
	host, err := NewHostTransport("sess-2", "node-2")
	require.NoError(t, err)
	defer host.Close()
	worker := attachLoopbackWorker(t, host)
	defer worker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = host.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestControlRing_SignalsReadyAcrossTransport(t *testing.T) {
	host, err := NewHostTransport("sess-3", "node-3")
	require.NoError(t, err)
	defer host.Close()
	worker := attachLoopbackWorker(t, host)
	defer worker.Close()

	assert.False(t, host.Control().IsReady())
	worker.Control().SignalReady()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, host.Control().WaitReady(ctx))
}
