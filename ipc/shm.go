// Package ipc implements the shared-memory ring Transport between a
// host process and an out-of-process node worker (§4.2): one
// publish/subscribe ring per edge direction plus a small control ring
// carrying the startup READY handshake and a liveness heartbeat.
//
// Grounded on the fd-passing idiom used by process-isolated media
// engines (an anonymous descriptor created in the parent, handed to
// the child via exec.Cmd.ExtraFiles, and mmap'd independently on each
// side) — the same shape as a Socketpair-based control channel, but
// backed by a growable shared memory region instead of a stream socket
// so large payloads cross with zero extra copies.
package ipc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// region is one memfd-backed shared memory mapping. The host creates
// a region with newRegion; the worker attaches to the same underlying
// file with openRegion, given the *os.File inherited via ExtraFiles.
type region struct {
	fd   int
	size int
	data []byte
}

// newRegion creates an anonymous, shareable memory-backed file of
// size bytes and maps it into this process. MFD_CLOEXEC is
// deliberately NOT set: the descriptor must survive exec into the
// worker, which receives it positionally via ExtraFiles.
func newRegion(size int) (*region, error) {
	fd, err := unix.MemfdCreate("remotemedia-ring", 0)
	if err != nil {
		return nil, fmt.Errorf("ipc: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ipc: ftruncate: %w", err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ipc: mmap: %w", err)
	}
	return &region{fd: fd, size: size, data: data}, nil
}

// openRegion maps an inherited fd (already sized by the creating
// process) into this process's address space.
func openRegion(fd int) (*region, error) {
	size, err := regionSize(fd)
	if err != nil {
		return nil, err
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("ipc: mmap: %w", err)
	}
	return &region{fd: fd, size: size, data: data}, nil
}

func regionSize(fd int) (int, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, fmt.Errorf("ipc: fstat: %w", err)
	}
	return int(st.Size), nil
}

// remap re-attaches this region to its own fd at its current size,
// used after the owning side has grown the ring (§4.2 "power-of-two
// growth strategy") by ftruncating the backing file larger.
func (r *region) remap() error {
	size, err := regionSize(r.fd)
	if err != nil {
		return err
	}
	if err := unix.Munmap(r.data); err != nil {
		return fmt.Errorf("ipc: munmap: %w", err)
	}
	data, err := unix.Mmap(r.fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("ipc: remap mmap: %w", err)
	}
	r.size = size
	r.data = data
	return nil
}

// grow enlarges the backing file to newSize and remaps it. Only the
// creating (producer) side calls this; the subscriber side observes
// the resulting epoch bump and remaps independently via remap.
func (r *region) grow(newSize int) error {
	if err := unix.Ftruncate(r.fd, int64(newSize)); err != nil {
		return fmt.Errorf("ipc: ftruncate grow: %w", err)
	}
	return r.remap()
}

func (r *region) close() error {
	if err := unix.Munmap(r.data); err != nil {
		return err
	}
	return unix.Close(r.fd)
}
