// Package pipe provides a cross-platform, goroutine-safe named pipe: a
// bidirectional byte-stream IPC channel addressed by a logical name. On
// Windows the channel is backed by a kernel named pipe, on unix-like systems
// by a unix domain socket. Callers supply the logical name only and must not
// assume a particular OS path; Addr reports the translated address.
package pipe

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// NamedPipe is one end of a named byte-stream channel. The zero value is a
// closed pipe, ready for CreateNewPipe or OpenExisting.
//
// A NamedPipe may be used from multiple goroutines: the classic pattern of
// one goroutine reading while another writes is supported, and Close may be
// called from any goroutine to interrupt blocked reads and writes.
type NamedPipe struct {
	mu   sync.RWMutex
	name string
	tr   transport
}

// New returns a closed NamedPipe.
func New() *NamedPipe {
	return &NamedPipe{}
}

// CreateNewPipe creates a new channel under the given name and claims the
// creating side of it. Any channel previously open on this instance is
// closed first, regardless of the outcome.
//
// With mustNotExist set the call fails with ErrNameConflict if the name is
// already claimed. Without it, a name left behind by a previous creator is
// reclaimed; a name held by another live creator cannot be taken on any
// platform and also fails with ErrNameConflict.
func (p *NamedPipe) CreateNewPipe(name string, mustNotExist bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()
	p.name = name

	tr, err := createNew(name, mustNotExist)
	if err != nil {
		return err
	}
	p.tr = tr
	return nil
}

// OpenExisting connects to a channel created by someone else. Any channel
// previously open on this instance is closed first, regardless of the
// outcome. Fails with ErrNotFound when no live creator holds the name.
func (p *NamedPipe) OpenExisting(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLocked()
	p.name = name

	tr, err := connectExisting(name)
	if err != nil {
		return err
	}
	p.tr = tr
	return nil
}

// Read reads up to len(p) bytes, blocking until at least one byte is
// available, the timeout elapses, the pipe is closed by another goroutine,
// or the peer disconnects. A timeout <= 0 means wait forever.
//
// Short reads are normal stream behavior and returned as-is; callers that
// need a fixed amount must loop. A timeout with zero bytes transferred
// returns ErrTimeout. Peer disconnect returns ErrDisconnected and
// transitions the instance to closed.
func (p *NamedPipe) Read(buf []byte, timeout time.Duration) (int, error) {
	p.mu.RLock()
	tr := p.tr
	p.mu.RUnlock()
	if tr == nil {
		return 0, ErrNotOpen
	}
	if len(buf) == 0 {
		return 0, nil
	}

	// The blocking wait happens outside the lock so a concurrent Close
	// can take the exclusive lock and interrupt it.
	n, err := tr.readTimed(buf, timeout)
	if errors.Is(err, ErrDisconnected) {
		p.dropTransport(tr)
	}
	return n, err
}

// Write writes up to len(p) bytes, blocking until the transport accepts
// them, the timeout elapses, the pipe is closed, or the peer disconnects.
// A timeout <= 0 means wait forever. Partial writes are surfaced, not
// retried; only a zero-progress timeout is reported as ErrTimeout.
func (p *NamedPipe) Write(buf []byte, timeout time.Duration) (int, error) {
	p.mu.RLock()
	tr := p.tr
	p.mu.RUnlock()
	if tr == nil {
		return 0, ErrNotOpen
	}
	if len(buf) == 0 {
		return 0, nil
	}

	n, err := tr.writeTimed(buf, timeout)
	if errors.Is(err, ErrDisconnected) {
		p.dropTransport(tr)
	}
	return n, err
}

// Close releases the underlying transport and interrupts any read or write
// blocked on it, which then returns ErrClosed in bounded time. Closing a
// closed pipe is a no-op.
func (p *NamedPipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

// IsOpen reports whether the pipe currently owns a transport.
func (p *NamedPipe) IsOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tr != nil
}

// Name returns the last name passed to CreateNewPipe or OpenExisting,
// whether or not that call succeeded. It persists across Close.
func (p *NamedPipe) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *NamedPipe) closeLocked() error {
	if p.tr == nil {
		return nil
	}
	err := p.tr.close()
	p.tr = nil
	return err
}

// dropTransport tears down the given transport if it is still the current
// one. Used when a read or write observes the peer disconnecting; the
// identity check keeps a stale IO call from closing a re-opened pipe.
func (p *NamedPipe) dropTransport(tr transport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tr == tr {
		_ = tr.close()
		p.tr = nil
	}
}
