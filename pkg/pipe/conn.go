package pipe

import (
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Conn adapts an open NamedPipe to the net.Conn interface so the pipe can
// feed anything that speaks net.Conn. Deadlines set on the Conn map to the
// pipe's per-call timeouts.
type Conn struct {
	pipe *NamedPipe

	mu            sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time
}

var _ net.Conn = &Conn{}

// NewConn wraps the given pipe. Closing the Conn closes the pipe.
func NewConn(p *NamedPipe) *Conn {
	return &Conn{pipe: p}
}

// Read implements net.Conn, reporting timeouts as os.ErrDeadlineExceeded
// and a disconnected peer as io.EOF.
func (c *Conn) Read(b []byte) (int, error) {
	timeout, err := c.timeoutFor(c.deadline(&c.readDeadline))
	if err != nil {
		return 0, err
	}
	n, err := c.pipe.Read(b, timeout)
	return n, translateConnErr(err, true)
}

// Write implements net.Conn.
func (c *Conn) Write(b []byte) (int, error) {
	timeout, err := c.timeoutFor(c.deadline(&c.writeDeadline))
	if err != nil {
		return 0, err
	}
	n, err := c.pipe.Write(b, timeout)
	return n, translateConnErr(err, false)
}

// Close implements net.Conn.
func (c *Conn) Close() error {
	return c.pipe.Close()
}

// LocalAddr implements net.Conn.
func (c *Conn) LocalAddr() net.Addr {
	return pipeAddr{name: c.pipe.Name()}
}

// RemoteAddr implements net.Conn.
func (c *Conn) RemoteAddr() net.Addr {
	return pipeAddr{name: c.pipe.Name()}
}

// SetDeadline implements net.Conn.
func (c *Conn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	c.writeDeadline = t
	return nil
}

// SetReadDeadline implements net.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	return nil
}

// SetWriteDeadline implements net.Conn.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeDeadline = t
	return nil
}

func (c *Conn) deadline(field *time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *field
}

// timeoutFor converts a net.Conn deadline into a pipe timeout, with 0
// standing for no deadline.
func (c *Conn) timeoutFor(deadline time.Time) (time.Duration, error) {
	if deadline.IsZero() {
		return 0, nil
	}
	timeout := time.Until(deadline)
	if timeout <= 0 {
		return 0, os.ErrDeadlineExceeded
	}
	return timeout, nil
}

func translateConnErr(err error, read bool) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout):
		return os.ErrDeadlineExceeded
	case errors.Is(err, ErrClosed), errors.Is(err, ErrNotOpen):
		return net.ErrClosed
	case errors.Is(err, ErrDisconnected):
		if read {
			return io.EOF
		}
		return err
	default:
		return err
	}
}

type pipeAddr struct {
	name string
}

func (a pipeAddr) Network() string {
	return "pipe"
}

func (a pipeAddr) String() string {
	return a.name
}
