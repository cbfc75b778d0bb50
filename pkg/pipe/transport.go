package pipe

import (
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// transport is one end of an open channel. Implementations wrap a net.Conn
// (and, on the creating side, the listener it was accepted from) so that a
// concurrent close unblocks any in-flight read or write.
type transport interface {
	readTimed(p []byte, timeout time.Duration) (int, error)
	writeTimed(p []byte, timeout time.Duration) (int, error)
	close() error
}

// deadlineFor translates the public timeout contract into a net deadline.
// A zero or negative timeout means wait forever.
func deadlineFor(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func readConn(conn net.Conn, p []byte, deadline time.Time) (int, error) {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, mapIOErr(err)
	}
	n, err := conn.Read(p)
	if err != nil {
		return n, mapIOErr(err)
	}
	return n, nil
}

func writeConn(conn net.Conn, p []byte, deadline time.Time) (int, error) {
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return 0, mapIOErr(err)
	}
	n, err := conn.Write(p)
	if err != nil {
		// A deadline can expire mid-transfer. Partial progress is a
		// success for the caller, only a zero-progress timeout is a
		// failure.
		if n > 0 && isTimeout(err) {
			return n, nil
		}
		return n, mapIOErr(err)
	}
	return n, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// mapIOErr folds transport errors into the package taxonomy.
func mapIOErr(err error) error {
	if err == nil {
		return nil
	}
	if mapped, ok := mapPlatformIOErr(err); ok {
		return mapped
	}
	if isTimeout(err) {
		return ErrTimeout
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return ErrDisconnected
	}
	return errors.Wrap(err, "pipe io")
}

// connTransport is the connecting side: a single dialed connection.
type connTransport struct {
	conn net.Conn
}

func (t *connTransport) readTimed(p []byte, timeout time.Duration) (int, error) {
	return readConn(t.conn, p, deadlineFor(timeout))
}

func (t *connTransport) writeTimed(p []byte, timeout time.Duration) (int, error) {
	return writeConn(t.conn, p, deadlineFor(timeout))
}

func (t *connTransport) close() error {
	return t.conn.Close()
}

// listenerTransport is the creating side. The listener is created eagerly so
// the name is claimed, while the peer connection is accepted in the
// background; reads and writes wait for it within their own deadline.
type listenerTransport struct {
	ln      net.Listener
	cleanup func()

	mu        sync.Mutex
	conn      net.Conn
	acceptErr error

	connReady chan struct{}
	done      chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func newListenerTransport(ln net.Listener, cleanup func()) *listenerTransport {
	t := &listenerTransport{
		ln:        ln,
		cleanup:   cleanup,
		connReady: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go t.accept()
	return t
}

func (t *listenerTransport) accept() {
	conn, err := t.ln.Accept()
	t.mu.Lock()
	select {
	case <-t.done:
		// Lost the race against close; drop the connection.
		if conn != nil {
			_ = conn.Close()
		}
		t.acceptErr = ErrClosed
	default:
		t.conn = conn
		t.acceptErr = mapAcceptErr(err)
	}
	t.mu.Unlock()
	close(t.connReady)
}

func mapAcceptErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return errors.Wrap(err, "accept pipe connection")
}

// waitConn blocks until the peer has connected, the deadline passes, or the
// transport is closed.
func (t *listenerTransport) waitConn(deadline time.Time) (net.Conn, error) {
	select {
	case <-t.connReady:
	default:
		var expired <-chan time.Time
		if !deadline.IsZero() {
			timer := time.NewTimer(time.Until(deadline))
			defer timer.Stop()
			expired = timer.C
		}
		select {
		case <-t.connReady:
		case <-expired:
			return nil, ErrTimeout
		case <-t.done:
			return nil, ErrClosed
		}
	}

	t.mu.Lock()
	conn, err := t.conn, t.acceptErr
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (t *listenerTransport) readTimed(p []byte, timeout time.Duration) (int, error) {
	deadline := deadlineFor(timeout)
	conn, err := t.waitConn(deadline)
	if err != nil {
		return 0, err
	}
	return readConn(conn, p, deadline)
}

func (t *listenerTransport) writeTimed(p []byte, timeout time.Duration) (int, error) {
	deadline := deadlineFor(timeout)
	conn, err := t.waitConn(deadline)
	if err != nil {
		return 0, err
	}
	return writeConn(conn, p, deadline)
}

func (t *listenerTransport) close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.closeErr = t.ln.Close()
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		if t.cleanup != nil {
			t.cleanup()
		}
	})
	return t.closeErr
}
