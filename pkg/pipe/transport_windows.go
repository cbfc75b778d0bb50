//go:build windows

package pipe

import (
	"syscall"
	"time"

	"github.com/Microsoft/go-winio"
	"github.com/pkg/errors"
)

const dialTimeout = 2 * time.Second

// Addr translates a logical pipe name into the OS-level address in the
// named pipe namespace.
func Addr(name string) string {
	return `\\.\pipe\` + name
}

// createNew listens on the named pipe. go-winio creates the first pipe
// instance with FILE_FLAG_FIRST_PIPE_INSTANCE, so the kernel enforces a
// single live creator per name regardless of mustNotExist; once the creator
// closes, the name is free for reuse.
func createNew(name string, mustNotExist bool) (transport, error) {
	ln, err := winio.ListenPipe(Addr(name), nil)
	if err != nil {
		if errors.Is(err, syscall.ERROR_ACCESS_DENIED) {
			return nil, ErrNameConflict
		}
		return nil, errors.Wrap(err, "create pipe")
	}
	return newListenerTransport(ln, nil), nil
}

func connectExisting(name string) (transport, error) {
	timeout := dialTimeout
	conn, err := winio.DialPipe(Addr(name), &timeout)
	if err != nil {
		if errors.Is(err, syscall.ERROR_FILE_NOT_FOUND) {
			return nil, ErrNotFound
		}
		if errors.Is(err, winio.ErrTimeout) {
			return nil, ErrTimeout
		}
		return nil, errors.Wrap(err, "connect pipe")
	}
	return &connTransport{conn: conn}, nil
}

func mapPlatformIOErr(err error) (error, bool) {
	if errors.Is(err, winio.ErrFileClosed) {
		return ErrClosed, true
	}
	if errors.Is(err, winio.ErrTimeout) {
		return ErrTimeout, true
	}
	return nil, false
}
