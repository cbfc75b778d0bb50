//go:build !windows

package pipe

import (
	"net"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

const dialTimeout = 2 * time.Second

// Addr translates a logical pipe name into the OS-level address, a unix
// domain socket under the temp directory.
func Addr(name string) string {
	return filepath.Join(os.TempDir(), name+".sock")
}

func lockPath(name string) string {
	return Addr(name) + ".lock"
}

// createNew claims the name with a non-blocking flock on a sidecar lock
// file, then listens on the socket. The flock distinguishes a live creator
// (lock held, conflict either way) from a stale leftover socket (lock free,
// reclaimable unless mustNotExist).
func createNew(name string, mustNotExist bool) (transport, error) {
	sock := Addr(name)

	fl := flock.New(lockPath(name))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "claim pipe name")
	}
	if !locked {
		return nil, ErrNameConflict
	}

	if _, err := os.Stat(sock); err == nil {
		if mustNotExist {
			_ = fl.Unlock()
			return nil, ErrNameConflict
		}
		if err := os.Remove(sock); err != nil {
			_ = fl.Unlock()
			return nil, errors.Wrap(err, "remove stale pipe")
		}
	}

	ln, err := net.Listen("unix", sock)
	if err != nil {
		_ = fl.Unlock()
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, ErrNameConflict
		}
		return nil, errors.Wrap(err, "create pipe")
	}
	_ = os.Chmod(sock, 0o600)

	// The lock file stays behind on purpose: removing it would let a new
	// creator flock a fresh inode while another still holds the old one.
	cleanup := func() {
		_ = os.Remove(sock)
		_ = fl.Unlock()
	}
	return newListenerTransport(ln, cleanup), nil
}

func connectExisting(name string) (transport, error) {
	conn, err := net.DialTimeout("unix", Addr(name), dialTimeout)
	if err != nil {
		if errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, ErrNotFound
		}
		if isTimeout(err) {
			return nil, ErrTimeout
		}
		return nil, errors.Wrap(err, "connect pipe")
	}
	return &connTransport{conn: conn}, nil
}

func mapPlatformIOErr(err error) (error, bool) {
	return nil, false
}
