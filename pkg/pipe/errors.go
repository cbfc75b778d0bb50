package pipe

import "github.com/pkg/errors"

// Sentinel errors returned by NamedPipe operations. Platform failures that
// don't fit one of these categories are wrapped with context instead of
// leaking raw OS codes.
var (
	// ErrNotOpen is returned by Read and Write when the pipe has no
	// underlying transport.
	ErrNotOpen = errors.New("pipe is not open")

	// ErrNameConflict is returned by CreateNewPipe when the name is
	// already claimed by a live creator, or by a leftover channel when
	// mustNotExist is set.
	ErrNameConflict = errors.New("pipe name already in use")

	// ErrNotFound is returned by OpenExisting when no creator holds the
	// given name.
	ErrNotFound = errors.New("pipe does not exist")

	// ErrTimeout is returned by Read and Write when the per-call timeout
	// elapsed with no bytes transferred.
	ErrTimeout = errors.New("pipe operation timed out")

	// ErrClosed is returned by a Read or Write that was interrupted by a
	// concurrent Close on the same instance.
	ErrClosed = errors.New("pipe closed")

	// ErrDisconnected is returned when the peer end of the pipe has gone
	// away. The instance reports IsOpen() == false afterwards.
	ErrDisconnected = errors.New("pipe peer disconnected")
)
