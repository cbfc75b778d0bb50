package cmd

import (
	"context"
	"io"
	"time"

	"github.com/loft-sh/log"
	"github.com/pkg/errors"
	"github.com/skevetter/pipecat/pkg/pipe"
	"golang.org/x/sync/errgroup"
)

const streamBufferSize = 32 * 1024

// shuttle copies in into the pipe and the pipe onto out until either side
// ends or the context is canceled. Closing the pipe is what unblocks the
// pipe loops. The input is pumped through an io.Pipe so that ending the
// session never has to wait on a read of in that will not return, such as
// an idle stdin after the peer disconnected.
func shuttle(ctx context.Context, p *pipe.NamedPipe, timeout time.Duration, in io.Reader, out io.Writer, logger log.Logger) error {
	stop := context.AfterFunc(ctx, func() { _ = p.Close() })
	defer stop()

	pr, pw := io.Pipe()
	go func() {
		_, err := io.Copy(pw, in)
		_ = pw.CloseWithError(err)
	}()
	defer func() { _ = pr.Close() }()

	eg := &errgroup.Group{}
	eg.Go(func() error {
		// Ending the pipe side releases the input loop as well.
		defer func() { _ = pr.Close() }()

		buf := make([]byte, streamBufferSize)
		for {
			n, err := p.Read(buf, timeout)
			if n > 0 {
				if _, werr := out.Write(buf[:n]); werr != nil {
					return errors.Wrap(werr, "write output")
				}
			}
			if err != nil {
				return endOfStream(err, logger)
			}
		}
	})
	eg.Go(func() error {
		// The input running dry ends the session for the peer as well.
		defer func() { _ = p.Close() }()

		buf := make([]byte, streamBufferSize)
		for {
			n, err := pr.Read(buf)
			if n > 0 {
				if werr := writeAll(p, buf[:n], timeout); werr != nil {
					return endOfStream(werr, logger)
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
					return nil
				}
				return errors.Wrap(err, "read input")
			}
		}
	})

	return eg.Wait()
}

// writeAll loops over partial writes; the pipe itself never retries.
func writeAll(p *pipe.NamedPipe, buf []byte, timeout time.Duration) error {
	for len(buf) > 0 {
		n, err := p.Write(buf, timeout)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func endOfStream(err error, logger log.Logger) error {
	if errors.Is(err, pipe.ErrClosed) || errors.Is(err, pipe.ErrDisconnected) {
		logger.Debugf("pipe ended: %v", err)
		return nil
	}
	return err
}
