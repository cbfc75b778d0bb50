package pipe

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type NamedPipeSuite struct {
	suite.Suite

	name string
}

func TestNamedPipeSuite(t *testing.T) {
	suite.Run(t, new(NamedPipeSuite))
}

func (s *NamedPipeSuite) SetupTest() {
	s.name = "pipetest-" + uuid.NewString()[:8]
}

func (s *NamedPipeSuite) TestCreatePipe() {
	p := New()
	s.False(p.IsOpen(), "fresh pipe should be closed")

	s.NoError(p.CreateNewPipe(s.name, true), "first creator should win the name")
	s.True(p.IsOpen())

	// Re-creating on the same instance implicitly closes first, so the
	// name is free again.
	s.NoError(p.CreateNewPipe(s.name, false), "recreate after implicit close should succeed")
	s.True(p.IsOpen())

	other := New()
	s.ErrorIs(other.CreateNewPipe(s.name, true), ErrNameConflict, "second live creator must fail")
	s.False(other.IsOpen())

	s.NoError(p.Close())
}

func (s *NamedPipeSuite) TestCreateConflictWithoutMustNotExist() {
	p := New()
	s.NoError(p.CreateNewPipe(s.name, true))
	defer func() { _ = p.Close() }()

	// The name is held by a live creator, reclaiming it is not possible
	// on any platform.
	other := New()
	s.ErrorIs(other.CreateNewPipe(s.name, false), ErrNameConflict)
	s.False(other.IsOpen())
}

func (s *NamedPipeSuite) TestReuseAfterClose() {
	p := New()
	s.NoError(p.CreateNewPipe(s.name, true))
	s.NoError(p.Close())
	s.False(p.IsOpen())

	other := New()
	s.NoError(other.CreateNewPipe(s.name, false), "closed name should be reusable")
	s.True(other.IsOpen())
	s.NoError(other.Close())
}

func (s *NamedPipeSuite) TestOpenExisting() {
	p := New()
	s.ErrorIs(p.OpenExisting(s.name), ErrNotFound, "open without a creator should fail")
	s.False(p.IsOpen())

	creator := New()
	s.NoError(creator.CreateNewPipe(s.name, true))
	defer func() { _ = creator.Close() }()

	s.NoError(p.OpenExisting(s.name))
	s.True(p.IsOpen())
	s.NoError(p.Close())
}

func (s *NamedPipeSuite) TestNameRecordedOnFailure() {
	p := New()
	s.ErrorIs(p.OpenExisting(s.name), ErrNotFound)
	s.Equal(s.name, p.Name(), "name should record the last attempt, successful or not")

	s.NoError(p.Close())
	s.Equal(s.name, p.Name(), "name should persist across Close")
}

func (s *NamedPipeSuite) TestCloseIdempotent() {
	p := New()
	s.NoError(p.Close(), "closing a never-opened pipe is a no-op")
	s.False(p.IsOpen())

	s.NoError(p.CreateNewPipe(s.name, true))
	s.NoError(p.Close())
	s.NoError(p.Close())
	s.False(p.IsOpen())
}

func (s *NamedPipeSuite) TestReadWriteNotOpen() {
	p := New()
	buf := make([]byte, 8)

	_, err := p.Read(buf, time.Second)
	s.ErrorIs(err, ErrNotOpen)

	_, err = p.Write(buf, time.Second)
	s.ErrorIs(err, ErrNotOpen)
}

func (s *NamedPipeSuite) TestRoundTrip() {
	for _, size := range []int{1, 4, 4096} {
		creator := New()
		s.NoError(creator.CreateNewPipe(s.name, true))

		opener := New()
		s.NoError(opener.OpenExisting(s.name))

		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i)
		}

		written := make(chan int, 1)
		go func() {
			total := 0
			for total < size {
				n, err := creator.Write(payload[total:], 2*time.Second)
				if err != nil {
					break
				}
				total += n
			}
			written <- total
		}()

		received := make([]byte, 0, size)
		buf := make([]byte, size)
		for len(received) < size {
			n, err := opener.Read(buf, 2*time.Second)
			s.NoError(err, "read of %d byte payload", size)
			received = append(received, buf[:n]...)
		}

		s.Equal(size, <-written)
		s.True(bytes.Equal(payload, received), "%d byte payload should survive the round trip in order", size)

		s.NoError(opener.Close())
		s.NoError(creator.Close())
	}
}

func (s *NamedPipeSuite) TestReceiveOnCreatedPipe() {
	sendData := uint32(4684682)

	creator := New()
	s.NoError(creator.CreateNewPipe(s.name, true))
	defer func() { _ = creator.Close() }()

	senderDone := make(chan int, 1)
	go func() {
		sender := New()
		if err := sender.OpenExisting(s.name); err != nil {
			senderDone <- -1
			return
		}
		defer func() { _ = sender.Close() }()

		payload := make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, sendData)
		n, _ := sender.Write(payload, 2*time.Second)
		senderDone <- n
	}()

	buf := make([]byte, 4)
	n, err := creator.Read(buf, 2*time.Second)
	s.NoError(err)
	s.Equal(4, n)
	s.Equal(sendData, binary.LittleEndian.Uint32(buf))

	select {
	case sent := <-senderDone:
		s.Equal(4, sent)
	case <-time.After(4 * time.Second):
		s.Fail("sender did not finish")
	}
}

func (s *NamedPipeSuite) TestSendOnCreatedPipe() {
	sendData := uint32(4684682)

	creator := New()
	s.NoError(creator.CreateNewPipe(s.name, true))
	defer func() { _ = creator.Close() }()

	type recvResult struct {
		n    int
		data uint32
	}
	receiverDone := make(chan recvResult, 1)
	go func() {
		receiver := New()
		if err := receiver.OpenExisting(s.name); err != nil {
			receiverDone <- recvResult{n: -1}
			return
		}
		defer func() { _ = receiver.Close() }()

		buf := make([]byte, 4)
		n, _ := receiver.Read(buf, 2*time.Second)
		receiverDone <- recvResult{n: n, data: binary.LittleEndian.Uint32(buf)}
	}()

	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, sendData)
	n, err := creator.Write(payload, 2*time.Second)
	s.NoError(err)
	s.Equal(4, n)

	select {
	case got := <-receiverDone:
		s.Equal(4, got.n)
		s.Equal(sendData, got.data)
	case <-time.After(4 * time.Second):
		s.Fail("receiver did not finish")
	}
}

func (s *NamedPipeSuite) TestWriteSurfacesPartialProgress() {
	creator := New()
	s.NoError(creator.CreateNewPipe(s.name, true))
	defer func() { _ = creator.Close() }()

	opener := New()
	s.NoError(opener.OpenExisting(s.name))
	defer func() { _ = opener.Close() }()

	// Nobody reads, so a write far beyond the socket buffers cannot
	// complete. The bytes that did fit are a success, not a timeout.
	payload := make([]byte, 8<<20)
	n, err := creator.Write(payload, 300*time.Millisecond)
	s.NoError(err, "partial progress must be surfaced as success")
	s.Greater(n, 0)
	s.Less(n, len(payload))

	// The buffers are full now, so no progress is possible at all.
	start := time.Now()
	n, err = creator.Write(payload, 300*time.Millisecond)
	elapsed := time.Since(start)

	s.ErrorIs(err, ErrTimeout, "zero-progress timeout must fail")
	s.Equal(0, n)
	s.GreaterOrEqual(elapsed, 300*time.Millisecond)
	s.True(creator.IsOpen(), "a timeout is not a structural fault")
}

func (s *NamedPipeSuite) TestReadTimeoutWithoutPeer() {
	p := New()
	s.NoError(p.CreateNewPipe(s.name, true))
	defer func() { _ = p.Close() }()

	const timeout = 200 * time.Millisecond
	start := time.Now()
	_, err := p.Read(make([]byte, 8), timeout)
	elapsed := time.Since(start)

	s.ErrorIs(err, ErrTimeout)
	s.GreaterOrEqual(elapsed, timeout, "read should wait at least the requested timeout")
	s.Less(elapsed, timeout+2*time.Second, "read should not overshoot the timeout")
}

func (s *NamedPipeSuite) TestReadTimeoutWithIdlePeer() {
	creator := New()
	s.NoError(creator.CreateNewPipe(s.name, true))
	defer func() { _ = creator.Close() }()

	opener := New()
	s.NoError(opener.OpenExisting(s.name))
	defer func() { _ = opener.Close() }()

	const timeout = 200 * time.Millisecond
	start := time.Now()
	_, err := opener.Read(make([]byte, 8), timeout)
	elapsed := time.Since(start)

	s.ErrorIs(err, ErrTimeout)
	s.GreaterOrEqual(elapsed, timeout)
}

func (s *NamedPipeSuite) TestConcurrentCloseUnblocksRead() {
	creator := New()
	s.NoError(creator.CreateNewPipe(s.name, true))
	defer func() { _ = creator.Close() }()

	opener := New()
	s.NoError(opener.OpenExisting(s.name))

	readDone := make(chan error, 1)
	go func() {
		// Infinite timeout, only the concurrent Close can end this.
		_, err := opener.Read(make([]byte, 8), 0)
		readDone <- err
	}()

	time.Sleep(100 * time.Millisecond)
	s.NoError(opener.Close())

	select {
	case err := <-readDone:
		s.ErrorIs(err, ErrClosed)
	case <-time.After(3 * time.Second):
		s.Fail("blocked read was not unblocked by Close")
	}
	s.False(opener.IsOpen())
}

func (s *NamedPipeSuite) TestConcurrentCloseUnblocksCreatorRead() {
	// The creating side blocks waiting for a peer that never comes.
	creator := New()
	s.NoError(creator.CreateNewPipe(s.name, true))

	readDone := make(chan error, 1)
	go func() {
		_, err := creator.Read(make([]byte, 8), 0)
		readDone <- err
	}()

	time.Sleep(100 * time.Millisecond)
	s.NoError(creator.Close())

	select {
	case err := <-readDone:
		s.ErrorIs(err, ErrClosed)
	case <-time.After(3 * time.Second):
		s.Fail("blocked read was not unblocked by Close")
	}
}

func (s *NamedPipeSuite) TestPeerDisconnect() {
	creator := New()
	s.NoError(creator.CreateNewPipe(s.name, true))
	defer func() { _ = creator.Close() }()

	opener := New()
	s.NoError(opener.OpenExisting(s.name))

	// Make sure the creator side is connected before the peer goes away.
	payload := []byte("ping")
	n, err := opener.Write(payload, 2*time.Second)
	s.NoError(err)
	s.Equal(len(payload), n)

	buf := make([]byte, len(payload))
	n, err = creator.Read(buf, 2*time.Second)
	s.NoError(err)
	s.Equal(len(payload), n)

	s.NoError(opener.Close())

	_, err = creator.Read(buf, 2*time.Second)
	s.ErrorIs(err, ErrDisconnected)
	s.False(creator.IsOpen(), "disconnect should transition the instance to closed")

	_, err = creator.Read(buf, 2*time.Second)
	s.ErrorIs(err, ErrNotOpen, "further reads must fail fast")
}

func (s *NamedPipeSuite) TestConcurrentReadAndWrite() {
	creator := New()
	s.NoError(creator.CreateNewPipe(s.name, true))
	defer func() { _ = creator.Close() }()

	opener := New()
	s.NoError(opener.OpenExisting(s.name))
	defer func() { _ = opener.Close() }()

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	// One goroutine reading and one writing per instance, over the same
	// open pipe, in both directions at once.
	echo := func(p *NamedPipe, out []byte, results chan<- error) {
		go func() {
			total := 0
			for total < len(out) {
				n, err := p.Write(out[total:], 2*time.Second)
				if err != nil {
					results <- err
					return
				}
				total += n
			}
			results <- nil
		}()
		go func() {
			received := 0
			buf := make([]byte, len(out))
			for received < len(out) {
				n, err := p.Read(buf[received:], 2*time.Second)
				if err != nil {
					results <- err
					return
				}
				received += n
			}
			if !bytes.Equal(out, buf) {
				results <- ErrDisconnected
				return
			}
			results <- nil
		}()
	}

	results := make(chan error, 4)
	echo(creator, payload, results)
	echo(opener, payload, results)

	for i := 0; i < 4; i++ {
		select {
		case err := <-results:
			s.NoError(err)
		case <-time.After(5 * time.Second):
			s.Fail("concurrent read/write did not finish")
		}
	}
}

func (s *NamedPipeSuite) TestRepeatedCreateCloseDoesNotLeak() {
	p := New()
	for i := 0; i < 500; i++ {
		s.Require().NoError(p.CreateNewPipe(s.name, false), "iteration %d", i)
		s.Require().NoError(p.Close(), "iteration %d", i)
	}
	s.False(p.IsOpen())
}

func (s *NamedPipeSuite) TestZeroLengthBuffers() {
	creator := New()
	s.NoError(creator.CreateNewPipe(s.name, true))
	defer func() { _ = creator.Close() }()

	n, err := creator.Read(nil, time.Second)
	s.NoError(err)
	s.Equal(0, n)

	n, err = creator.Write(nil, time.Second)
	s.NoError(err)
	s.Equal(0, n)
}
