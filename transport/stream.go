package transport

import (
	"io"
	"net"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/tlstream/pkg/bytebuffers"
	"github.com/brickingsoft/tlstream/pkg/sys"
	"golang.org/x/sys/unix"
)

const readChunk = 4096

func NewStream(fd *sys.Fd) *Stream {
	return &Stream{
		fd:       fd,
		inbound:  bytebuffers.Get(),
		outbound: bytebuffers.Get(),
	}
}

// Stream is a buffered non-blocking stream socket. Outgoing bytes
// accumulate in the outbound buffer until the fd is writable,
// incoming bytes are drained from the inbound buffer first.
type Stream struct {
	fd       *sys.Fd
	inbound  bytebuffers.Buffer
	outbound bytebuffers.Buffer
	closed   bool
}

func (s *Stream) Fd() int {
	return s.fd.Socket()
}

func (s *Stream) LocalAddr() (addr net.Addr) {
	return s.fd.LocalAddr()
}

func (s *Stream) RemoteAddr() (addr net.Addr) {
	return s.fd.RemoteAddr()
}

func (s *Stream) Read(p []byte) (n int, err error) {
	if s.closed {
		err = ErrClosed
		return
	}
	if len(p) == 0 {
		return
	}
	if s.inbound.Len() == 0 {
		if err = s.fill(); err != nil {
			return
		}
	}
	n, _ = s.inbound.Read(p)
	return
}

// fill pulls one chunk off the socket into the inbound buffer.
func (s *Stream) fill() (err error) {
	area, allocErr := s.inbound.Allocate(readChunk)
	if allocErr != nil {
		err = allocErr
		return
	}
	for {
		n, recvErr := s.fd.Recv(area)
		if recvErr != nil {
			if errors.Is(recvErr, unix.EINTR) {
				continue
			}
			_ = s.inbound.AllocatedWrote(0)
			if errors.Is(recvErr, unix.EAGAIN) {
				err = ErrTryAgain
				return
			}
			err = recvErr
			return
		}
		_ = s.inbound.AllocatedWrote(n)
		if n == 0 && s.fd.ZeroReadIsEOF() {
			err = io.EOF
		}
		return
	}
}

func (s *Stream) Write(p []byte) (n int, err error) {
	if s.closed {
		err = ErrClosed
		return
	}
	if len(p) == 0 {
		err = ErrEmptyBytes
		return
	}
	if n, err = s.outbound.Write(p); err != nil {
		n = 0
		return
	}
	if flushErr := s.Flush(); flushErr != nil && !IsTryAgain(flushErr) {
		n = 0
		err = flushErr
	}
	return
}

// Flush drains the outbound buffer. A would-block stops the drain
// and returns ErrTryAgain, the leftover keeps WriteInterest raised.
func (s *Stream) Flush() (err error) {
	if s.closed {
		return ErrClosed
	}
	for s.outbound.Len() > 0 {
		chunk := s.outbound.Peek(s.outbound.Len())
		n, sendErr := s.fd.Send(chunk)
		if sendErr != nil {
			if errors.Is(sendErr, unix.EINTR) {
				continue
			}
			if errors.Is(sendErr, unix.EAGAIN) {
				return ErrTryAgain
			}
			return sendErr
		}
		s.outbound.Discard(n)
	}
	return
}

// Buffered reports outbound bytes not yet handed to the kernel.
func (s *Stream) Buffered() int {
	return s.outbound.Len()
}

func (s *Stream) Interest() Interest {
	if s.closed {
		return 0
	}
	interest := ReadInterest
	if s.outbound.Len() > 0 {
		interest |= WriteInterest
	}
	return interest
}

func (s *Stream) Close() (err error) {
	if s.closed {
		return
	}
	s.closed = true
	err = s.fd.Close()
	bytebuffers.Put(s.inbound)
	bytebuffers.Put(s.outbound)
	s.inbound = nil
	s.outbound = nil
	return
}

// Raw exposes the unbuffered fd view of the stream. A protocol
// engine talks to the wire through it directly, the Stream buffers
// are never in its path.
func (s *Stream) Raw() *Raw {
	return &Raw{fd: s.fd}
}

// Raw reads and writes the socket without buffering. Would-block and
// interrupt surface as raw errno, end of stream as io.EOF.
type Raw struct {
	fd *sys.Fd
}

func (r *Raw) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return
	}
	n, err = r.fd.Recv(p)
	if err == nil && n == 0 && r.fd.ZeroReadIsEOF() {
		err = io.EOF
	}
	return
}

func (r *Raw) Write(p []byte) (n int, err error) {
	n, err = r.fd.Send(p)
	return
}
