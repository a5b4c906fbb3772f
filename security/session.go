package security

import (
	"io"
	"net"
	"sync/atomic"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/tlstream/transport"
	"golang.org/x/sys/unix"
)

// NewServerSession binds a fresh server-role engine to the stream.
// A setup failure is fatal, the connection is never established.
func NewServerSession(ts *transport.Stream, sc Context) (s *Session, err error) {
	return newSession(ts, sc, false)
}

// NewClientSession binds a fresh client-role engine to the stream.
func NewClientSession(ts *transport.Stream, sc Context) (s *Session, err error) {
	return newSession(ts, sc, true)
}

func newSession(ts *transport.Stream, sc Context, client bool) (s *Session, err error) {
	if ts == nil || sc == nil {
		err = errors.From(ErrSetup, errors.WithMeta(errMetaDiagnosticKey, "nil transport or context"))
		return
	}
	var (
		engine    Engine
		engineErr error
	)
	if client {
		engine, engineErr = sc.Client(ts.Raw())
	} else {
		engine, engineErr = sc.Server(ts.Raw())
	}
	if engineErr != nil {
		err = errors.From(ErrSetup, errors.WithWrap(engineErr))
		return
	}
	s = &Session{
		stream: ts,
		engine: engine,
	}
	return
}

// Session owns one engine handle for the life of a connection and
// exposes the same Duplex surface as the plain stream it composes.
//
// A session belongs to the one goroutine that owns its fd. The busy
// flag is a defensive check of that ownership, not a lock.
type Session struct {
	stream    *transport.Stream
	engine    Engine
	want      Want
	handshook bool
	closed    bool
	busy      atomic.Bool
}

func (s *Session) Fd() int {
	return s.stream.Fd()
}

func (s *Session) LocalAddr() (addr net.Addr) {
	return s.stream.LocalAddr()
}

func (s *Session) RemoteAddr() (addr net.Addr) {
	return s.stream.RemoteAddr()
}

// Want reports the engine's pending transport need.
func (s *Session) Want() Want {
	return s.want
}

// HandshakeDone reports whether the handshake has completed. Once
// true it never reverts for the life of the session.
func (s *Session) HandshakeDone() bool {
	return s.handshook
}

// Read decrypts up to len(p) bytes. While the handshake is pending
// it only advances the handshake and returns ErrTryAgain, the engine
// read path stays untouched. The peer's orderly close is io.EOF.
func (s *Session) Read(p []byte) (n int, err error) {
	if !s.enter() {
		err = errors.From(ErrSessionBusy)
		return
	}
	defer s.leave()
	if s.closed {
		err = transport.ErrClosed
		return
	}
	done, hsErr := s.handshake()
	if !done {
		err = hsErr
		return
	}
	if len(p) == 0 {
		return
	}
	// The step that completed the handshake may have left decrypted
	// bytes materialized in the engine, read them out right away.
	n, err = s.classify(s.engine.Read(p))
	return
}

// Write encrypts and flushes exactly len(p) bytes. A zero-length
// write is a caller bug and fails fast regardless of handshake state.
func (s *Session) Write(p []byte) (n int, err error) {
	if !s.enter() {
		err = errors.From(ErrSessionBusy)
		return
	}
	defer s.leave()
	if s.closed {
		err = transport.ErrClosed
		return
	}
	if len(p) == 0 {
		err = transport.ErrEmptyBytes
		return
	}
	done, hsErr := s.handshake()
	if !done {
		err = hsErr
		return
	}
	n, err = s.classify(s.engine.Write(p))
	return
}

// Flush advances a pending handshake, then drains the base stream.
// A suspended handshake is not an error here, the recorded want
// already steers the next poll round.
func (s *Session) Flush() (err error) {
	if !s.enter() {
		return errors.From(ErrSessionBusy)
	}
	defer s.leave()
	if s.closed {
		return transport.ErrClosed
	}
	done, hsErr := s.handshake()
	if !done {
		if transport.IsTryAgain(hsErr) {
			return nil
		}
		return hsErr
	}
	return s.stream.Flush()
}

// Interest returns the one direction the engine is starved on, which
// overrides whatever the base stream would report, or delegates to
// the stream default when the engine has no pending need.
func (s *Session) Interest() transport.Interest {
	switch s.want {
	case WantRead:
		return transport.ReadInterest
	case WantWrite:
		return transport.WriteInterest
	}
	return s.stream.Interest()
}

// Shutdown sends the close-notify equivalent. If the two-sided close
// is not complete it retries exactly once more, never waiting for an
// unresponsive peer beyond that.
func (s *Session) Shutdown() (err error) {
	if !s.enter() {
		return errors.From(ErrSessionBusy)
	}
	defer s.leave()
	if s.closed {
		return
	}
	return s.shutdown()
}

func (s *Session) shutdown() (err error) {
	err = s.engine.Shutdown()
	if err == nil || !shutdownRetryable(err) {
		return
	}
	// Complete the bidirectional shutdown.
	err = s.engine.Shutdown()
	if err != nil && shutdownRetryable(err) {
		err = nil
	}
	return
}

func shutdownRetryable(err error) bool {
	return IsShutdownIncomplete(err) || IsWantRead(err) || IsWantWrite(err) ||
		errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)
}

// Close tears the session down: best-effort shutdown, engine
// release, then the underlying stream. Teardown failures of the
// engine are swallowed.
func (s *Session) Close() (err error) {
	if !s.enter() {
		return errors.From(ErrSessionBusy)
	}
	defer s.leave()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.shutdown()
	_ = s.engine.Close()
	err = s.stream.Close()
	return
}

// handshake runs at most one handshake step while the handshake is
// pending. Signal interrupts are retried in place, never surfaced.
func (s *Session) handshake() (done bool, err error) {
	if s.handshook {
		done = true
		return
	}
	var hsErr error
	for {
		hsErr = s.engine.Handshake()
		if hsErr != nil && errors.Is(hsErr, unix.EINTR) {
			continue
		}
		break
	}
	if hsErr != nil {
		_, err = s.classify(0, hsErr)
		return
	}
	s.handshook = true
	done = true
	return
}

// classify is the single translation of an engine outcome into a
// caller result and the next want state.
func (s *Session) classify(n int, err error) (int, error) {
	if err == nil {
		// Success, reset so we can do either.
		s.want = WantNone
		return n, nil
	}
	switch {
	case errors.Is(err, ErrWantRead):
		s.want = WantRead
		return 0, errors.From(transport.ErrTryAgain, errors.WithWrap(err))
	case errors.Is(err, ErrWantWrite):
		s.want = WantWrite
		return 0, errors.From(transport.ErrTryAgain, errors.WithWrap(err))
	case errors.Is(err, ErrWantConnect), errors.Is(err, ErrWantAccept), errors.Is(err, ErrWantLookup):
		// Unexpected in this role, pass through as a suspension.
		return 0, errors.From(transport.ErrTryAgain, errors.WithWrap(err))
	case errors.Is(err, io.EOF):
		// Shutdown complete, we're disconnected.
		return 0, io.EOF
	case hasErrno(err):
		// Posix API error, let the caller handle.
		return 0, err
	case errors.Is(err, ErrFault), errors.Is(err, ErrUnexpectedEOF):
		return 0, err
	}
	// No errno and no diagnostic recorded.
	return 0, errors.From(ErrUnexpectedEOF, errors.WithWrap(err))
}

func (s *Session) enter() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Session) leave() {
	s.busy.Store(false)
}
