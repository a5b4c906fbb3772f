package transport_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/brickingsoft/tlstream/pkg/sys"
	"github.com/brickingsoft/tlstream/transport"
	"golang.org/x/sys/unix"
)

func newStreamPair(t *testing.T) (local *transport.Stream, peer int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}
	local = transport.NewStream(sys.NewFd("unix", fds[0], unix.AF_UNIX, unix.SOCK_STREAM))
	peer = fds[1]
	t.Cleanup(func() {
		_ = local.Close()
		_ = unix.Close(peer)
	})
	return
}

func TestStreamRoundTrip(t *testing.T) {
	s, peer := newStreamPair(t)

	msg := []byte("hello over the wire")
	n, err := s.Write(msg)
	if err != nil || n != len(msg) {
		t.Fatalf("write = (%d, %v)", n, err)
	}
	got := make([]byte, 64)
	rn, rerr := unix.Read(peer, got)
	if rerr != nil || !bytes.Equal(got[:rn], msg) {
		t.Fatalf("peer got %q, %v", got[:rn], rerr)
	}

	if _, err = unix.Write(peer, []byte("pong")); err != nil {
		t.Fatal(err)
	}
	rn, err = s.Read(got)
	if err != nil || string(got[:rn]) != "pong" {
		t.Fatalf("read = (%q, %v)", got[:rn], err)
	}
}

func TestStreamReadSuspendsWhenEmpty(t *testing.T) {
	s, _ := newStreamPair(t)
	if _, err := s.Read(make([]byte, 8)); !transport.IsTryAgain(err) {
		t.Fatalf("expected try again, got %v", err)
	}
}

func TestStreamEmptyWriteRejected(t *testing.T) {
	s, _ := newStreamPair(t)
	if _, err := s.Write(nil); !transport.IsEmptyBytes(err) {
		t.Fatalf("expected empty bytes error, got %v", err)
	}
}

func TestStreamEOF(t *testing.T) {
	s, peer := newStreamPair(t)
	if _, err := unix.Write(peer, []byte("last")); err != nil {
		t.Fatal(err)
	}
	if err := unix.Shutdown(peer, unix.SHUT_WR); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 8)
	n, err := s.Read(buf)
	if err != nil || string(buf[:n]) != "last" {
		t.Fatalf("read = (%q, %v)", buf[:n], err)
	}
	if _, err = s.Read(buf); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestStreamInterestTracksBufferedOutbound(t *testing.T) {
	s, peer := newStreamPair(t)

	if got := s.Interest(); got != transport.ReadInterest {
		t.Fatalf("idle interest = %v", got)
	}

	chunk := make([]byte, 64*1024)
	for i := 0; i < 64 && s.Buffered() == 0; i++ {
		if _, err := s.Write(chunk); err != nil && !transport.IsTryAgain(err) {
			t.Fatal(err)
		}
	}
	if s.Buffered() == 0 {
		t.Skip("kernel buffer too large to congest")
	}
	if got := s.Interest(); !got.Reads() || !got.Writes() {
		t.Fatalf("congested interest = %v", got)
	}

	// Drain the peer until the leftover flushes.
	drain := make([]byte, 64*1024)
	for s.Buffered() > 0 {
		if _, err := unix.Read(peer, drain); err != nil && err != unix.EAGAIN {
			t.Fatal(err)
		}
		if err := s.Flush(); err != nil && !transport.IsTryAgain(err) {
			t.Fatal(err)
		}
	}
	if got := s.Interest(); got != transport.ReadInterest {
		t.Fatalf("drained interest = %v", got)
	}
}

func TestStreamClosedRejectsUse(t *testing.T) {
	s, _ := newStreamPair(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(make([]byte, 8)); !transport.IsClosed(err) {
		t.Fatalf("read after close = %v", err)
	}
	if _, err := s.Write([]byte("x")); !transport.IsClosed(err) {
		t.Fatalf("write after close = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("double close = %v", err)
	}
	if got := s.Interest(); got != 0 {
		t.Fatalf("interest after close = %v", got)
	}
}

func TestRawSurfacesErrnoAndEOF(t *testing.T) {
	s, peer := newStreamPair(t)
	raw := s.Raw()

	buf := make([]byte, 8)
	if _, err := raw.Read(buf); !errors.Is(err, unix.EAGAIN) {
		t.Fatalf("expected raw EAGAIN, got %v", err)
	}

	if _, err := unix.Write(peer, []byte("raw")); err != nil {
		t.Fatal(err)
	}
	n, err := raw.Read(buf)
	if err != nil || string(buf[:n]) != "raw" {
		t.Fatalf("raw read = (%q, %v)", buf[:n], err)
	}

	if err = unix.Shutdown(peer, unix.SHUT_WR); err != nil {
		t.Fatal(err)
	}
	if _, err = raw.Read(buf); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
