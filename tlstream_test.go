//go:build linux

package tlstream_test

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/brickingsoft/tlstream"
	"github.com/brickingsoft/tlstream/security/psk"
	"github.com/brickingsoft/tlstream/transport"
)

type echoHandler struct{}

func (h *echoHandler) OnOpen(conn *tlstream.Conn) {}

func (h *echoHandler) OnData(conn *tlstream.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if transport.IsTryAgain(err) {
				return
			}
			_ = conn.Close()
			return
		}
		if _, err = conn.Write(buf[:n]); err != nil && !transport.IsTryAgain(err) {
			_ = conn.Close()
			return
		}
	}
}

func (h *echoHandler) OnClose(conn *tlstream.Conn, cause error) {}

func TestListenPlainEcho(t *testing.T) {
	ln, err := tlstream.Listen("tcp", "127.0.0.1:0", &echoHandler{})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	msg := []byte("plain echo\n")
	if _, err = conn.Write(msg); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(msg))
	if _, err = io.ReadFull(conn, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("echo = %q", got)
	}
}

func TestListenSecuredEcho(t *testing.T) {
	sc, err := psk.NewContext(psk.Config{PSK: []byte("0123456789abcdef")})
	if err != nil {
		t.Fatal(err)
	}
	ln, err := tlstream.Listen("tcp", "127.0.0.1:0", &echoHandler{}, tlstream.WithSecurity(sc))
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	// A blocking socket is a BIO that never suspends, the handshake
	// completes in one call.
	engine, err := sc.Client(conn)
	if err != nil {
		t.Fatal(err)
	}
	if err = engine.Handshake(); err != nil {
		t.Fatalf("handshake = %v", err)
	}

	msg := []byte("secured echo across the reactor")
	if _, err = engine.Write(msg); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 0, len(msg))
	buf := make([]byte, 4096)
	for len(got) < len(msg) {
		n, rerr := engine.Read(buf)
		if rerr != nil {
			t.Fatalf("read = %v", rerr)
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, msg) {
		t.Fatalf("echo = %q", got)
	}

	_ = engine.Shutdown()
	_ = engine.Close()
}

func TestListenRejectsNilHandler(t *testing.T) {
	if _, err := tlstream.Listen("tcp", "127.0.0.1:0", nil); err == nil {
		t.Fatal("expected handler requirement")
	}
}

func TestDialSecuredEcho(t *testing.T) {
	sc, err := psk.NewContext(psk.Config{PSK: []byte("0123456789abcdef")})
	if err != nil {
		t.Fatal(err)
	}
	ln, err := tlstream.Listen("tcp", "127.0.0.1:0", &echoHandler{}, tlstream.WithSecurity(sc))
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	res := &dialResult{done: make(chan struct{})}
	msg := []byte("dialed and echoed")

	client := &dialHandler{msg: msg, res: res}
	if _, err = tlstream.Dial("tcp", ln.Addr().String(), client, tlstream.WithSecurity(sc)); err != nil {
		t.Fatal(err)
	}

	select {
	case <-res.done:
	case <-time.After(5 * time.Second):
		t.Fatal("no echo within deadline")
	}
	if res.err != nil {
		t.Fatal(res.err)
	}
	if !bytes.Equal(res.got, msg) {
		t.Fatalf("echo = %q", res.got)
	}
}

type dialResult struct {
	got  []byte
	err  error
	done chan struct{}
}

type dialHandler struct {
	msg  []byte
	sent bool
	res  *dialResult
}

func (h *dialHandler) OnOpen(conn *tlstream.Conn) {}

func (h *dialHandler) OnData(conn *tlstream.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			h.res.got = append(h.res.got, buf[:n]...)
		}
		if err != nil {
			if !transport.IsTryAgain(err) {
				h.fail(err, conn)
				return
			}
			break
		}
	}
	// A suspended write just retries on the next readiness round.
	if !h.sent {
		if _, err := conn.Write(h.msg); err == nil {
			h.sent = true
		} else if !transport.IsTryAgain(err) {
			h.fail(err, conn)
			return
		}
	}
	if len(h.res.got) >= len(h.msg) {
		close(h.res.done)
		_ = conn.Close()
	}
}

func (h *dialHandler) OnClose(conn *tlstream.Conn, cause error) {}

func (h *dialHandler) fail(err error, conn *tlstream.Conn) {
	h.res.err = err
	close(h.res.done)
	_ = conn.Close()
}
