// tlsecho is a demo echo service over the PSK secure channel.
//
//	tlsecho -l :9090 --psk secret0123456789
//	tlsecho --connect 127.0.0.1:9090 --psk secret0123456789
//
// With --plain both sides skip the security layer, which shows the
// listener serving plain streams and sessions through the same
// surface.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/brickingsoft/tlstream"
	"github.com/brickingsoft/tlstream/security"
	"github.com/brickingsoft/tlstream/security/psk"
	"github.com/brickingsoft/tlstream/transport"
	"github.com/spf13/pflag"
)

func main() {
	var (
		listenAddr  string
		connectAddr string
		secret      string
		plain       bool
		verbose     bool
	)
	pflag.StringVarP(&listenAddr, "listen", "l", "", "serve echo on this address")
	pflag.StringVar(&connectAddr, "connect", "", "connect to an echo server")
	pflag.StringVar(&secret, "psk", "", "pre-shared key, 16 bytes or more")
	pflag.BoolVar(&plain, "plain", false, "skip the security layer")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pflag.Parse()

	log.SetHandler(cli.New(os.Stderr))
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	var sc security.Context
	if !plain {
		var err error
		if sc, err = psk.NewContext(psk.Config{PSK: []byte(secret)}); err != nil {
			log.WithError(err).Fatal("bad --psk")
		}
	}

	switch {
	case listenAddr != "":
		serve(listenAddr, sc)
	case connectAddr != "":
		connect(connectAddr, sc)
	default:
		pflag.Usage()
		os.Exit(2)
	}
}

func serve(addr string, sc security.Context) {
	options := []tlstream.Option{tlstream.WithNoDelay()}
	if sc != nil {
		options = append(options, tlstream.WithSecurity(sc))
	}
	ln, err := tlstream.Listen("tcp", addr, &echoHandler{}, options...)
	if err != nil {
		log.WithError(err).Fatal("listen failed")
	}
	defer func() {
		_ = ln.Close()
		_ = tlstream.ShutdownGracefully()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

type echoHandler struct{}

func (h *echoHandler) OnOpen(conn *tlstream.Conn) {
	conn.Log().Info("open")
}

func (h *echoHandler) OnData(conn *tlstream.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if transport.IsTryAgain(err) {
				return
			}
			if err != io.EOF {
				conn.Log().WithError(err).Warn("read failed")
			}
			_ = conn.Close()
			return
		}
		if _, err = conn.Write(buf[:n]); err != nil && !transport.IsTryAgain(err) {
			conn.Log().WithError(err).Warn("write failed")
			_ = conn.Close()
			return
		}
	}
}

func (h *echoHandler) OnClose(conn *tlstream.Conn, cause error) {
	if cause != nil {
		conn.Log().WithError(cause).Info("closed")
		return
	}
	conn.Log().Info("closed")
}

// connect runs a blocking client. A blocking net.Conn is a BIO that
// never suspends, so the engine handshake completes in one call.
func connect(addr string, sc security.Context) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		log.WithError(err).Fatal("connect failed")
	}
	defer conn.Close()

	var (
		w io.Writer = conn
		r io.Reader = conn
	)
	if sc != nil {
		engine, engineErr := sc.Client(conn)
		if engineErr != nil {
			log.WithError(engineErr).Fatal("engine setup failed")
		}
		if err = engine.Handshake(); err != nil {
			log.WithError(err).Fatal("handshake failed")
		}
		log.Debug("handshake complete")
		defer func() {
			_ = engine.Shutdown()
			_ = engine.Close()
		}()
		w, r = engineWriter{engine}, engineReader{engine}
	}

	in := bufio.NewScanner(os.Stdin)
	buf := make([]byte, 4096)
	for in.Scan() {
		line := append(in.Bytes(), '\n')
		if _, err = w.Write(line); err != nil {
			log.WithError(err).Fatal("write failed")
		}
		echoed := 0
		for echoed < len(line) {
			n, rerr := r.Read(buf)
			if rerr != nil {
				log.WithError(rerr).Fatal("read failed")
			}
			fmt.Print(string(buf[:n]))
			echoed += n
		}
	}
}

type engineWriter struct {
	engine security.Engine
}

func (w engineWriter) Write(p []byte) (int, error) {
	return w.engine.Write(p)
}

type engineReader struct {
	engine security.Engine
}

func (r engineReader) Read(p []byte) (int, error) {
	return r.engine.Read(p)
}
