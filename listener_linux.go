//go:build linux

package tlstream

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/tlstream/pkg/sys"
	"github.com/brickingsoft/tlstream/security"
	"github.com/brickingsoft/tlstream/transport"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Listen opens a non-blocking stream listener and starts the event
// loops. Every accepted connection is wrapped in a stream, secured
// when a security context is configured, and handed to the handler.
func Listen(network string, address string, handler Handler, options ...Option) (ln *Listener, err error) {
	if handler == nil {
		err = errors.From(ErrHandlerRequired)
		return
	}
	opt := Options{}
	for _, option := range options {
		if err = option(&opt); err != nil {
			return
		}
	}
	if opt.ParallelLoops < 1 {
		if err = WithParallelLoops(0)(&opt); err != nil {
			return
		}
	}
	logger := opt.Log
	if logger == nil {
		logger = log.Log
	}
	backlog := opt.Backlog
	if backlog < 1 {
		backlog = sys.MaxListenerBacklog()
	}

	fd, listenErr := sys.ListenStream(network, address, backlog)
	if listenErr != nil {
		err = newOpErr(opListen, network, nil, nil, listenErr)
		return
	}
	poller, pollErr := sys.OpenEPoll()
	if pollErr != nil {
		_ = fd.Close()
		err = newOpErr(opListen, network, fd.LocalAddr(), nil, pollErr)
		return
	}

	ln = &Listener{
		network:  network,
		fd:       fd,
		handler:  handler,
		security: opt.Security,
		log:      logger,
		poller:   poller,
		opts:     opt,
	}

	ctx := rxp.With(context.Background(), startupWith(opt.AsRxpOptions()))
	loops := make([]*EventLoop, 0, opt.ParallelLoops)
	for i := 0; i < opt.ParallelLoops; i++ {
		lp, loopErr := newEventLoop(handler, logger)
		if loopErr != nil {
			err = loopErr
			break
		}
		loops = append(loops, lp)
		if executed := rxp.TryExecute(ctx, lp); !executed {
			err = errors.From(ErrBusy, errors.WithWrap(rxp.ErrBusy))
			break
		}
	}
	if err == nil {
		ln.loops = loops
		if addErr := poller.Add(fd.Socket(), true, false); addErr != nil {
			err = newOpErr(opListen, network, fd.LocalAddr(), nil, addErr)
		} else if executed := rxp.TryExecute(ctx, ln); !executed {
			err = errors.From(ErrBusy, errors.WithWrap(rxp.ErrBusy))
		}
	}
	if err != nil {
		_ = poller.Close()
		for _, lp := range loops {
			lp.close(errors.From(ErrListenerClosed))
		}
		_ = fd.Close()
		ln = nil
		return
	}
	logger.WithField("addr", fd.LocalAddr().String()).
		WithField("loops", len(loops)).
		Info("listening")
	return
}

type Listener struct {
	network  string
	fd       *sys.Fd
	handler  Handler
	security security.Context
	log      log.Interface
	poller   *sys.EPoll
	loops    []*EventLoop
	opts     Options
	next     atomic.Uint64
	closed   atomic.Bool
}

func (ln *Listener) Addr() net.Addr {
	return ln.fd.LocalAddr()
}

// Handle runs the accept loop until the listener is closed.
func (ln *Listener) Handle(_ context.Context) {
	ln.poller.Wait(func(_ int, readable bool, _ bool, _ bool) {
		if readable {
			ln.acceptReady()
		}
	})
}

func (ln *Listener) acceptReady() {
	for {
		cfd, err := sys.Accept(ln.fd)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if !ln.closed.Load() {
				ln.log.WithError(newOpErr(opAccept, ln.network, ln.fd.LocalAddr(), nil, err)).
					Error("accept failed")
			}
			return
		}
		ln.setup(cfd)
	}
}

func (ln *Listener) setup(cfd *sys.Fd) {
	if ln.opts.NoDelay {
		_ = cfd.SetNoDelay(true)
	}
	if period := ln.opts.KeepAlivePeriod; period > 0 {
		_ = cfd.SetKeepAlive(true)
		_ = cfd.SetKeepAlivePeriod(period)
	}

	ts := transport.NewStream(cfd)
	var duplex transport.Duplex = ts
	if ln.security != nil {
		session, sessErr := security.NewServerSession(ts, ln.security)
		if sessErr != nil {
			ln.log.WithError(sessErr).Error("session setup failed")
			_ = ts.Close()
			return
		}
		duplex = session
	}

	lp := ln.loops[ln.next.Add(1)%uint64(len(ln.loops))]
	c := &Conn{
		id:     uuid.NewString(),
		duplex: duplex,
		loop:   lp,
	}
	c.log = ln.log.WithField("conn", c.id).WithField("remote", addrString(cfd.RemoteAddr()))

	ln.handler.OnOpen(c)
	if c.detached.Load() {
		return
	}
	// Kick any queued handshake output before the first poll round.
	if err := duplex.Flush(); err != nil && !transport.IsTryAgain(err) {
		_ = lp.detach(c, err)
		return
	}
	if err := lp.register(c); err != nil {
		_ = lp.detach(c, err)
	}
}

// Close stops accepting, closes the loops and every remaining
// connection. Idempotent.
func (ln *Listener) Close() (err error) {
	if !ln.closed.CompareAndSwap(false, true) {
		return
	}
	_ = ln.poller.Close()
	err = ln.fd.Close()
	cause := errors.From(ErrListenerClosed)
	for _, lp := range ln.loops {
		lp.close(cause)
	}
	ln.log.Info("listener closed")
	return
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
