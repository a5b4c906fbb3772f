//go:build linux

package tlstream

import (
	"context"

	"github.com/apex/log"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/tlstream/pkg/sys"
	"github.com/brickingsoft/tlstream/security"
	"github.com/brickingsoft/tlstream/transport"
	"github.com/google/uuid"
)

// Dial connects, switches the socket to non-blocking and runs the
// connection through the same readiness path as accepted ones, with a
// client-role session when a security context is configured. The
// returned Conn must only be used from handler callbacks once this
// returns, its loop owns the I/O.
func Dial(network string, address string, handler Handler, options ...Option) (c *Conn, err error) {
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
	logger := opt.Log
	if logger == nil {
		logger = log.Log
	}

	fd, connErr := sys.ConnectStream(network, address)
	if connErr != nil {
		err = newOpErr(opDial, network, nil, nil, connErr)
		return
	}
	if opt.NoDelay {
		_ = fd.SetNoDelay(true)
	}
	if period := opt.KeepAlivePeriod; period > 0 {
		_ = fd.SetKeepAlive(true)
		_ = fd.SetKeepAlivePeriod(period)
	}

	ts := transport.NewStream(fd)
	var duplex transport.Duplex = ts
	if opt.Security != nil {
		session, sessErr := security.NewClientSession(ts, opt.Security)
		if sessErr != nil {
			_ = ts.Close()
			err = sessErr
			return
		}
		duplex = session
	}

	lp, loopErr := newEventLoop(handler, logger)
	if loopErr != nil {
		_ = duplex.Close()
		err = loopErr
		return
	}
	lp.solo = true
	ctx := rxp.With(context.Background(), startupWith(opt.AsRxpOptions()))
	if executed := rxp.TryExecute(ctx, lp); !executed {
		_ = lp.poller.Close()
		_ = duplex.Close()
		err = errors.From(ErrBusy, errors.WithWrap(rxp.ErrBusy))
		return
	}

	c = &Conn{
		id:     uuid.NewString(),
		duplex: duplex,
		loop:   lp,
	}
	c.log = logger.WithField("conn", c.id).WithField("remote", addrString(fd.RemoteAddr()))

	handler.OnOpen(c)
	if c.detached.Load() {
		return
	}
	// The client speaks first, push the queued hello before polling.
	if flushErr := duplex.Flush(); flushErr != nil && !transport.IsTryAgain(flushErr) {
		_ = lp.detach(c, flushErr)
		err = flushErr
		c = nil
		return
	}
	if regErr := lp.register(c); regErr != nil {
		_ = lp.detach(c, regErr)
		err = regErr
		c = nil
	}
	return
}
