package tlstream

import (
	stderrors "errors"
	"net"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/tlstream/transport"
)

func stdAs(err error, target any) bool {
	return stderrors.As(err, target)
}

var (
	ErrHandlerRequired = errors.Define("tlstream: handler is required")
	ErrListenerClosed  = errors.Define("tlstream: listener closed")
	ErrBusy            = errors.Define("tlstream: executors busy")
)

func IsClosed(err error) bool {
	var opErr *net.OpError
	if stdAs(err, &opErr) {
		err = opErr.Err
	}
	return errors.Is(err, ErrListenerClosed) || transport.IsClosed(err)
}

func IsBusy(err error) bool {
	var opErr *net.OpError
	if stdAs(err, &opErr) {
		err = opErr.Err
	}
	return errors.Is(err, ErrBusy) || errors.Is(err, rxp.ErrBusy)
}

const (
	opListen = "listen"
	opAccept = "accept"
	opDial   = "dial"
)

func newOpErr(op string, network string, laddr net.Addr, raddr net.Addr, err error) *net.OpError {
	return &net.OpError{
		Op:     op,
		Net:    network,
		Source: laddr,
		Addr:   raddr,
		Err:    err,
	}
}
