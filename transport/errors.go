package transport

import (
	"github.com/brickingsoft/errors"
)

var (
	ErrTryAgain   = errors.Define("transport: try again")
	ErrEmptyBytes = errors.Define("transport: empty bytes")
	ErrClosed     = errors.Define("transport: use of closed connection")
)

// IsTryAgain reports the suspend sentinel: the operation made no
// progress and must be retried once the Interest readiness is met.
func IsTryAgain(err error) bool {
	return errors.Is(err, ErrTryAgain)
}

func IsEmptyBytes(err error) bool {
	return errors.Is(err, ErrEmptyBytes)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
