// Package transport provides the plain non-blocking byte stream a
// reactor drives by fd readiness. Secured sessions compose a Stream
// and expose the same Duplex surface, so a poll loop never needs to
// know whether a connection is encrypted.
package transport

import (
	"net"
)

type Reader interface {
	Read(p []byte) (n int, err error)
}

type Writer interface {
	Write(p []byte) (n int, err error)
}

// Duplex is the capability surface a reactor dispatches on.
//
// Read and Write never block: a suspended operation returns
// ErrTryAgain and the next Interest value names the readiness the
// caller must wait for before re-invoking.
type Duplex interface {
	Reader
	Writer
	Fd() int
	LocalAddr() (addr net.Addr)
	RemoteAddr() (addr net.Addr)
	Flush() (err error)
	Interest() Interest
	Close() (err error)
}
