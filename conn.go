package tlstream

import (
	"net"
	"sync/atomic"

	"github.com/apex/log"
	"github.com/brickingsoft/tlstream/transport"
)

// Handler receives reactor callbacks for one connection. All three
// callbacks for a given connection run on that connection's event
// loop goroutine, OnOpen excepted, which runs before the connection
// is armed so nothing races it.
type Handler interface {
	OnOpen(conn *Conn)
	// OnData fires when the connection is readable. A read returning
	// ErrTryAgain means the session suspended, just return and wait
	// for the next callback.
	OnData(conn *Conn)
	OnClose(conn *Conn, cause error)
}

// Conn is one accepted or dialed connection: a Duplex, either a plain
// stream or a secured session, tagged with an id for log correlation.
type Conn struct {
	id       string
	duplex   transport.Duplex
	loop     *EventLoop
	log      log.Interface
	detached atomic.Bool
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Log() log.Interface {
	return c.log
}

func (c *Conn) Fd() int {
	return c.duplex.Fd()
}

func (c *Conn) LocalAddr() net.Addr {
	return c.duplex.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.duplex.RemoteAddr()
}

func (c *Conn) Read(p []byte) (n int, err error) {
	return c.duplex.Read(p)
}

func (c *Conn) Write(p []byte) (n int, err error) {
	return c.duplex.Write(p)
}

func (c *Conn) Flush() (err error) {
	return c.duplex.Flush()
}

func (c *Conn) Interest() transport.Interest {
	return c.duplex.Interest()
}

// Close detaches the connection from its loop and releases it. Safe
// to call from inside a handler callback.
func (c *Conn) Close() (err error) {
	return c.loop.detach(c, nil)
}
