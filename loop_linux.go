//go:build linux

package tlstream

import (
	"context"
	"sync"

	"github.com/apex/log"
	"github.com/brickingsoft/tlstream/pkg/sys"
	"github.com/brickingsoft/tlstream/transport"
)

// EventLoop owns one poller and the connections sharded onto it.
// Callbacks and re-arming run on the loop goroutine, which is the
// single owner of every attached connection's I/O.
type EventLoop struct {
	poller  *sys.EPoll
	handler Handler
	log     log.Interface
	mu      sync.Mutex
	conns   map[int]*Conn
	// solo marks a loop serving exactly one dialed connection, its
	// poller dies with that connection.
	solo bool
}

func newEventLoop(handler Handler, logger log.Interface) (lp *EventLoop, err error) {
	poller, pollErr := sys.OpenEPoll()
	if pollErr != nil {
		err = pollErr
		return
	}
	lp = &EventLoop{
		poller:  poller,
		handler: handler,
		log:     logger,
		conns:   make(map[int]*Conn),
	}
	return
}

// Handle runs the readiness loop until the poller is closed. It is
// submitted to the executors as a task, the context carries nothing
// the poller wait can honor.
func (lp *EventLoop) Handle(_ context.Context) {
	lp.poller.Wait(func(fd int, readable bool, writable bool, hup bool) {
		c := lp.lookup(fd)
		if c == nil {
			return
		}
		if hup {
			_ = lp.detach(c, transport.ErrClosed)
			return
		}
		if writable {
			if err := c.duplex.Flush(); err != nil && !transport.IsTryAgain(err) {
				_ = lp.detach(c, err)
				return
			}
		}
		if readable {
			lp.handler.OnData(c)
		}
		if c.detached.Load() {
			return
		}
		lp.rearm(c)
	})
}

// register arms the connection. The first callbacks fire only after
// this returns.
func (lp *EventLoop) register(c *Conn) (err error) {
	fd := c.duplex.Fd()
	lp.mu.Lock()
	lp.conns[fd] = c
	lp.mu.Unlock()
	interest := c.duplex.Interest()
	if err = lp.poller.Add(fd, interest.Reads(), interest.Writes()); err != nil {
		lp.mu.Lock()
		delete(lp.conns, fd)
		lp.mu.Unlock()
	}
	return
}

func (lp *EventLoop) rearm(c *Conn) {
	interest := c.duplex.Interest()
	if err := lp.poller.Mod(c.duplex.Fd(), interest.Reads(), interest.Writes()); err != nil {
		_ = lp.detach(c, err)
	}
}

func (lp *EventLoop) lookup(fd int) (c *Conn) {
	lp.mu.Lock()
	c = lp.conns[fd]
	lp.mu.Unlock()
	return
}

// detach removes the connection, closes it and reports OnClose once.
func (lp *EventLoop) detach(c *Conn, cause error) (err error) {
	if !c.detached.CompareAndSwap(false, true) {
		return
	}
	fd := c.duplex.Fd()
	lp.mu.Lock()
	delete(lp.conns, fd)
	lp.mu.Unlock()
	_ = lp.poller.Del(fd)
	err = c.duplex.Close()
	lp.handler.OnClose(c, cause)
	if lp.solo {
		_ = lp.poller.Close()
	}
	return
}

// close shuts the poller down and detaches whatever is left.
func (lp *EventLoop) close(cause error) {
	_ = lp.poller.Close()
	lp.mu.Lock()
	leftover := make([]*Conn, 0, len(lp.conns))
	for _, c := range lp.conns {
		leftover = append(leftover, c)
	}
	lp.mu.Unlock()
	for _, c := range leftover {
		_ = lp.detach(c, cause)
	}
}
