//go:build linux

package sys

import (
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"
)

func OpenEPoll() (*EPoll, error) {
	p, err := syscall.EpollCreate1(syscall.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	r0, _, e0 := syscall.Syscall(syscall.SYS_EVENTFD2, 0, 0, 0)
	if e0 != 0 {
		_ = syscall.Close(p)
		return nil, os.NewSyscallError("eventfd2", e0)
	}
	poll := &EPoll{fd: p, wfd: int(r0)}
	if addErr := poll.Add(poll.wfd, true, false); addErr != nil {
		_ = poll.Close()
		return nil, addErr
	}
	return poll, nil
}

// EPoll is a readiness poller with an eventfd wakeup channel.
type EPoll struct {
	fd     int
	wfd    int
	closed atomic.Bool
}

func (p *EPoll) Wakeup() error {
	var x uint64 = 1
	_, err := syscall.Write(p.wfd, (*(*[8]byte)(unsafe.Pointer(&x)))[:])
	return err
}

func epollEvents(readable bool, writable bool) (events uint32) {
	if readable {
		events |= syscall.EPOLLIN | syscall.EPOLLRDHUP
	}
	if writable {
		events |= syscall.EPOLLOUT
	}
	return
}

func (p *EPoll) Add(fd int, readable bool, writable bool) error {
	err := syscall.EpollCtl(p.fd, syscall.EPOLL_CTL_ADD, fd, &syscall.EpollEvent{
		Fd:     int32(fd),
		Events: epollEvents(readable, writable),
	})
	if err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

func (p *EPoll) Mod(fd int, readable bool, writable bool) error {
	err := syscall.EpollCtl(p.fd, syscall.EPOLL_CTL_MOD, fd, &syscall.EpollEvent{
		Fd:     int32(fd),
		Events: epollEvents(readable, writable),
	})
	if err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

func (p *EPoll) Del(fd int) error {
	err := syscall.EpollCtl(p.fd, syscall.EPOLL_CTL_DEL, fd, &syscall.EpollEvent{Fd: int32(fd)})
	if err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

// Wait invokes iter for every ready fd until Close is called.
// The wakeup eventfd is drained internally and never reported.
func (p *EPoll) Wait(iter func(fd int, readable bool, writable bool, hup bool)) error {
	events := make([]syscall.EpollEvent, 64)
	for {
		n, err := syscall.EpollWait(p.fd, events, -1)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			// Close may beat the waiter to the fd between
			// iterations, that is still a clean stop.
			if p.closed.Load() {
				return nil
			}
			return os.NewSyscallError("epoll_wait", err)
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == p.wfd {
				var data [8]byte
				_, _ = syscall.Read(p.wfd, data[:])
				continue
			}
			ev := events[i].Events
			readable := ev&(syscall.EPOLLIN|syscall.EPOLLPRI) != 0
			writable := ev&syscall.EPOLLOUT != 0
			hup := ev&(syscall.EPOLLHUP|syscall.EPOLLERR|syscall.EPOLLRDHUP) != 0
			iter(fd, readable, writable, hup)
		}
		if p.closed.Load() {
			return nil
		}
	}
}

func (p *EPoll) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = p.Wakeup()
	if err := syscall.Close(p.wfd); err != nil {
		return err
	}
	return syscall.Close(p.fd)
}
