package sys

import (
	"net"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func NewFd(network string, sock int, family int, sotype int) (fd *Fd) {
	fd = &Fd{
		sock:   sock,
		family: family,
		sotype: sotype,
		net:    network,
		laddr:  nil,
		raddr:  nil,
	}
	return
}

// Fd wraps a non-blocking socket.
type Fd struct {
	sock   int
	family int
	sotype int
	net    string
	laddr  net.Addr
	raddr  net.Addr
}

func (fd *Fd) Name() string {
	var ls, rs string
	if fd.laddr != nil {
		ls = fd.laddr.String()
	}
	if fd.raddr != nil {
		rs = fd.raddr.String()
	}
	return fd.net + ":" + ls + "->" + rs
}

func (fd *Fd) Socket() int {
	return fd.sock
}

func (fd *Fd) Family() int {
	return fd.family
}

func (fd *Fd) SocketType() int {
	return fd.sotype
}

func (fd *Fd) Net() string {
	return fd.net
}

func (fd *Fd) ZeroReadIsEOF() bool {
	return fd.sotype != syscall.SOCK_DGRAM && fd.sotype != syscall.SOCK_RAW
}

func (fd *Fd) LocalAddr() net.Addr {
	return fd.laddr
}

func (fd *Fd) SetLocalAddr(addr net.Addr) {
	fd.laddr = addr
}

func (fd *Fd) LoadLocalAddr() (err error) {
	sa, saErr := syscall.Getsockname(fd.sock)
	if saErr != nil {
		err = os.NewSyscallError("getsockname", saErr)
		return
	}
	fd.laddr = SockaddrToAddr(fd.net, sa)
	return
}

func (fd *Fd) RemoteAddr() net.Addr {
	return fd.raddr
}

func (fd *Fd) SetRemoteAddr(addr net.Addr) {
	fd.raddr = addr
}

func (fd *Fd) LoadRemoteAddr() (err error) {
	sa, saErr := syscall.Getpeername(fd.sock)
	if saErr != nil {
		err = os.NewSyscallError("getpeername", saErr)
		return
	}
	fd.raddr = SockaddrToAddr(fd.net, sa)
	return
}

func (fd *Fd) SetNonblock(nonblocking bool) error {
	if err := syscall.SetNonblock(fd.sock, nonblocking); err != nil {
		return os.NewSyscallError("setnonblock", err)
	}
	return nil
}

// Recv reads once from the socket. A zero count with nil error is
// end of stream. Would-block and interrupt come back as the raw
// errno wrapped in an os.SyscallError, so callers can errors.Is
// against unix.EAGAIN and unix.EINTR.
func (fd *Fd) Recv(p []byte) (n int, err error) {
	n, err = unix.Read(fd.sock, p)
	if err != nil {
		n = 0
		err = os.NewSyscallError("read", err)
		return
	}
	if n < 0 {
		n = 0
	}
	return
}

// Send writes once to the socket, with the same errno contract as Recv.
func (fd *Fd) Send(p []byte) (n int, err error) {
	n, err = unix.Write(fd.sock, p)
	if err != nil {
		n = 0
		err = os.NewSyscallError("write", err)
		return
	}
	if n < 0 {
		n = 0
	}
	return
}

func (fd *Fd) Close() error {
	return syscall.Close(fd.sock)
}

func (fd *Fd) CloseRead() error {
	return syscall.Shutdown(fd.sock, syscall.SHUT_RD)
}

func (fd *Fd) CloseWrite() error {
	return syscall.Shutdown(fd.sock, syscall.SHUT_WR)
}

func (fd *Fd) SetNoDelay(noDelay bool) error {
	if fd.sotype == syscall.SOCK_STREAM && (fd.family == syscall.AF_INET || fd.family == syscall.AF_INET6) {
		if err := syscall.SetsockoptInt(fd.sock, syscall.IPPROTO_TCP, syscall.TCP_NODELAY, boolint(noDelay)); err != nil {
			return os.NewSyscallError("setsockopt", err)
		}
	}
	return nil
}

func (fd *Fd) SetKeepAlive(keepalive bool) error {
	if err := syscall.SetsockoptInt(fd.sock, syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, boolint(keepalive)); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}

// defaultTCPKeepAliveIdle is a default constant value for TCP_KEEPIDLE.
// See go.dev/issue/31510 for details.
const defaultTCPKeepAliveIdle = 15 * time.Second

func (fd *Fd) SetKeepAlivePeriod(d time.Duration) error {
	if d == 0 {
		d = defaultTCPKeepAliveIdle
	} else if d < 0 {
		return nil
	}
	secs := int(roundDurationUp(d, time.Second))
	if err := syscall.SetsockoptInt(fd.sock, syscall.IPPROTO_TCP, syscall.TCP_KEEPIDLE, secs); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}

func (fd *Fd) SetIpv6only(ipv6only bool) error {
	if fd.family == syscall.AF_INET6 && fd.sotype != syscall.SOCK_RAW {
		if err := syscall.SetsockoptInt(fd.sock, syscall.IPPROTO_IPV6, syscall.IPV6_V6ONLY, boolint(ipv6only)); err != nil {
			return os.NewSyscallError("setsockopt", err)
		}
	}
	return nil
}

func (fd *Fd) AllowReuseAddr() error {
	if err := syscall.SetsockoptInt(fd.sock, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		return os.NewSyscallError("setsockopt", err)
	}
	return nil
}

func (fd *Fd) Bind(addr net.Addr) error {
	sa, saErr := AddrToSockaddr(fd.family, addr)
	if saErr != nil {
		return saErr
	}
	if err := syscall.Bind(fd.sock, sa); err != nil {
		return os.NewSyscallError("bind", err)
	}
	return nil
}

func roundDurationUp(d time.Duration, to time.Duration) time.Duration {
	return (d + to - 1) / to
}

func boolint(b bool) int {
	if b {
		return 1
	}
	return 0
}
