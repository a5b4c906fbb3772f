//go:build linux

package sys

import (
	"os"
	"syscall"
)

// ListenStream opens a non-blocking listening stream socket.
func ListenStream(network string, address string, backlog int) (fd *Fd, err error) {
	addr, family, ipv6only, resolveErr := ResolveStreamAddr(network, address)
	if resolveErr != nil {
		err = resolveErr
		return
	}
	sock, sockErr := syscall.Socket(family, syscall.SOCK_STREAM|syscall.SOCK_NONBLOCK|syscall.SOCK_CLOEXEC, 0)
	if sockErr != nil {
		err = os.NewSyscallError("socket", sockErr)
		return
	}
	fd = NewFd(network, sock, family, syscall.SOCK_STREAM)
	if err = fd.SetIpv6only(ipv6only); err != nil {
		_ = fd.Close()
		fd = nil
		return
	}
	if err = fd.AllowReuseAddr(); err != nil {
		_ = fd.Close()
		fd = nil
		return
	}
	if err = fd.Bind(addr); err != nil {
		_ = fd.Close()
		fd = nil
		return
	}
	if backlog < 1 {
		backlog = MaxListenerBacklog()
	}
	if listenErr := syscall.Listen(sock, backlog); listenErr != nil {
		_ = fd.Close()
		fd = nil
		err = os.NewSyscallError("listen", listenErr)
		return
	}
	if err = fd.LoadLocalAddr(); err != nil {
		_ = fd.Close()
		fd = nil
		return
	}
	return
}

// Accept takes one pending connection off a listening socket and
// makes it non-blocking. Would-block and interrupt surface as raw
// errno, the caller drives the retry policy.
func Accept(ln *Fd) (fd *Fd, err error) {
	nfd, sa, acceptErr := syscall.Accept4(ln.Socket(), syscall.SOCK_NONBLOCK|syscall.SOCK_CLOEXEC)
	if acceptErr != nil {
		err = os.NewSyscallError("accept4", acceptErr)
		return
	}
	fd = NewFd(ln.Net(), nfd, ln.Family(), ln.SocketType())
	if err = fd.LoadLocalAddr(); err != nil {
		_ = fd.Close()
		fd = nil
		return
	}
	fd.SetRemoteAddr(SockaddrToAddr(ln.Net(), sa))
	return
}

// ConnectStream opens a stream connection, blocking for connection
// establishment only, then switches the socket to non-blocking.
func ConnectStream(network string, address string) (fd *Fd, err error) {
	addr, family, ipv6only, resolveErr := ResolveStreamAddr(network, address)
	if resolveErr != nil {
		err = resolveErr
		return
	}
	sock, sockErr := syscall.Socket(family, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if sockErr != nil {
		err = os.NewSyscallError("socket", sockErr)
		return
	}
	fd = NewFd(network, sock, family, syscall.SOCK_STREAM)
	if err = fd.SetIpv6only(ipv6only); err != nil {
		_ = fd.Close()
		fd = nil
		return
	}
	sa, saErr := AddrToSockaddr(family, addr)
	if saErr != nil {
		_ = fd.Close()
		fd = nil
		err = saErr
		return
	}
	if connectErr := syscall.Connect(sock, sa); connectErr != nil {
		_ = fd.Close()
		fd = nil
		err = os.NewSyscallError("connect", connectErr)
		return
	}
	if err = fd.SetNonblock(true); err != nil {
		_ = fd.Close()
		fd = nil
		return
	}
	if err = fd.LoadLocalAddr(); err != nil {
		_ = fd.Close()
		fd = nil
		return
	}
	if err = fd.LoadRemoteAddr(); err != nil {
		_ = fd.Close()
		fd = nil
		return
	}
	return
}
