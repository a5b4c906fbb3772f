package sys

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// ResolveStreamAddr resolves a tcp or unix stream address and reports
// the socket family to open for it.
func ResolveStreamAddr(network string, address string) (addr net.Addr, family int, ipv6only bool, err error) {
	address = strings.TrimSpace(address)
	switch network {
	case "tcp", "tcp4", "tcp6":
		a, resolveErr := net.ResolveTCPAddr(network, address)
		if resolveErr != nil {
			err = resolveErr
			return
		}
		ipv6only = network == "tcp6"
		if !ipv6only && a.AddrPort().Addr().Is4In6() {
			a.IP = a.IP.To4()
		}
		switch len(a.IP) {
		case net.IPv4len:
			family = syscall.AF_INET
		case net.IPv6len:
			family = syscall.AF_INET6
		case 0:
			family = syscall.AF_INET
			a.IP = net.IPv4zero.To4()
		default:
			err = errors.New("sys: ip is invalid")
			return
		}
		addr = a
	case "unix":
		if address == "" {
			err = errors.New("sys: unix address is empty")
			return
		}
		family = syscall.AF_UNIX
		addr = &net.UnixAddr{Name: address, Net: network}
	default:
		err = errors.New("sys: network is not supported")
	}
	return
}

func SockaddrToAddr(network string, sa syscall.Sockaddr) (addr net.Addr) {
	switch a := sa.(type) {
	case *syscall.SockaddrInet4:
		addr = &net.TCPAddr{IP: append([]byte{}, a.Addr[:]...), Port: a.Port}
	case *syscall.SockaddrInet6:
		ip := append([]byte{}, a.Addr[:]...)
		var zone string
		if a.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(a.ZoneId)); err == nil {
				zone = ifi.Name
			}
		}
		addr = &net.TCPAddr{IP: ip, Port: a.Port, Zone: zone}
	case *syscall.SockaddrUnix:
		addr = &net.UnixAddr{Name: a.Name, Net: network}
	}
	return
}

func AddrToSockaddr(family int, addr net.Addr) (sa syscall.Sockaddr, err error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		if family == syscall.AF_INET6 {
			sa6 := &syscall.SockaddrInet6{Port: a.Port}
			copy(sa6.Addr[:], a.IP.To16())
			sa = sa6
			return
		}
		ip := a.IP.To4()
		if ip == nil {
			err = errors.New("sys: address is not an ipv4 address")
			return
		}
		sa4 := &syscall.SockaddrInet4{Port: a.Port}
		copy(sa4.Addr[:], ip)
		sa = sa4
	case *net.UnixAddr:
		sa = &syscall.SockaddrUnix{Name: a.Name}
	default:
		err = errors.New("sys: address type is not supported")
	}
	return
}
