// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build linux

package transport

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// sinkLinux writes complete IP datagrams on a raw socket with the header
// include option set.
type sinkLinux struct {
	sock    *os.File
	rawConn syscall.RawConn
}

var _ Sink = &sinkLinux{}

func newSinkLinux(iface string, ipv6 bool) (Sink, error) {
	domain, level, hdrincl := unix.AF_INET, unix.IPPROTO_IP, unix.IP_HDRINCL
	if ipv6 {
		domain, level, hdrincl = unix.AF_INET6, unix.IPPROTO_IPV6, unix.IPV6_HDRINCL
	}

	fd, err := unix.Socket(domain, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create raw socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, level, hdrincl, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to set header include option: %w", err)
	}
	if iface != "" {
		if err := unix.SetsockoptString(fd, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, iface); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("failed to bind raw socket to %s: %w", iface, err)
		}
	}

	sock := os.NewFile(uintptr(fd), "")
	rawConn, err := sock.SyscallConn()
	if err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to get raw connection: %w", err)
	}

	return &sinkLinux{
		sock:    sock,
		rawConn: rawConn,
	}, nil
}

func getSockAddr(addr netip.Addr) (unix.Sockaddr, error) {
	switch {
	case addr.Is4():
		return &unix.SockaddrInet4{Addr: addr.As4()}, nil
	case addr.Is6():
		return &unix.SockaddrInet6{Addr: addr.As16()}, nil
	default:
		return nil, fmt.Errorf("invalid IP address %s", addr)
	}
}

// WriteTo implements Sink. buf starts at the IP header.
func (p *sinkLinux) WriteTo(buf []byte, addr netip.Addr) error {
	sa, err := getSockAddr(addr)
	if err != nil {
		return err
	}

	writeErr := p.rawConn.Write(func(fd uintptr) bool {
		err = unix.Sendto(int(fd), buf, 0, sa)
		if err == nil {
			return true
		}

		return !(err == syscall.EAGAIN || err == syscall.EWOULDBLOCK)
	})

	return errors.Join(writeErr, err)
}

// Close implements Sink.
func (p *sinkLinux) Close() error {
	return p.sock.Close()
}
