// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build linux

package transport

import (
	"fmt"
	"time"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/tracebox/tracebox/packet"
)

// sourceLinux reads packets from an AF_PACKET datagram socket bound to one
// interface, so the link header is already stripped.
type sourceLinux struct {
	fd       int
	deadline time.Time
}

var _ Source = &sourceLinux{}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

func newSourceLinux(iface string, proto packet.Protocol) (Source, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("failed to find interface %s: %w", iface, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create packet socket: %w", err)
	}

	filter, err := assembleReplyFilter(proto)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to assemble filter: %w", err)
	}
	prog := make([]unix.SockFilter, len(filter))
	for i, ins := range filter {
		prog[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	fprog := unix.SockFprog{Len: uint16(len(prog)), Filter: &prog[0]}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, &fprog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to attach filter: %w", err)
	}

	sll := &unix.SockaddrLinklayer{Protocol: htons(unix.ETH_P_ALL), Ifindex: link.Attrs().Index}
	if err := unix.Bind(fd, sll); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind packet socket to %s: %w", iface, err)
	}

	return &sourceLinux{fd: fd}, nil
}

// SetReadDeadline implements Source.
func (s *sourceLinux) SetReadDeadline(t time.Time) error {
	s.deadline = t
	return nil
}

// Read implements Source. Packets sent by this host are skipped.
func (s *sourceLinux) Read(buf []byte) (int, packet.Protocol, error) {
	for {
		if !s.deadline.IsZero() && time.Now().After(s.deadline) {
			return 0, 0, &NoPacketError{Err: fmt.Errorf("read deadline passed")}
		}
		tv := unix.NsecToTimeval(getReadTimeout(s.deadline).Nanoseconds())
		if err := unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			return 0, 0, fmt.Errorf("failed to set receive timeout: %w", err)
		}

		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR {
			return 0, 0, &NoPacketError{Err: err}
		}
		if err != nil {
			return 0, 0, fmt.Errorf("failed to receive: %w", err)
		}

		sll, ok := from.(*unix.SockaddrLinklayer)
		if !ok || sll.Pkttype == unix.PACKET_OUTGOING {
			continue
		}
		switch htons(sll.Protocol) {
		case unix.ETH_P_IP:
			return n, packet.ProtocolIP, nil
		case unix.ETH_P_IPV6:
			return n, packet.ProtocolIPv6, nil
		}
	}
}

// Close implements Source.
func (s *sourceLinux) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	return unix.Close(fd)
}
