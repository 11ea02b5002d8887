// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package localaddr answers the address questions a tracebox run asks the
// host: what a hostname resolves to, which interface routes to a
// destination and which source address that interface carries.
package localaddr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tracebox/tracebox/cache"
	"github.com/tracebox/tracebox/common"
	"github.com/tracebox/tracebox/log"
	"github.com/tracebox/tracebox/tracebox"
)

const defaultDNSTTL = time.Minute

var lookupNetIP = net.DefaultResolver.LookupNetIP

// Resolver implements tracebox.Resolver on the host resolver and routing
// table.
type Resolver struct {
	// DNSTTL is how long resolved hostnames stay cached.
	DNSTTL time.Duration
}

var _ tracebox.Resolver = &Resolver{}

// ResolveHostname returns the first address of the requested family for
// hostname. IP literals are returned as is.
func (r *Resolver) ResolveHostname(ctx context.Context, hostname string, ipv6 bool) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(hostname); err == nil {
		return addr.Unmap(), nil
	}

	network := "ip4"
	if ipv6 {
		network = "ip6"
	}
	ttl := r.DNSTTL
	if ttl <= 0 {
		ttl = defaultDNSTTL
	}
	return cache.GetWithExpiration(cache.Key("dns", hostname, network), func() (netip.Addr, error) {
		addrs, err := lookupNetIP(ctx, network, hostname)
		if err != nil {
			return netip.Addr{}, err
		}
		for _, addr := range addrs {
			addr = addr.Unmap()
			if common.SameFamily(addr, ipv6) {
				return addr, nil
			}
		}
		return netip.Addr{}, fmt.Errorf("no %s address for %s", common.FamilyName(ipv6), hostname)
	}, ttl)
}

// LocalAddress returns the address of iface to use as the probe source.
func (r *Resolver) LocalAddress(iface string, ipv6 bool) (netip.Addr, error) {
	addrs, err := interfaceAddrs(iface, ipv6)
	if err != nil {
		return netip.Addr{}, err
	}
	addr, ok := pickSource(addrs, ipv6)
	if !ok {
		return netip.Addr{}, fmt.Errorf("interface %s has no %s address", iface, common.FamilyName(ipv6))
	}
	return addr, nil
}

// DefaultInterface returns the interface the kernel routes dst through.
func (r *Resolver) DefaultInterface(dst netip.Addr) (string, error) {
	name, err := routeInterface(dst)
	if err == nil {
		return name, nil
	}
	if isNetlinkOverflowError(err) {
		log.Debugf("route lookup for %s overflowed, falling back to dial: %s", dst, err)
	} else {
		log.Debugf("route lookup for %s failed, falling back to dial: %s", dst, err)
	}

	addr, conn, dialErr := ForHost(net.IP(dst.AsSlice()), common.DefaultPort)
	if dialErr != nil {
		return "", fmt.Errorf("failed to find the interface for %s: %w", dst, errors.Join(err, dialErr))
	}
	conn.Close()
	src, _ := common.UnmappedAddrFromSlice(addr.IP)
	return interfaceWithAddr(src)
}

// pickSource prefers routable addresses over link-local ones.
func pickSource(addrs []netip.Addr, ipv6 bool) (netip.Addr, bool) {
	var fallback netip.Addr
	for _, addr := range addrs {
		addr = addr.Unmap()
		if !common.SameFamily(addr, ipv6) || common.IsUnset(addr) {
			continue
		}
		if addr.IsLinkLocalUnicast() {
			if !fallback.IsValid() {
				fallback = addr
			}
			continue
		}
		return addr, true
	}
	return fallback, fallback.IsValid()
}

// ForHost takes in a destination IP and port and returns the local address
// the kernel would use to reach it. The returned connection should be closed
// by the caller.
func ForHost(destIP net.IP, destPort uint16) (*net.UDPAddr, net.Conn, error) {
	conn, err := net.Dial("udp", net.JoinHostPort(destIP.String(), strconv.Itoa(int(destPort))))
	if err != nil {
		return nil, nil, err
	}

	localUDPAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		conn.Close()
		return nil, nil, fmt.Errorf("invalid address type for %s: want %T, got %T", conn.LocalAddr(), localUDPAddr, conn.LocalAddr())
	}
	normalizeLoopbackSource(destIP, localUDPAddr)

	return localUDPAddr, conn, nil
}

// On macOS, dialing a loopback destination may return a non-loopback local
// address.
func normalizeLoopbackSource(destIP net.IP, addr *net.UDPAddr) {
	if destIP.IsLoopback() && addr != nil && !addr.IP.IsLoopback() {
		if destIP.To4() != nil {
			addr.IP = net.IPv4(127, 0, 0, 1)
		} else {
			addr.IP = net.IPv6loopback
		}
	}
}

var netInterfaces = net.Interfaces

func interfaceWithAddr(addr netip.Addr) (string, error) {
	ifaces, err := netInterfaces()
	if err != nil {
		return "", fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip, ok := common.UnmappedAddrFromSlice(ipnet.IP); ok && ip == addr {
				return iface.Name, nil
			}
		}
	}
	return "", fmt.Errorf("no interface carries %s", addr)
}

// isNetlinkOverflowError reports the ERANGE failures RouteGet returns on
// hosts with many routes, such as WireGuard policy routing.
func isNetlinkOverflowError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ERANGE) {
		return true
	}
	return strings.Contains(err.Error(), "numerical result out of range")
}
