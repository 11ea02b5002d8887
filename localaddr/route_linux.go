// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build linux

package localaddr

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"

	"github.com/tracebox/tracebox/common"
)

var (
	routeGet    = netlink.RouteGet
	linkByIndex = netlink.LinkByIndex
	linkByName  = netlink.LinkByName
	addrList    = netlink.AddrList
)

func routeInterface(dst netip.Addr) (string, error) {
	routes, err := routeGet(net.IP(dst.AsSlice()))
	if err != nil {
		return "", fmt.Errorf("netlink route lookup failed: %w", err)
	}
	for _, r := range routes {
		if r.LinkIndex <= 0 {
			continue
		}
		link, err := linkByIndex(r.LinkIndex)
		if err != nil {
			return "", fmt.Errorf("netlink failed to fetch link %d: %w", r.LinkIndex, err)
		}
		return link.Attrs().Name, nil
	}
	return "", fmt.Errorf("no route with an interface for %s", dst)
}

func interfaceAddrs(iface string, ipv6 bool) ([]netip.Addr, error) {
	link, err := linkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("netlink failed to find link %s: %w", iface, err)
	}
	family := netlink.FAMILY_V4
	if ipv6 {
		family = netlink.FAMILY_V6
	}
	addrs, err := addrList(link, family)
	if err != nil {
		return nil, fmt.Errorf("netlink failed to list addrs for %s: %w", iface, err)
	}

	res := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		if a.IPNet == nil {
			continue
		}
		if addr, ok := common.UnmappedAddrFromSlice(a.IP); ok {
			res = append(res, addr)
		}
	}
	return res, nil
}
