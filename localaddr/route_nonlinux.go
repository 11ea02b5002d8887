// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

//go:build !linux

package localaddr

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/tracebox/tracebox/common"
)

func routeInterface(_ netip.Addr) (string, error) {
	return "", fmt.Errorf("netlink route lookup unsupported on this platform")
}

func interfaceAddrs(iface string, _ bool) ([]netip.Addr, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("failed to find interface %s: %w", iface, err)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, fmt.Errorf("failed to list addrs for %s: %w", iface, err)
	}

	res := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if addr, ok := common.UnmappedAddrFromSlice(ipnet.IP); ok {
			res = append(res, addr)
		}
	}
	return res, nil
}
