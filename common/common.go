// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package common contains defaults and address helpers shared by the probe
// builder, the controller and the front ends.
package common

import (
	"net/netip"
	"time"
)

const (
	DefaultMinTTL   = 1
	DefaultMaxTTL   = 64
	DefaultPort     = 80
	DefaultTimeout  = time.Second
	DefaultRetries  = 3
	DefaultProtocol = "tcp"
	DefaultWantV6   = false
	// DefaultProbeRate is the number of probes per second sent by the raw
	// transport.
	DefaultProbeRate    = 20
	DefaultReverseDns   = true
	DefaultLogLevel     = "info"
	DefaultServerListen = "127.0.0.1:3765"
)

// UnmappedAddrFromSlice is the same as netip.AddrFromSlice but it also gets rid of mapped ipv6 addresses.
func UnmappedAddrFromSlice(slice []byte) (netip.Addr, bool) {
	addr, ok := netip.AddrFromSlice(slice)
	return addr.Unmap(), ok
}

// IsUnset reports whether addr is the zero value or an unspecified address
// such as 0.0.0.0 or ::.
func IsUnset(addr netip.Addr) bool {
	return !addr.IsValid() || addr.IsUnspecified()
}

// SameFamily reports whether addr is an address of the requested family.
func SameFamily(addr netip.Addr, ipv6 bool) bool {
	addr = addr.Unmap()
	if ipv6 {
		return addr.Is6()
	}
	return addr.Is4()
}

// FamilyName returns "ipv6" or "ipv4".
func FamilyName(ipv6 bool) string {
	if ipv6 {
		return "ipv6"
	}
	return "ipv4"
}
