// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package tracebox

//go:generate mockgen -source=types.go -destination=mock_types.go -package=tracebox

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/tracebox/tracebox/diff"
	"github.com/tracebox/tracebox/packet"
)

// Reply is a packet received in answer to a probe.
type Reply struct {
	Data      []byte
	Timestamp time.Time
	// LinkType is the protocol of the first layer of Data, usually
	// packet.ProtocolIP or packet.ProtocolIPv6.
	LinkType packet.Protocol
}

// Transport sends one probe and waits for the packet answering it.
type Transport interface {
	// SendAndWait returns a nil Reply and a nil error when nothing matching
	// the probe arrived within timeout after retries attempts.
	SendAndWait(ctx context.Context, probe []byte, iface string, timeout time.Duration, retries int) (*Reply, error)
}

// Resolver resolves the addresses a probe is sent between.
type Resolver interface {
	ResolveHostname(ctx context.Context, hostname string, ipv6 bool) (netip.Addr, error)
	LocalAddress(iface string, ipv6 bool) (netip.Addr, error)
	DefaultInterface(dst netip.Addr) (string, error)
}

// Finalizer recomputes lengths and checksums and returns the wire bytes.
type Finalizer func(p *packet.Packet) ([]byte, error)

// Verdict is returned by a Reporter to continue or stop probing.
type Verdict int

const (
	Continue Verdict = iota
	Stop
)

// Reporter receives the result of every probe. responder is invalid and mods
// is nil when no reply arrived. mods.Received is nil when a reply arrived but
// did not quote the probe.
type Reporter interface {
	OnProbeResult(ttl uint8, responder netip.Addr, mods *diff.PacketModifications) Verdict
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ttl uint8, responder netip.Addr, mods *diff.PacketModifications) Verdict

func (f ReporterFunc) OnProbeResult(ttl uint8, responder netip.Addr, mods *diff.PacketModifications) Verdict {
	return f(ttl, responder, mods)
}

// Params configures a run.
type Params struct {
	// Hostname is resolved when the probe has no destination address.
	Hostname string
	// Interface is looked up from the routing table when empty.
	Interface string
	MinTTL    uint8
	MaxTTL    uint8
	Timeout   time.Duration
	Retries   int
}

// Reason tells why a run ended.
type Reason int

const (
	ReachedDestination Reason = iota + 1
	MaxTTLExceeded
	CallbackStop
)

func (r Reason) String() string {
	switch r {
	case ReachedDestination:
		return "reached_destination"
	case MaxTTLExceeded:
		return "max_ttl_exceeded"
	case CallbackStop:
		return "callback_stop"
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Outcome describes a completed run.
type Outcome struct {
	Reason      Reason
	TTL         uint8
	Source      netip.Addr
	Destination netip.Addr
	Interface   string
}
