// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package tracebox sends a probe with increasing TTLs and reports, for every
// hop, how the probe quoted back by the router differs from the one sent.
package tracebox

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/tracebox/tracebox/common"
	"github.com/tracebox/tracebox/diff"
	"github.com/tracebox/tracebox/log"
	"github.com/tracebox/tracebox/packet"
	"github.com/tracebox/tracebox/reconstruct"
)

// Tracebox runs the TTL loop. It holds no per-run state and may be reused.
type Tracebox struct {
	transport Transport
	resolver  Resolver
	finalize  Finalizer
}

// Option customizes a Tracebox.
type Option func(*Tracebox)

// WithFinalizer replaces packet.Finalize.
func WithFinalizer(f Finalizer) Option {
	return func(tb *Tracebox) {
		tb.finalize = f
	}
}

// New returns a Tracebox sending probes through transport.
func New(transport Transport, resolver Resolver, opts ...Option) *Tracebox {
	tb := &Tracebox{
		transport: transport,
		resolver:  resolver,
		finalize:  packet.Finalize,
	}
	for _, opt := range opts {
		opt(tb)
	}
	return tb
}

func (p Params) withDefaults() Params {
	if p.MinTTL == 0 {
		p.MinTTL = common.DefaultMinTTL
	}
	if p.MaxTTL == 0 {
		p.MaxTTL = common.DefaultMaxTTL
	}
	if p.Timeout <= 0 {
		p.Timeout = common.DefaultTimeout
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	return p
}

// Run probes the path to the destination of probe, one TTL at a time from
// params.MinTTL to params.MaxTTL, and hands every result to reporter. The
// hop count, addresses, lengths and checksums of probe are updated in place.
//
// Run stops after the iteration in which reporter returns Stop, the
// destination itself answers, or params.MaxTTL is reached. A *SetupError is
// returned when the probe could not be prepared.
func (tb *Tracebox) Run(ctx context.Context, probe *packet.Packet, params Params, reporter Reporter) (*Outcome, error) {
	params = params.withDefaults()
	if params.MinTTL > params.MaxTTL {
		return nil, setupError(ErrCodeInvalidRequest, nil, "min ttl %d is above max ttl %d", params.MinTTL, params.MaxTTL)
	}

	outcome, err := tb.setup(ctx, probe, params)
	if err != nil {
		return nil, err
	}
	log.Infof("tracebox to %s (%s) from %s on %s: %d hops max", outcome.Destination, params.Hostname, outcome.Source, outcome.Interface, params.MaxTTL)

	for ttl := params.MinTTL; ; ttl++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		responder, mods, err := tb.sendProbe(ctx, probe, ttl, outcome.Interface, params)
		if err != nil {
			return nil, err
		}
		verdict := reporter.OnProbeResult(ttl, responder, mods)
		outcome.TTL = ttl

		switch {
		case verdict == Stop:
			outcome.Reason = CallbackStop
		case responder == outcome.Destination:
			outcome.Reason = ReachedDestination
		case ttl >= params.MaxTTL:
			outcome.Reason = MaxTTLExceeded
		default:
			continue
		}
		log.Debugf("tracebox to %s ended at ttl %d: %s", outcome.Destination, ttl, outcome.Reason)
		return outcome, nil
	}
}

// setup resolves the destination, interface and, when unset, the source of
// probe and writes them into its network layer.
func (tb *Tracebox) setup(ctx context.Context, probe *packet.Packet, params Params) (*Outcome, error) {
	nl := probe.NetworkLayer()
	if nl == nil {
		return nil, setupError(ErrCodeInvalidRequest, nil, "the probe needs an IPv4 or IPv6 header")
	}
	ipv6 := nl.Protocol() == packet.ProtocolIPv6

	dst := nl.Destination()
	if common.IsUnset(dst) {
		if params.Hostname == "" {
			return nil, setupError(ErrCodeInvalidRequest, nil, "no destination given")
		}
		addr, err := tb.resolver.ResolveHostname(ctx, params.Hostname, ipv6)
		if err != nil {
			return nil, setupError(ErrCodeDNS, &DNSError{Host: params.Hostname, Err: err}, "cannot resolve destination")
		}
		dst = addr.Unmap()
	}
	if common.IsUnset(dst) || !common.SameFamily(dst, ipv6) {
		return nil, setupError(ErrCodeInvalidRequest, nil, "destination %s is not a usable %s address", dst, common.FamilyName(ipv6))
	}
	if err := nl.SetDestination(dst); err != nil {
		return nil, setupError(ErrCodeInvalidRequest, err, "cannot set destination")
	}

	iface := params.Interface
	if iface == "" {
		name, err := tb.resolver.DefaultInterface(dst)
		if err != nil || name == "" {
			return nil, setupError(ErrCodeNoInterface, err, "no interface routes to %s", dst)
		}
		iface = name
	}

	src := nl.Source()
	if common.IsUnset(src) {
		addr, err := tb.resolver.LocalAddress(iface, ipv6)
		if err != nil {
			return nil, setupError(ErrCodeNoSource, err, "no %s source address on %s", common.FamilyName(ipv6), iface)
		}
		src = addr.Unmap()
	}
	if common.IsUnset(src) || !common.SameFamily(src, ipv6) {
		return nil, setupError(ErrCodeNoSource, nil, "no %s source address on %s", common.FamilyName(ipv6), iface)
	}
	if err := nl.SetSource(src); err != nil {
		return nil, setupError(ErrCodeNoSource, err, "cannot set source")
	}

	return &Outcome{Source: src, Destination: dst, Interface: iface}, nil
}

// sendProbe sends probe once with the given TTL. A failed send is reported like
// a timeout.
func (tb *Tracebox) sendProbe(ctx context.Context, probe *packet.Packet, ttl uint8, iface string, params Params) (netip.Addr, *diff.PacketModifications, error) {
	probe.NetworkLayer().SetHopCount(ttl)
	data, err := tb.finalize(probe)
	if err != nil {
		return netip.Addr{}, nil, fmt.Errorf("failed to finalize probe for ttl %d: %w", ttl, err)
	}

	reply, err := tb.transport.SendAndWait(ctx, data, iface, params.Timeout, params.Retries)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return netip.Addr{}, nil, err
		}
		log.Warnf("ttl %d: probe failed: %s", ttl, err)
		return netip.Addr{}, nil, nil
	}
	if reply == nil {
		log.Tracef("ttl %d: no reply", ttl)
		return netip.Addr{}, nil, nil
	}

	first := reply.LinkType
	if first == 0 {
		first = packet.ProtocolIP
		if len(reply.Data) > 0 && reply.Data[0]>>4 == 6 {
			first = packet.ProtocolIPv6
		}
	}
	rcv := packet.Decode(reply.Data, first)
	var responder netip.Addr
	if nl := rcv.NetworkLayer(); nl != nil {
		responder = nl.Source().Unmap()
	}

	echo, err := reconstruct.Reconstruct(rcv)
	if err != nil {
		log.Debugf("ttl %d: reply from %s: %s", ttl, responder, err)
		return responder, diff.New(probe, nil), nil
	}
	mods := diff.New(probe, echo)
	log.TraceFunc(func() string {
		return fmt.Sprintf("ttl %d: reply from %s quoting %s: %s", ttl, responder, echo.Packet, mods)
	})
	return responder, mods, nil
}
