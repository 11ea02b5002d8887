// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package reconstruct recovers the probe quoted by an ICMP error message in
// a form that can be compared with the probe that was sent.
package reconstruct

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tracebox/tracebox/log"
	"github.com/tracebox/tracebox/packet"
)

// ErrNotAnalyzable is returned for replies that do not quote a probe.
var ErrNotAnalyzable = errors.New("reply does not quote a probe")

// Echo is the probe as seen by the router that quoted it.
type Echo struct {
	// Packet is the quoted datagram cut to the length its own header
	// announces.
	Packet *packet.Packet
	// Partial is set when the quotation ends inside the TCP header or its
	// data, so that layers missing from Packet must not count as removed.
	Partial bool
	// Extensions holds the ICMP extension structure and any quoted bytes
	// found past the announced length.
	Extensions []packet.Layer
}

// Reconstruct extracts the quoted probe of an ICMP error reply. The reply is
// not modified and the returned Echo shares no memory with it.
func Reconstruct(reply *packet.Packet) (*Echo, error) {
	layers := reply.Layers()
	ni := -1
	for i, l := range layers {
		if _, ok := l.(packet.NetworkLayer); ok {
			ni = i
			break
		}
	}
	if ni < 0 {
		return nil, fmt.Errorf("%w: no network layer", ErrNotAnalyzable)
	}
	outer := layers[ni].(packet.NetworkLayer)

	if ni+1 >= len(layers) {
		return nil, fmt.Errorf("%w: no icmp layer", ErrNotAnalyzable)
	}
	quoteLen := 0
	switch icmp := layers[ni+1].(type) {
	case *packet.ICMPv4:
		if !icmp.IsError() {
			return nil, fmt.Errorf("%w: icmp type %d carries no quotation", ErrNotAnalyzable, icmp.Type())
		}
		quoteLen = icmp.QuoteLength()
	case *packet.ICMPv6:
		if !icmp.IsError() {
			return nil, fmt.Errorf("%w: icmpv6 type %d carries no quotation", ErrNotAnalyzable, icmp.Type())
		}
		if icmp.HasLength() {
			quoteLen = icmp.QuoteLength()
		}
	default:
		return nil, fmt.Errorf("%w: %s follows the network layer", ErrNotAnalyzable, layers[ni+1].Name())
	}

	if ni+2 >= len(layers) {
		return nil, fmt.Errorf("%w: empty quotation", ErrNotAnalyzable)
	}
	raw, ok := layers[ni+2].(*packet.Raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s follows the icmp layer", ErrNotAnalyzable, layers[ni+2].Name())
	}

	echo := &Echo{}
	for _, l := range layers[ni+3:] {
		echo.Extensions = append(echo.Extensions, l.Clone())
	}

	quote := bytes.Clone(raw.Payload())
	if quoteLen > 0 && quoteLen < len(quote) {
		echo.Extensions = append(echo.Extensions, packet.NewRaw(quote[quoteLen:]))
		quote = quote[:quoteLen]
	}

	family := packet.ProtocolIP
	if outer.Protocol() == packet.ProtocolIPv6 {
		family = packet.ProtocolIPv6
	}
	echo.Packet = packet.Decode(quote, family)

	inner := echo.Packet.NetworkLayer()
	if inner == nil {
		log.Debugf("quotation of %d bytes holds no %s header", len(quote), family)
		return echo, nil
	}

	canonical := inner.CanonicalLength()
	switch size := echo.Packet.Size(); {
	case size > canonical && canonical >= 0:
		echo.Packet = packet.Decode(quote[:canonical], family)
		echo.Extensions = append(echo.Extensions, packet.NewRaw(quote[canonical:]))
	case size < canonical && inner.TransportProtocol() == packet.ProtocolTCP:
		echo.Partial = true
		promotePartialTCP(echo.Packet)
	}
	return echo, nil
}

// promotePartialTCP turns the raw bytes following the network layer into a
// partial TCP header when the TCP header itself could not be decoded.
func promotePartialTCP(p *packet.Packet) {
	layers := p.Layers()
	for i, l := range layers {
		if _, ok := l.(packet.NetworkLayer); !ok {
			continue
		}
		if i+1 < len(layers) {
			if raw, ok := layers[i+1].(*packet.Raw); ok {
				p.Replace(i+1, packet.NewPartialTCP(raw.Payload()))
			}
		}
		return
	}
}
