// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package transport

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/tracebox/tracebox/packet"
)

// matcher recognizes replies to one probe: ICMP errors quoting it and direct
// answers from its destination.
type matcher struct {
	src, dst netip.Addr
	proto    packet.Protocol
	// ports for TCP and UDP, identifier and sequence for ICMP echo
	srcPort, dstPort uint16
	id, seq          uint16
}

func newMatcher(probe []byte) (*matcher, error) {
	p := packet.DecodeIP(probe)
	nl := p.NetworkLayer()
	if nl == nil {
		return nil, fmt.Errorf("probe has no IP header")
	}
	m := &matcher{
		src:   nl.Source(),
		dst:   nl.Destination(),
		proto: nl.TransportProtocol(),
	}

	layers := p.Layers()
	if len(layers) < 2 {
		return nil, fmt.Errorf("probe has no transport header")
	}
	switch l := layers[1].(type) {
	case *packet.TCP:
		m.srcPort, m.dstPort = l.SrcPort(), l.DstPort()
	case *packet.UDP:
		m.srcPort, m.dstPort = l.SrcPort(), l.DstPort()
	case *packet.ICMPv4:
		m.id, m.seq = l.ID(), l.Seq()
	case *packet.ICMPv6:
		m.id, m.seq = l.ID(), l.Seq()
	default:
		return nil, fmt.Errorf("cannot match replies to a %s probe", layers[1].Name())
	}
	return m, nil
}

// match reports whether data, starting with a first-protocol header, answers
// the probe.
func (m *matcher) match(data []byte, first packet.Protocol) bool {
	p := packet.Decode(data, first)
	nl := p.NetworkLayer()
	if nl == nil || nl.Destination() != m.src {
		return false
	}
	layers := p.Layers()
	i := p.Index(nl.Protocol())
	if i+1 >= len(layers) {
		return false
	}

	switch l := layers[i+1].(type) {
	case *packet.ICMPv4:
		if l.IsError() {
			return m.matchQuote(layers, i+2)
		}
		return m.proto == packet.ProtocolICMP && nl.Source() == m.dst && l.Type() == 0 && l.ID() == m.id && l.Seq() == m.seq
	case *packet.ICMPv6:
		if l.IsError() {
			return m.matchQuote(layers, i+2)
		}
		return m.proto == packet.ProtocolICMPv6 && nl.Source() == m.dst && l.Type() == 129 && l.ID() == m.id && l.Seq() == m.seq
	case *packet.TCP:
		return m.proto == packet.ProtocolTCP && nl.Source() == m.dst && l.SrcPort() == m.dstPort && l.DstPort() == m.srcPort
	case *packet.UDP:
		return m.proto == packet.ProtocolUDP && nl.Source() == m.dst && l.SrcPort() == m.dstPort && l.DstPort() == m.srcPort
	}
	return false
}

// matchQuote checks the quotation at layers[i] against the probe. Routers
// quote at least the first 8 bytes of the transport header, which hold the
// ports or the echo identifier. The quoted source address and source port
// are not compared: a NAT before the quoting router rewrites them.
func (m *matcher) matchQuote(layers []packet.Layer, i int) bool {
	if i >= len(layers) {
		return false
	}
	quote := layers[i].Bytes()
	q := packet.DecodeIP(quote)
	nl := q.NetworkLayer()
	if nl == nil || nl.Destination() != m.dst || nl.TransportProtocol() != m.proto {
		return false
	}

	hdrLen := 40
	if v4, ok := nl.(*packet.IPv4); ok {
		hdrLen = v4.HeaderLength()
	}
	if len(quote) < hdrLen+8 {
		return false
	}
	transport := quote[hdrLen:]
	switch m.proto {
	case packet.ProtocolTCP, packet.ProtocolUDP:
		return binary.BigEndian.Uint16(transport[2:4]) == m.dstPort
	default:
		return binary.BigEndian.Uint16(transport[4:6]) == m.id &&
			binary.BigEndian.Uint16(transport[6:8]) == m.seq
	}
}
