// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packet

import (
	"encoding/binary"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// rfc4884Version is the only ICMP extension structure version in use.
const rfc4884Version = 2

// Decode parses data as a stack of layers starting with first. It never
// fails: bytes that cannot be decoded end up in a trailing Raw layer. The
// layers alias data.
func Decode(data []byte, first Protocol) *Packet {
	p := &Packet{}
	next := first
	linkFramed := false
	for len(data) > 0 {
		var (
			l    Layer
			rest []byte
			ok   bool
		)
		switch next {
		case ProtocolEthernet:
			l, rest, next, ok = decodeEthernet(data)
			linkFramed = true
		case ProtocolIP:
			l, rest, next, ok = decodeIPv4(data, linkFramed)
		case ProtocolIPv6:
			l, rest, next, ok = decodeIPv6(data, linkFramed)
		case ProtocolTCP:
			l, rest, next, ok = decodeTCP(data)
		case ProtocolUDP:
			l, rest, next, ok = decodeUDP(data)
		case ProtocolICMP:
			var icmp *ICMPv4
			icmp, rest, ok = decodeICMPv4(data)
			if ok {
				p.Push(icmp)
				if icmp.IsError() {
					p.layers = append(p.layers, splitQuotation(rest, icmp.QuoteLength())...)
					return p
				}
				l, next = nil, ProtocolRaw
			}
		case ProtocolICMPv6:
			var icmp *ICMPv6
			icmp, rest, ok = decodeICMPv6(data)
			if ok {
				p.Push(icmp)
				if icmp.IsError() {
					quote := 0
					if icmp.HasLength() {
						quote = icmp.QuoteLength()
					}
					p.layers = append(p.layers, splitQuotation(rest, quote)...)
					return p
				}
				l, next = nil, ProtocolRaw
			}
		case ProtocolICMPExtension:
			p.layers = append(p.layers, decodeICMPExtensions(data)...)
			return p
		}
		if !ok {
			p.Push(NewRaw(data))
			return p
		}
		if l != nil {
			p.Push(l)
		}
		data = rest
	}
	return p
}

// DecodeIP parses data as an IPv4 or IPv6 datagram depending on its version
// nibble.
func DecodeIP(data []byte) *Packet {
	if len(data) == 0 {
		return &Packet{}
	}
	switch data[0] >> 4 {
	case 4:
		return Decode(data, ProtocolIP)
	case 6:
		return Decode(data, ProtocolIPv6)
	}
	return New(NewRaw(data))
}

func decodeEthernet(data []byte) (Layer, []byte, Protocol, bool) {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, 0, false
	}
	next := ProtocolRaw
	switch eth.EthernetType {
	case layers.EthernetTypeIPv4:
		next = ProtocolIP
	case layers.EthernetTypeIPv6:
		next = ProtocolIPv6
	}
	l := &Ethernet{newBase(ethernetKind, data[:ethernetHeaderLen], nil)}
	return l, data[ethernetHeaderLen:], next, true
}

// decodeIPv4 keeps bytes past the announced total length as inner layers,
// except behind a link layer where they are frame padding.
func decodeIPv4(data []byte, linkFramed bool) (Layer, []byte, Protocol, bool) {
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, 0, false
	}
	hl := int(ip.IHL) * 4
	if hl < ipv4HeaderLen || hl > len(data) {
		return nil, nil, 0, false
	}
	rest := data[hl:]
	if linkFramed && int(ip.Length) >= hl && int(ip.Length) < len(data) {
		rest = data[hl:ip.Length]
	}
	next := transportFromIPProtocol(uint8(ip.Protocol))
	if ip.FragOffset != 0 {
		next = ProtocolRaw
	}
	l := &IPv4{newBase(ipv4Kind, data[:ipv4HeaderLen], data[ipv4HeaderLen:hl])}
	return l, rest, next, true
}

func decodeIPv6(data []byte, linkFramed bool) (Layer, []byte, Protocol, bool) {
	var ip layers.IPv6
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, 0, false
	}
	rest := data[ipv6HeaderLen:]
	if end := ipv6HeaderLen + int(ip.Length); linkFramed && end < len(data) {
		rest = data[ipv6HeaderLen:end]
	}
	l := &IPv6{newBase(ipv6Kind, data[:ipv6HeaderLen], nil)}
	return l, rest, transportFromIPProtocol(uint8(ip.NextHeader)), true
}

func decodeTCP(data []byte) (Layer, []byte, Protocol, bool) {
	var tcp layers.TCP
	if err := tcp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, 0, false
	}
	hl := int(tcp.DataOffset) * 4
	if hl < tcpHeaderLen || hl > len(data) {
		return nil, nil, 0, false
	}
	l := &TCP{newBase(tcpKind, data[:tcpHeaderLen], data[tcpHeaderLen:hl])}
	return l, data[hl:], ProtocolRaw, true
}

func decodeUDP(data []byte) (Layer, []byte, Protocol, bool) {
	var udp layers.UDP
	if err := udp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, 0, false
	}
	l := &UDP{newBase(udpKind, data[:udpHeaderLen], nil)}
	return l, data[udpHeaderLen:], ProtocolRaw, true
}

func decodeICMPv4(data []byte) (*ICMPv4, []byte, bool) {
	var icmp layers.ICMPv4
	if err := icmp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, false
	}
	return &ICMPv4{newBase(icmpv4Kind, data[:icmpHeaderLen], nil)}, data[icmpHeaderLen:], true
}

func decodeICMPv6(data []byte) (*ICMPv6, []byte, bool) {
	var icmp layers.ICMPv6
	if err := icmp.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, false
	}
	if len(data) < icmpHeaderLen {
		return nil, nil, false
	}
	return &ICMPv6{newBase(icmpv6Kind, data[:icmpHeaderLen], nil)}, data[icmpHeaderLen:], true
}

// splitQuotation returns the quoted datagram as a Raw layer followed by the
// extension structure, if the RFC 4884 length leaves room for one.
func splitQuotation(data []byte, quoteLen int) []Layer {
	if len(data) == 0 {
		return nil
	}
	if quoteLen == 0 || quoteLen >= len(data) {
		return []Layer{NewRaw(data)}
	}
	return append([]Layer{NewRaw(data[:quoteLen])}, decodeICMPExtensions(data[quoteLen:])...)
}

// decodeICMPExtensions parses an RFC 4884 extension structure. Anything
// malformed is kept as a Raw layer.
func decodeICMPExtensions(data []byte) []Layer {
	if len(data) < icmpExtensionHeaderLen || data[0]>>4 != rfc4884Version {
		return []Layer{NewRaw(data)}
	}
	out := []Layer{&ICMPExtension{newBase(icmpExtensionKind, data[:icmpExtensionHeaderLen], nil)}}
	rest := data[icmpExtensionHeaderLen:]
	for len(rest) > 0 {
		if len(rest) < icmpObjectHeaderLen {
			return append(out, NewRaw(rest))
		}
		n := int(binary.BigEndian.Uint16(rest[0:2]))
		if n < icmpObjectHeaderLen || n > len(rest) {
			return append(out, NewRaw(rest))
		}
		out = append(out, &ICMPExtensionObject{newBase(icmpExtensionObjectKind, rest[:icmpObjectHeaderLen], rest[icmpObjectHeaderLen:n])})
		rest = rest[n:]
	}
	return out
}
