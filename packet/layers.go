// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packet

import (
	"fmt"
	"net/netip"
)

// NetworkLayer is implemented by the IPv4 and IPv6 layers.
type NetworkLayer interface {
	Layer
	Source() netip.Addr
	Destination() netip.Addr
	SetSource(addr netip.Addr) error
	SetDestination(addr netip.Addr) error
	HopCount() uint8
	SetHopCount(ttl uint8)
	// TransportProtocol is the protocol announced for the next layer.
	TransportProtocol() Protocol
	// CanonicalLength is the datagram length announced by the header.
	CanonicalLength() int
}

var (
	_ NetworkLayer = &IPv4{}
	_ NetworkLayer = &IPv6{}
)

type IPv4 struct{ base }

func (l *IPv4) Clone() Layer { return &IPv4{l.clone()} }

func (l *IPv4) Source() netip.Addr {
	return netip.AddrFrom4([4]byte(l.header[12:16]))
}

func (l *IPv4) Destination() netip.Addr {
	return netip.AddrFrom4([4]byte(l.header[16:20]))
}

func (l *IPv4) SetSource(addr netip.Addr) error {
	if !addr.Unmap().Is4() {
		return fmt.Errorf("cannot use %s as an IPv4 source", addr)
	}
	a := addr.Unmap().As4()
	copy(l.header[12:16], a[:])
	return nil
}

func (l *IPv4) SetDestination(addr netip.Addr) error {
	if !addr.Unmap().Is4() {
		return fmt.Errorf("cannot use %s as an IPv4 destination", addr)
	}
	a := addr.Unmap().As4()
	copy(l.header[16:20], a[:])
	return nil
}

func (l *IPv4) HopCount() uint8       { return l.header[8] }
func (l *IPv4) SetHopCount(ttl uint8) { l.header[8] = ttl }
func (l *IPv4) TotalLength() int      { return int(l.get("TotalLength")) }
func (l *IPv4) CanonicalLength() int  { return l.TotalLength() }
func (l *IPv4) HeaderLength() int     { return int(l.get("HeaderLength")) * 4 }
func (l *IPv4) TransportProtocol() Protocol {
	return transportFromIPProtocol(l.header[9])
}

type IPv6 struct{ base }

func (l *IPv6) Clone() Layer { return &IPv6{l.clone()} }

func (l *IPv6) Source() netip.Addr {
	return netip.AddrFrom16([16]byte(l.header[8:24]))
}

func (l *IPv6) Destination() netip.Addr {
	return netip.AddrFrom16([16]byte(l.header[24:40]))
}

func (l *IPv6) SetSource(addr netip.Addr) error {
	if !addr.Is6() || addr.Is4In6() {
		return fmt.Errorf("cannot use %s as an IPv6 source", addr)
	}
	a := addr.As16()
	copy(l.header[8:24], a[:])
	return nil
}

func (l *IPv6) SetDestination(addr netip.Addr) error {
	if !addr.Is6() || addr.Is4In6() {
		return fmt.Errorf("cannot use %s as an IPv6 destination", addr)
	}
	a := addr.As16()
	copy(l.header[24:40], a[:])
	return nil
}

func (l *IPv6) HopCount() uint8       { return l.header[7] }
func (l *IPv6) SetHopCount(ttl uint8) { l.header[7] = ttl }
func (l *IPv6) PayloadLength() int    { return int(l.get("PayloadLength")) }
func (l *IPv6) CanonicalLength() int  { return l.PayloadLength() + ipv6HeaderLen }
func (l *IPv6) TransportProtocol() Protocol {
	return transportFromIPProtocol(l.header[6])
}

type TCP struct{ base }

func (l *TCP) Clone() Layer        { return &TCP{l.clone()} }
func (l *TCP) SrcPort() uint16     { return uint16(l.get("SrcPort")) }
func (l *TCP) DstPort() uint16     { return uint16(l.get("DstPort")) }
func (l *TCP) SeqNumber() uint32   { return uint32(l.get("SeqNumber")) }
func (l *TCP) AckNumber() uint32   { return uint32(l.get("AckNumber")) }
func (l *TCP) Flags() uint8        { return uint8(l.get("Flags")) }
func (l *TCP) SetSrcPort(p uint16) { l.set("SrcPort", uint64(p)) }

type UDP struct{ base }

func (l *UDP) Clone() Layer        { return &UDP{l.clone()} }
func (l *UDP) SrcPort() uint16     { return uint16(l.get("SrcPort")) }
func (l *UDP) DstPort() uint16     { return uint16(l.get("DstPort")) }
func (l *UDP) SetSrcPort(p uint16) { l.set("SrcPort", uint64(p)) }

// ICMPv4 error messages quote the offending datagram. Length is the RFC 4884
// length of that quotation in 32-bit words, zero when unset.
type ICMPv4 struct{ base }

func (l *ICMPv4) Clone() Layer { return &ICMPv4{l.clone()} }
func (l *ICMPv4) Type() uint8  { return l.header[0] }
func (l *ICMPv4) Code() uint8  { return l.header[1] }
func (l *ICMPv4) Length() int  { return int(l.header[5]) }

// QuoteLength is Length converted to bytes.
func (l *ICMPv4) QuoteLength() int { return l.Length() * 4 }

// IsError reports whether the message carries a quotation.
func (l *ICMPv4) IsError() bool {
	switch l.Type() {
	case 3, 11, 12:
		return true
	}
	return false
}

// ID and Seq are meaningful for echo messages only.
func (l *ICMPv4) ID() uint16  { return uint16(l.header[4])<<8 | uint16(l.header[5]) }
func (l *ICMPv4) Seq() uint16 { return uint16(l.header[6])<<8 | uint16(l.header[7]) }

// ICMPv6 is the IPv6 counterpart of ICMPv4. Its RFC 4884 length counts
// 64-bit words.
type ICMPv6 struct{ base }

func (l *ICMPv6) Clone() Layer     { return &ICMPv6{l.clone()} }
func (l *ICMPv6) Type() uint8      { return l.header[0] }
func (l *ICMPv6) Code() uint8      { return l.header[1] }
func (l *ICMPv6) Length() int      { return int(l.header[4]) }
func (l *ICMPv6) QuoteLength() int { return l.Length() * 8 }

func (l *ICMPv6) IsError() bool {
	switch l.Type() {
	case 1, 2, 3, 4:
		return true
	}
	return false
}

// HasLength reports whether the message type defines the RFC 4884 length.
func (l *ICMPv6) HasLength() bool {
	return l.Type() == 1 || l.Type() == 3
}

func (l *ICMPv6) ID() uint16  { return uint16(l.header[4])<<8 | uint16(l.header[5]) }
func (l *ICMPv6) Seq() uint16 { return uint16(l.header[6])<<8 | uint16(l.header[7]) }

type ICMPExtension struct{ base }

func (l *ICMPExtension) Clone() Layer { return &ICMPExtension{l.clone()} }
func (l *ICMPExtension) Version() int { return int(l.get("Version")) }

// ICMPExtensionObject holds one RFC 4884 object, e.g. an MPLS label stack.
type ICMPExtensionObject struct{ base }

func (l *ICMPExtensionObject) Clone() Layer     { return &ICMPExtensionObject{l.clone()} }
func (l *ICMPExtensionObject) ClassNum() uint8  { return l.header[2] }
func (l *ICMPExtensionObject) ClassType() uint8 { return l.header[3] }

type Ethernet struct{ base }

func (l *Ethernet) Clone() Layer { return &Ethernet{l.clone()} }

// Raw holds bytes that are not decoded any further.
type Raw struct{ base }

// NewRaw wraps data in a Raw layer. data is not copied.
func NewRaw(data []byte) *Raw {
	return &Raw{newBase(rawKind, nil, data)}
}

func (l *Raw) Clone() Layer { return &Raw{l.clone()} }

// PartialTCP is the start of a TCP header too short to decode. It exposes
// only the fields fully present in the available bytes and shares the TCP
// protocol id so it lines up with a complete TCP header when compared.
type PartialTCP struct{ base }

// NewPartialTCP wraps the leading bytes of a TCP header. data is not copied.
func NewPartialTCP(data []byte) *PartialTCP {
	var fields []Field
	for _, f := range partialTCPFields {
		if f.Covered(len(data)) {
			fields = append(fields, f)
		}
	}
	k := &kind{proto: ProtocolTCP, name: tcpKind.name, fields: fields}
	return &PartialTCP{newBase(k, data, nil)}
}

func (l *PartialTCP) Clone() Layer { return &PartialTCP{l.clone()} }

func (l *PartialTCP) has(name string) bool {
	for _, f := range l.kind.fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (l *PartialTCP) SrcPort() (uint16, bool) {
	if !l.has("SrcPort") {
		return 0, false
	}
	return uint16(l.get("SrcPort")), true
}

func (l *PartialTCP) DstPort() (uint16, bool) {
	if !l.has("DstPort") {
		return 0, false
	}
	return uint16(l.get("DstPort")), true
}

func (l *PartialTCP) SeqNumber() (uint32, bool) {
	if !l.has("SeqNumber") {
		return 0, false
	}
	return uint32(l.get("SeqNumber")), true
}

// IsPartial reports whether l is a partial header.
func IsPartial(l Layer) bool {
	_, ok := l.(*PartialTCP)
	return ok
}
