// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packet

import (
	"encoding/hex"
	"strings"
)

// Layer is one protocol header of a Packet. The set of implementations is
// closed: only the types of this package satisfy it.
//
// Header holds the bytes described by Fields. Payload holds the bytes the
// layer carries after its fixed header that are not described by fields,
// such as IP or TCP options, raw data or extension object data.
type Layer interface {
	Protocol() Protocol
	Name() string
	Fields() []Field
	Header() []byte
	Payload() []byte
	Bytes() []byte
	Len() int
	String() string
	Clone() Layer

	layerBase() *base
}

type kind struct {
	proto  Protocol
	name   string
	fields []Field
}

type base struct {
	kind    *kind
	header  []byte
	payload []byte
}

func newBase(k *kind, header, payload []byte) base {
	return base{kind: k, header: header, payload: payload}
}

func (b *base) layerBase() *base { return b }

func (b *base) Protocol() Protocol { return b.kind.proto }
func (b *base) Name() string       { return b.kind.name }
func (b *base) Fields() []Field    { return b.kind.fields }
func (b *base) Header() []byte     { return b.header }
func (b *base) Payload() []byte    { return b.payload }
func (b *base) Len() int           { return len(b.header) + len(b.payload) }

func (b *base) Bytes() []byte {
	out := make([]byte, 0, b.Len())
	out = append(out, b.header...)
	return append(out, b.payload...)
}

// String renders every field followed by the payload in hex.
func (b *base) String() string {
	var sb strings.Builder
	sb.WriteString(b.kind.name)
	sb.WriteString("(")
	for i, f := range b.kind.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString("=")
		sb.WriteString(f.Text(b.header))
	}
	if len(b.payload) > 0 {
		if len(b.kind.fields) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("Payload=0x")
		sb.WriteString(hex.EncodeToString(b.payload))
	}
	sb.WriteString(")")
	return sb.String()
}

func (b *base) clone() base {
	return base{
		kind:    b.kind,
		header:  append([]byte(nil), b.header...),
		payload: append([]byte(nil), b.payload...),
	}
}

func (b *base) field(name string) Field {
	for _, f := range b.kind.fields {
		if f.Name == name {
			return f
		}
	}
	panic("packet: no field " + name + " in " + b.kind.name)
}

func (b *base) get(name string) uint64 {
	return b.field(name).Uint(b.header)
}

func (b *base) set(name string, v uint64) {
	b.field(name).Set(b.header, v)
}

// replace swaps the layer bytes, keeping its identity.
func (b *base) replace(header, payload []byte) {
	b.header = header
	b.payload = payload
}

var (
	ipv4Kind = &kind{ProtocolIP, "IP", []Field{
		{"Version", 0, 0, 4, FormatDec},
		{"HeaderLength", 0, 4, 4, FormatDec},
		{"DiffServicesCP", 0, 8, 6, FormatHex},
		{"ExpCongestionNot", 0, 14, 2, FormatHex},
		{"TotalLength", 0, 16, 16, FormatDec},
		{"Identification", 1, 0, 16, FormatHex},
		{"Flags", 1, 16, 3, FormatHex},
		{"FragmentOffset", 1, 19, 13, FormatDec},
		{"TTL", 2, 0, 8, FormatDec},
		{"Protocol", 2, 8, 8, FormatDec},
		{"CheckSum", 2, 16, 16, FormatHex},
		{"SourceIP", 3, 0, 32, FormatIPv4},
		{"DestinationIP", 4, 0, 32, FormatIPv4},
	}}
	ipv6Kind = &kind{ProtocolIPv6, "IPv6", []Field{
		{"Version", 0, 0, 4, FormatDec},
		{"TrafficClass", 0, 4, 8, FormatHex},
		{"FlowLabel", 0, 12, 20, FormatHex},
		{"PayloadLength", 1, 0, 16, FormatDec},
		{"NextHeader", 1, 16, 8, FormatDec},
		{"HopLimit", 1, 24, 8, FormatDec},
		{"SourceIP", 2, 0, 128, FormatIPv6},
		{"DestinationIP", 6, 0, 128, FormatIPv6},
	}}
	tcpKind = &kind{ProtocolTCP, "TCP", []Field{
		{"SrcPort", 0, 0, 16, FormatDec},
		{"DstPort", 0, 16, 16, FormatDec},
		{"SeqNumber", 1, 0, 32, FormatHex},
		{"AckNumber", 2, 0, 32, FormatHex},
		{"DataOffset", 3, 0, 4, FormatDec},
		{"Reserved", 3, 4, 4, FormatDec},
		{"Flags", 3, 8, 8, FormatHex},
		{"WindowsSize", 3, 16, 16, FormatDec},
		{"CheckSum", 4, 0, 16, FormatHex},
		{"UrgPointer", 4, 16, 16, FormatDec},
	}}
	udpKind = &kind{ProtocolUDP, "UDP", []Field{
		{"SrcPort", 0, 0, 16, FormatDec},
		{"DstPort", 0, 16, 16, FormatDec},
		{"Length", 1, 0, 16, FormatDec},
		{"CheckSum", 1, 16, 16, FormatHex},
	}}
	icmpFields = []Field{
		{"Type", 0, 0, 8, FormatDec},
		{"Code", 0, 8, 8, FormatDec},
		{"CheckSum", 0, 16, 16, FormatHex},
		{"RestOfHeader", 1, 0, 32, FormatHex},
	}
	icmpv4Kind        = &kind{ProtocolICMP, "ICMP", icmpFields}
	icmpv6Kind        = &kind{ProtocolICMPv6, "ICMPv6", icmpFields}
	icmpExtensionKind = &kind{ProtocolICMPExtension, "ICMPExtension", []Field{
		{"Version", 0, 0, 4, FormatDec},
		{"Reserved", 0, 4, 12, FormatHex},
		{"CheckSum", 0, 16, 16, FormatHex},
	}}
	icmpExtensionObjectKind = &kind{ProtocolICMPExtensionObject, "ICMPExtensionObject", []Field{
		{"Length", 0, 0, 16, FormatDec},
		{"ClassNum", 0, 16, 8, FormatDec},
		{"ClassType", 0, 24, 8, FormatDec},
	}}
	ethernetKind = &kind{ProtocolEthernet, "Ethernet", []Field{
		{"DestinationMAC", 0, 0, 48, FormatMAC},
		{"SourceMAC", 1, 16, 48, FormatMAC},
		{"Type", 3, 0, 16, FormatHex},
	}}
	rawKind = &kind{ProtocolRaw, "Raw", nil}

	partialTCPFields = tcpKind.fields[:3]
)

// Fixed header sizes in bytes.
const (
	ipv4HeaderLen          = 20
	ipv6HeaderLen          = 40
	tcpHeaderLen           = 20
	udpHeaderLen           = 8
	icmpHeaderLen          = 8
	icmpExtensionHeaderLen = 4
	icmpObjectHeaderLen    = 4
	ethernetHeaderLen      = 14
)
