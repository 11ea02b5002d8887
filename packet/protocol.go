// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packet

import "fmt"

// Protocol identifies a layer kind. Transport ids reuse the IP protocol
// numbers and network ids reuse the EtherType, so the numeric order is the
// order in which packets are compared.
type Protocol uint16

const (
	ProtocolICMP                Protocol = 0x01
	ProtocolTCP                 Protocol = 0x06
	ProtocolUDP                 Protocol = 0x11
	ProtocolICMPv6              Protocol = 0x3a
	ProtocolICMPExtension       Protocol = 0xf0
	ProtocolICMPExtensionObject Protocol = 0xf1
	ProtocolIP                  Protocol = 0x0800
	ProtocolIPv6                Protocol = 0x86dd
	ProtocolEthernet            Protocol = 0xfff0
	ProtocolRaw                 Protocol = 0xfff1
)

// IsLinkLayer reports whether the protocol only describes the local link
// and must not take part in a comparison.
func (p Protocol) IsLinkLayer() bool {
	return p == ProtocolEthernet
}

func (p Protocol) String() string {
	switch p {
	case ProtocolICMP:
		return "ICMP"
	case ProtocolTCP:
		return "TCP"
	case ProtocolUDP:
		return "UDP"
	case ProtocolICMPv6:
		return "ICMPv6"
	case ProtocolICMPExtension:
		return "ICMPExtension"
	case ProtocolICMPExtensionObject:
		return "ICMPExtensionObject"
	case ProtocolIP:
		return "IP"
	case ProtocolIPv6:
		return "IPv6"
	case ProtocolEthernet:
		return "Ethernet"
	case ProtocolRaw:
		return "Raw"
	}
	return fmt.Sprintf("Protocol(0x%04x)", uint16(p))
}

// ParseProtocol maps the transport names accepted on the command line.
func ParseProtocol(s string) (Protocol, error) {
	switch s {
	case "tcp", "TCP":
		return ProtocolTCP, nil
	case "udp", "UDP":
		return ProtocolUDP, nil
	case "icmp", "ICMP":
		return ProtocolICMP, nil
	}
	return 0, fmt.Errorf("unknown protocol %q", s)
}

// transportFromIPProtocol maps an IPv4 protocol or IPv6 next header value to
// the layer that follows the network header. Unknown values map to Raw.
func transportFromIPProtocol(n uint8) Protocol {
	switch Protocol(n) {
	case ProtocolICMP, ProtocolTCP, ProtocolUDP, ProtocolICMPv6:
		return Protocol(n)
	}
	return ProtocolRaw
}
