// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package testutils builds wire packets for tests.
package testutils

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"
)

// Addresses used across tests.
var (
	ProbeSrc  = net.ParseIP("192.0.2.10").To4()
	ProbeDst  = net.ParseIP("198.51.100.7").To4()
	RouterIP  = net.ParseIP("203.0.113.1").To4()
	ProbeSrc6 = net.ParseIP("2001:db8::10")
	ProbeDst6 = net.ParseIP("2001:db8:1::7")
	Router6   = net.ParseIP("2001:db8:2::1")
)

const (
	ProbeSrcPort = 40000
	ProbeDstPort = 80
	ProbeSeq     = 0x01020304
)

// Serialize serializes ls with fixed lengths and checksums.
func Serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, ls...)
	require.NoError(t, err)
	return buf.Bytes()
}

// TCPProbe returns IPv4 / TCP SYN from ProbeSrc to ProbeDst with the given
// TTL and TCP options.
func TCPProbe(t testing.TB, ttl uint8, opts ...layers.TCPOption) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      ttl,
		Id:       0x4242,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    ProbeSrc,
		DstIP:    ProbeDst,
	}
	tcp := &layers.TCP{
		SrcPort: ProbeSrcPort,
		DstPort: ProbeDstPort,
		Seq:     ProbeSeq,
		SYN:     true,
		Window:  1024,
		Options: opts,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return Serialize(t, ip, tcp)
}

// UDPProbe returns IPv4 / UDP / payload from ProbeSrc to ProbeDst.
func UDPProbe(t testing.TB, ttl uint8, payload []byte) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      ttl,
		Id:       0x4343,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    ProbeSrc,
		DstIP:    ProbeDst,
	}
	udp := &layers.UDP{SrcPort: ProbeSrcPort, DstPort: 33434}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return Serialize(t, ip, udp, gopacket.Payload(payload))
}

// UDPProbe6 returns IPv6 / UDP / payload from ProbeSrc6 to ProbeDst6.
func UDPProbe6(t testing.TB, hopLimit uint8, payload []byte) []byte {
	t.Helper()
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   hopLimit,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      ProbeSrc6,
		DstIP:      ProbeDst6,
	}
	udp := &layers.UDP{SrcPort: ProbeSrcPort, DstPort: 33434}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return Serialize(t, ip, udp, gopacket.Payload(payload))
}

// ICMPv4Error wraps quote and ext in an ICMPv4 error of the given type sent
// by from to ProbeSrc. lengthWords is the RFC 4884 length field.
func ICMPv4Error(t testing.TB, from net.IP, typ uint8, quote []byte, lengthWords uint8, ext []byte) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		TTL:      250,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    from,
		DstIP:    ProbeSrc,
	}
	msg := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(typ, 0),
		Id:       uint16(lengthWords),
	}
	data := append(append([]byte(nil), quote...), ext...)
	return Serialize(t, ip, msg, gopacket.Payload(data))
}

// TimeExceeded is an ICMPv4 time exceeded from RouterIP quoting quote.
func TimeExceeded(t testing.TB, quote []byte) []byte {
	t.Helper()
	return ICMPv4Error(t, RouterIP, layers.ICMPv4TypeTimeExceeded, quote, 0, nil)
}

// TimeExceeded6 is an ICMPv6 time exceeded from Router6 quoting quote with
// the given RFC 4884 length and extension bytes.
func TimeExceeded6(t testing.TB, quote []byte, lengthWords uint8, ext []byte) []byte {
	t.Helper()
	body := append([]byte{lengthWords, 0, 0, 0}, quote...)
	body = append(body, ext...)
	msg := icmp.Message{
		Type: ipv6.ICMPTypeTimeExceeded,
		Body: &icmp.DefaultMessageBody{Data: body},
	}
	b, err := msg.Marshal(icmp.IPv6PseudoHeader(Router6, ProbeSrc6))
	require.NoError(t, err)
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   250,
		NextHeader: layers.IPProtocolICMPv6,
		SrcIP:      Router6,
		DstIP:      ProbeSrc6,
	}
	return Serialize(t, ip, gopacket.Payload(b))
}

// MPLSExtension returns a 20-byte RFC 4884 extension structure holding one
// MPLS label stack object with three entries.
func MPLSExtension() []byte {
	return []byte{
		0x20, 0x00, 0x00, 0x00, // version 2, checksum left unset
		0x00, 0x10, 0x01, 0x01, // object length 16, class 1 (MPLS), ctype 1
		0x00, 0x01, 0x40, 0x01, // label 20, ttl 1
		0x00, 0x01, 0x50, 0x01, // label 21, ttl 1
		0x00, 0x01, 0x61, 0x01, // label 22, bottom of stack, ttl 1
	}
}
