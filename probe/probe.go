// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

// Package probe builds the default probes sent when no packet is given.
package probe

import (
	"fmt"
	"math/rand"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"

	"github.com/tracebox/tracebox/common"
	"github.com/tracebox/tracebox/packet"
)

// Options describe the probe to build.
type Options struct {
	// Protocol is packet.ProtocolTCP, packet.ProtocolUDP or packet.ProtocolICMP.
	Protocol packet.Protocol
	IPv6     bool
	// DstPort is ignored for ICMP probes.
	DstPort uint16
	// Payload is appended after the transport header.
	Payload []byte
}

const (
	defaultWindow = 5840
	ephemeralBase = 32768
)

func randomPort() uint16 {
	return uint16(ephemeralBase + rand.Intn(65536-ephemeralBase))
}

// Build returns a probe with unspecified source and destination addresses
// for the controller to fill in: a TCP SYN, an empty UDP datagram or an ICMP
// echo request with random identifiers.
func Build(opts Options) (*packet.Packet, error) {
	if opts.DstPort == 0 {
		opts.DstPort = common.DefaultPort
	}

	var ip gopacket.NetworkLayer
	unspecified := net.IPv4zero.To4()
	if opts.IPv6 {
		unspecified = net.IPv6unspecified
	}

	var transport gopacket.SerializableLayer
	var nextProto layers.IPProtocol
	switch opts.Protocol {
	case packet.ProtocolTCP:
		nextProto = layers.IPProtocolTCP
		transport = &layers.TCP{
			SrcPort: layers.TCPPort(randomPort()),
			DstPort: layers.TCPPort(opts.DstPort),
			Seq:     rand.Uint32(),
			SYN:     true,
			Window:  defaultWindow,
		}
	case packet.ProtocolUDP:
		nextProto = layers.IPProtocolUDP
		transport = &layers.UDP{
			SrcPort: layers.UDPPort(randomPort()),
			DstPort: layers.UDPPort(opts.DstPort),
		}
	case packet.ProtocolICMP, packet.ProtocolICMPv6:
		id, seq := uint16(rand.Uint32()), uint16(1)
		if opts.IPv6 {
			nextProto = layers.IPProtocolICMPv6
			msg := icmp.Message{Type: ipv6.ICMPTypeEchoRequest, Body: &icmp.Echo{ID: int(id), Seq: int(seq)}}
			b, err := msg.Marshal(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal echo request: %w", err)
			}
			transport = gopacket.Payload(b)
		} else {
			nextProto = layers.IPProtocolICMPv4
			transport = &layers.ICMPv4{
				TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
				Id:       id,
				Seq:      seq,
			}
		}
	default:
		return nil, fmt.Errorf("cannot build a %s probe", opts.Protocol)
	}

	if opts.IPv6 {
		ip = &layers.IPv6{
			Version:    6,
			HopLimit:   common.DefaultMaxTTL,
			NextHeader: nextProto,
			SrcIP:      unspecified,
			DstIP:      unspecified,
		}
	} else {
		ip = &layers.IPv4{
			Version:  4,
			TTL:      common.DefaultMaxTTL,
			Id:       uint16(rand.Uint32()),
			Protocol: nextProto,
			SrcIP:    unspecified,
			DstIP:    unspecified,
		}
	}

	switch l := transport.(type) {
	case *layers.TCP:
		if err := l.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, fmt.Errorf("failed to create packet checksum: %w", err)
		}
	case *layers.UDP:
		if err := l.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, fmt.Errorf("failed to create packet checksum: %w", err)
		}
	}

	buf := gopacket.NewSerializeBuffer()
	opt := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	err := gopacket.SerializeLayers(buf, opt,
		ip.(gopacket.SerializableLayer),
		transport,
		gopacket.Payload(opts.Payload),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize probe: %w", err)
	}
	return packet.DecodeIP(buf.Bytes()), nil
}
