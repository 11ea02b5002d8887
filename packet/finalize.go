// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"
)

var serializeOpts = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: true,
}

// Finalize recomputes every length and checksum of p and returns its wire
// bytes. The layers of p are updated in place so that references to them,
// such as the network layer, stay valid.
func Finalize(p *Packet) ([]byte, error) {
	if len(p.layers) == 0 {
		return nil, errors.New("cannot finalize an empty packet")
	}

	var (
		toSerialize []gopacket.SerializableLayer
		network     gopacket.NetworkLayer
	)
loop:
	for i, l := range p.layers {
		switch l := l.(type) {
		case *Ethernet:
			var eth layers.Ethernet
			if err := eth.DecodeFromBytes(l.Bytes(), gopacket.NilDecodeFeedback); err != nil {
				return nil, fmt.Errorf("ethernet header: %w", err)
			}
			toSerialize = append(toSerialize, &eth)
		case *IPv4:
			ip, err := gopacketIPv4(l, len(p.BytesFrom(i)))
			if err != nil {
				return nil, err
			}
			network = ip
			toSerialize = append(toSerialize, ip)
		case *IPv6:
			ip := gopacketIPv6(l)
			network = ip
			toSerialize = append(toSerialize, ip)
		case *TCP:
			var tcp layers.TCP
			if err := tcp.DecodeFromBytes(l.Bytes(), gopacket.NilDecodeFeedback); err != nil {
				return nil, fmt.Errorf("tcp header: %w", err)
			}
			if network != nil {
				if err := tcp.SetNetworkLayerForChecksum(network); err != nil {
					return nil, fmt.Errorf("tcp checksum: %w", err)
				}
			}
			toSerialize = append(toSerialize, &tcp)
		case *UDP:
			h := l.Header()
			udp := &layers.UDP{
				SrcPort: layers.UDPPort(binary.BigEndian.Uint16(h[0:2])),
				DstPort: layers.UDPPort(binary.BigEndian.Uint16(h[2:4])),
			}
			if network != nil {
				if err := udp.SetNetworkLayerForChecksum(network); err != nil {
					return nil, fmt.Errorf("udp checksum: %w", err)
				}
			}
			toSerialize = append(toSerialize, udp)
		case *ICMPv4:
			h := l.Header()
			toSerialize = append(toSerialize, &layers.ICMPv4{
				TypeCode: layers.CreateICMPv4TypeCode(h[0], h[1]),
				Id:       binary.BigEndian.Uint16(h[4:6]),
				Seq:      binary.BigEndian.Uint16(h[6:8]),
			})
		case *ICMPv6:
			// The ICMPv6 checksum covers every inner byte, so the rest of
			// the packet is marshaled in one go.
			ip6, ok := network.(*layers.IPv6)
			if !ok {
				return nil, errors.New("icmpv6 layer without an ipv6 header")
			}
			b, err := marshalICMPv6(l, p.BytesFrom(i+1), ip6.SrcIP, ip6.DstIP)
			if err != nil {
				return nil, err
			}
			toSerialize = append(toSerialize, gopacket.Payload(b))
			break loop
		default:
			toSerialize = append(toSerialize, gopacket.Payload(l.Bytes()))
		}
	}

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, serializeOpts, toSerialize...); err != nil {
		return nil, fmt.Errorf("failed to serialize packet: %w", err)
	}
	out := buf.Bytes()
	p.refresh(out)
	return out, nil
}

// gopacketIPv4 decodes the header of l, announcing total as its length so
// that an unset length does not fail decoding.
func gopacketIPv4(l *IPv4, total int) (*layers.IPv4, error) {
	b := l.Bytes()
	binary.BigEndian.PutUint16(b[2:4], uint16(total))
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(b, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("ipv4 header: %w", err)
	}
	return &ip, nil
}

func gopacketIPv6(l *IPv6) *layers.IPv6 {
	h := l.Header()
	return &layers.IPv6{
		Version:      6,
		TrafficClass: uint8(l.get("TrafficClass")),
		FlowLabel:    uint32(l.get("FlowLabel")),
		NextHeader:   layers.IPProtocol(h[6]),
		HopLimit:     h[7],
		SrcIP:        net.IP(l.Source().AsSlice()),
		DstIP:        net.IP(l.Destination().AsSlice()),
	}
}

func marshalICMPv6(l *ICMPv6, inner []byte, src, dst net.IP) ([]byte, error) {
	h := l.Header()
	body := append(append([]byte(nil), h[4:]...), inner...)
	msg := icmp.Message{
		Type: ipv6.ICMPType(h[0]),
		Code: int(h[1]),
		Body: &icmp.DefaultMessageBody{Data: body},
	}
	b, err := msg.Marshal(icmp.IPv6PseudoHeader(src, dst))
	if err != nil {
		return nil, fmt.Errorf("icmpv6 message: %w", err)
	}
	return b, nil
}

// refresh copies freshly serialized bytes back into the existing layers.
func (p *Packet) refresh(data []byte) {
	fresh := Decode(data, p.layers[0].Protocol())
	if len(fresh.layers) != len(p.layers) {
		p.layers = fresh.layers
		return
	}
	for i, l := range p.layers {
		if l.Protocol() != fresh.layers[i].Protocol() {
			p.layers = fresh.layers
			return
		}
	}
	for i, l := range p.layers {
		f := fresh.layers[i].layerBase()
		l.layerBase().replace(f.header, f.payload)
	}
}
