// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package tracebox

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracebox/tracebox/diff"
	"github.com/tracebox/tracebox/packet"
	"github.com/tracebox/tracebox/testutils"
)

var (
	srcAddr = netip.MustParseAddr("192.0.2.10")
	dstAddr = netip.MustParseAddr("198.51.100.7")
)

// fakeTransport answers like a path of routers ending at the probe
// destination, which replies from hop dstAt on.
type fakeTransport struct {
	t      *testing.T
	dstAt  uint8
	mutate func(ttl uint8, quote []byte)
	err    error
	ttls   []uint8
	ifaces []string
}

func (f *fakeTransport) SendAndWait(_ context.Context, probe []byte, iface string, _ time.Duration, _ int) (*Reply, error) {
	p := packet.DecodeIP(probe)
	ttl := p.NetworkLayer().HopCount()
	f.ttls = append(f.ttls, ttl)
	f.ifaces = append(f.ifaces, iface)
	if f.err != nil {
		return nil, f.err
	}
	if f.dstAt == 0 {
		return nil, nil
	}
	if ttl >= f.dstAt {
		return &Reply{Data: synAck(f.t), LinkType: packet.ProtocolIP}, nil
	}
	quote := bytes.Clone(probe)
	if f.mutate != nil {
		f.mutate(ttl, quote)
	}
	router := net.IPv4(10, 0, 0, ttl).To4()
	return &Reply{Data: testutils.ICMPv4Error(f.t, router, layers.ICMPv4TypeTimeExceeded, quote, 0, nil), LinkType: packet.ProtocolIP}, nil
}

func synAck(t *testing.T) []byte {
	ip := &layers.IPv4{Version: 4, TTL: 60, Protocol: layers.IPProtocolTCP, SrcIP: testutils.ProbeDst, DstIP: testutils.ProbeSrc}
	tcp := &layers.TCP{SrcPort: testutils.ProbeDstPort, DstPort: testutils.ProbeSrcPort, SYN: true, ACK: true, Ack: testutils.ProbeSeq + 1}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return testutils.Serialize(t, ip, tcp)
}

type staticResolver struct{}

func (staticResolver) ResolveHostname(context.Context, string, bool) (netip.Addr, error) {
	return dstAddr, nil
}

func (staticResolver) LocalAddress(string, bool) (netip.Addr, error) {
	return srcAddr, nil
}

func (staticResolver) DefaultInterface(netip.Addr) (string, error) {
	return "eth0", nil
}

type hop struct {
	ttl       uint8
	responder netip.Addr
	mods      *diff.PacketModifications
}

func recorder(hops *[]hop, stopAt uint8) Reporter {
	return ReporterFunc(func(ttl uint8, responder netip.Addr, mods *diff.PacketModifications) Verdict {
		*hops = append(*hops, hop{ttl, responder, mods})
		if ttl == stopAt {
			return Stop
		}
		return Continue
	})
}

func tcpProbe(t *testing.T) *packet.Packet {
	return packet.DecodeIP(testutils.TCPProbe(t, 64))
}

func withoutSource(t *testing.T) *packet.Packet {
	p := tcpProbe(t)
	require.NoError(t, p.NetworkLayer().SetSource(netip.IPv4Unspecified()))
	return p
}

func TestRunReachesDestination(t *testing.T) {
	transport := &fakeTransport{t: t, dstAt: 5}
	var hops []hop

	outcome, err := New(transport, staticResolver{}).Run(context.Background(), tcpProbe(t), Params{MinTTL: 1, MaxTTL: 10}, recorder(&hops, 0))
	require.NoError(t, err)

	assert.Equal(t, ReachedDestination, outcome.Reason)
	assert.Equal(t, uint8(5), outcome.TTL)
	assert.Equal(t, srcAddr, outcome.Source)
	assert.Equal(t, dstAddr, outcome.Destination)
	assert.Equal(t, "eth0", outcome.Interface)
	assert.Equal(t, []uint8{1, 2, 3, 4, 5}, transport.ttls)
	require.Len(t, hops, 5)

	for i, h := range hops[:4] {
		assert.Equal(t, uint8(i+1), h.ttl)
		assert.Equal(t, netip.AddrFrom4([4]byte{10, 0, 0, byte(i + 1)}), h.responder)
		require.True(t, h.mods.Analyzable())
		assert.Empty(t, h.mods.Modifications)
		assert.Equal(t, uint8(i+1), h.mods.Original.NetworkLayer().HopCount())
	}
	last := hops[4]
	assert.Equal(t, dstAddr, last.responder)
	require.NotNil(t, last.mods)
	assert.False(t, last.mods.Analyzable())
}

func TestRunMaxTTLExceeded(t *testing.T) {
	transport := &fakeTransport{t: t}
	var hops []hop

	outcome, err := New(transport, staticResolver{}).Run(context.Background(), tcpProbe(t), Params{MinTTL: 3, MaxTTL: 6}, recorder(&hops, 0))
	require.NoError(t, err)

	assert.Equal(t, MaxTTLExceeded, outcome.Reason)
	assert.Equal(t, uint8(6), outcome.TTL)
	require.Len(t, hops, 4)
	for _, h := range hops {
		assert.False(t, h.responder.IsValid())
		assert.Nil(t, h.mods)
	}
}

func TestRunMaxTTL255DoesNotWrap(t *testing.T) {
	transport := &fakeTransport{t: t}
	var hops []hop

	outcome, err := New(transport, staticResolver{}).Run(context.Background(), tcpProbe(t), Params{MinTTL: 254, MaxTTL: 255}, recorder(&hops, 0))
	require.NoError(t, err)
	assert.Equal(t, MaxTTLExceeded, outcome.Reason)
	assert.Equal(t, []uint8{254, 255}, transport.ttls)
}

func TestRunCallbackStop(t *testing.T) {
	transport := &fakeTransport{t: t, dstAt: 8}
	var hops []hop

	outcome, err := New(transport, staticResolver{}).Run(context.Background(), tcpProbe(t), Params{}, recorder(&hops, 3))
	require.NoError(t, err)

	assert.Equal(t, CallbackStop, outcome.Reason)
	assert.Equal(t, uint8(3), outcome.TTL)
	assert.Len(t, hops, 3)
}

func TestRunStopWinsOverDestination(t *testing.T) {
	transport := &fakeTransport{t: t, dstAt: 2}
	var hops []hop

	outcome, err := New(transport, staticResolver{}).Run(context.Background(), tcpProbe(t), Params{}, recorder(&hops, 2))
	require.NoError(t, err)
	assert.Equal(t, CallbackStop, outcome.Reason)
}

func TestRunReportsModifications(t *testing.T) {
	transport := &fakeTransport{
		t:     t,
		dstAt: 4,
		mutate: func(ttl uint8, quote []byte) {
			// a NAT between hop 1 and 2 rewrites the source port
			if ttl >= 2 {
				quote[20], quote[21] = 0x12, 0x34
			}
		},
	}
	var hops []hop

	_, err := New(transport, staticResolver{}).Run(context.Background(), tcpProbe(t), Params{}, recorder(&hops, 0))
	require.NoError(t, err)

	require.Len(t, hops, 4)
	assert.Empty(t, hops[0].mods.Modifications)
	assert.Equal(t, "TCP::SrcPort", hops[1].mods.String())
	assert.Equal(t, "TCP::SrcPort", hops[2].mods.String())
}

func TestRunResolvesUnsetDestination(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockResolver(ctrl)
	resolver.EXPECT().ResolveHostname(gomock.Any(), "example.com", false).Return(dstAddr, nil)
	resolver.EXPECT().DefaultInterface(dstAddr).Return("wlan0", nil)
	resolver.EXPECT().LocalAddress("wlan0", false).Return(srcAddr, nil)

	probe := tcpProbe(t)
	require.NoError(t, probe.NetworkLayer().SetDestination(netip.IPv4Unspecified()))
	require.NoError(t, probe.NetworkLayer().SetSource(netip.IPv4Unspecified()))

	transport := &fakeTransport{t: t, dstAt: 1}
	var hops []hop
	outcome, err := New(transport, resolver).Run(context.Background(), probe, Params{Hostname: "example.com"}, recorder(&hops, 0))
	require.NoError(t, err)

	assert.Equal(t, ReachedDestination, outcome.Reason)
	assert.Equal(t, []string{"wlan0"}, transport.ifaces)
	assert.Equal(t, dstAddr, probe.NetworkLayer().Destination())
	assert.Equal(t, srcAddr, probe.NetworkLayer().Source())
}

func TestRunExplicitInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockResolver(ctrl)
	resolver.EXPECT().LocalAddress("eno1", false).Return(srcAddr, nil)

	transport := &fakeTransport{t: t, dstAt: 1}
	var hops []hop
	_, err := New(transport, resolver).Run(context.Background(), withoutSource(t), Params{Interface: "eno1"}, recorder(&hops, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"eno1"}, transport.ifaces)
}

func TestRunKeepsExplicitSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	resolver := NewMockResolver(ctrl)
	resolver.EXPECT().DefaultInterface(dstAddr).Return("eth0", nil)

	probe := tcpProbe(t)
	explicit := netip.MustParseAddr("192.0.2.99")
	require.NoError(t, probe.NetworkLayer().SetSource(explicit))

	var hops []hop
	outcome, err := New(&fakeTransport{t: t, dstAt: 1}, resolver).Run(context.Background(), probe, Params{}, recorder(&hops, 0))
	require.NoError(t, err)
	assert.Equal(t, explicit, outcome.Source)
}

func TestRunSetupErrors(t *testing.T) {
	unsetDst := func(t *testing.T) *packet.Packet {
		p := tcpProbe(t)
		require.NoError(t, p.NetworkLayer().SetDestination(netip.IPv4Unspecified()))
		return p
	}
	tests := []struct {
		name     string
		probe    func(t *testing.T) *packet.Packet
		params   Params
		expect   func(r *MockResolverMockRecorder)
		wantCode ErrorCode
	}{
		{
			name:     "no network layer",
			probe:    func(*testing.T) *packet.Packet { return packet.New(packet.NewRaw([]byte{1})) },
			wantCode: ErrCodeInvalidRequest,
		},
		{
			name:     "ttl range",
			probe:    tcpProbe,
			params:   Params{MinTTL: 9, MaxTTL: 3},
			wantCode: ErrCodeInvalidRequest,
		},
		{
			name:     "no destination",
			probe:    unsetDst,
			wantCode: ErrCodeInvalidRequest,
		},
		{
			name:   "dns failure",
			probe:  unsetDst,
			params: Params{Hostname: "nowhere.invalid"},
			expect: func(r *MockResolverMockRecorder) {
				r.ResolveHostname(gomock.Any(), "nowhere.invalid", false).Return(netip.Addr{}, errors.New("no such host"))
			},
			wantCode: ErrCodeDNS,
		},
		{
			name:   "resolved to the wrong family",
			probe:  unsetDst,
			params: Params{Hostname: "v6only.example"},
			expect: func(r *MockResolverMockRecorder) {
				r.ResolveHostname(gomock.Any(), "v6only.example", false).Return(netip.MustParseAddr("2001:db8::1"), nil)
			},
			wantCode: ErrCodeInvalidRequest,
		},
		{
			name:  "no default interface",
			probe: tcpProbe,
			expect: func(r *MockResolverMockRecorder) {
				r.DefaultInterface(dstAddr).Return("", errors.New("network is unreachable"))
			},
			wantCode: ErrCodeNoInterface,
		},
		{
			name:   "no source address",
			probe:  withoutSource,
			params: Params{Interface: "lo"},
			expect: func(r *MockResolverMockRecorder) {
				r.LocalAddress("lo", false).Return(netip.Addr{}, errors.New("no ipv4 address"))
			},
			wantCode: ErrCodeNoSource,
		},
		{
			name:   "source of the wrong family",
			probe:  withoutSource,
			params: Params{Interface: "lo"},
			expect: func(r *MockResolverMockRecorder) {
				r.LocalAddress("lo", false).Return(netip.MustParseAddr("::1"), nil)
			},
			wantCode: ErrCodeNoSource,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			resolver := NewMockResolver(ctrl)
			if tt.expect != nil {
				tt.expect(resolver.EXPECT())
			}
			transport := NewMockTransport(ctrl)
			reporter := NewMockReporter(ctrl)

			outcome, err := New(transport, resolver).Run(context.Background(), tt.probe(t), tt.params, reporter)
			assert.Nil(t, outcome)
			var setupErr *SetupError
			require.ErrorAs(t, err, &setupErr)
			assert.Equal(t, tt.wantCode, setupErr.Code)
			assert.Equal(t, tt.wantCode, ClassifyError(err).Code)
		})
	}
}

func TestRunTransportErrorIsATimeout(t *testing.T) {
	transport := &fakeTransport{t: t, err: errors.New("sendto: network is unreachable")}
	var hops []hop

	outcome, err := New(transport, staticResolver{}).Run(context.Background(), tcpProbe(t), Params{MaxTTL: 2}, recorder(&hops, 0))
	require.NoError(t, err)
	assert.Equal(t, MaxTTLExceeded, outcome.Reason)
	require.Len(t, hops, 2)
	assert.Nil(t, hops[0].mods)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := &fakeTransport{t: t}
	reporter := ReporterFunc(func(ttl uint8, _ netip.Addr, _ *diff.PacketModifications) Verdict {
		if ttl == 2 {
			cancel()
		}
		return Continue
	})

	outcome, err := New(transport, staticResolver{}).Run(ctx, tcpProbe(t), Params{}, reporter)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, outcome)
	assert.Equal(t, []uint8{1, 2}, transport.ttls)
	assert.Equal(t, ErrCodeTimeout, ClassifyError(err).Code)
}

func TestRunFinalizerFailure(t *testing.T) {
	failing := WithFinalizer(func(*packet.Packet) ([]byte, error) {
		return nil, errors.New("boom")
	})
	var hops []hop

	_, err := New(&fakeTransport{t: t}, staticResolver{}, failing).Run(context.Background(), tcpProbe(t), Params{}, recorder(&hops, 0))
	assert.ErrorContains(t, err, "boom")
	assert.Empty(t, hops)
}
