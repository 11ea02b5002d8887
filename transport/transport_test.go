// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package transport

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracebox/tracebox/packet"
	"github.com/tracebox/tracebox/testutils"
)

type fakeSink struct {
	sent  [][]byte
	addrs []netip.Addr
	// onSend is called after every write with the number of writes so far
	onSend func(n int)
}

func (s *fakeSink) WriteTo(buf []byte, addr netip.Addr) error {
	s.sent = append(s.sent, buf)
	s.addrs = append(s.addrs, addr)
	if s.onSend != nil {
		s.onSend(len(s.sent))
	}
	return nil
}

func (s *fakeSink) Close() error { return nil }

type fakeSource struct {
	queue  [][]byte
	closed bool
}

func (s *fakeSource) SetReadDeadline(time.Time) error { return nil }

func (s *fakeSource) Read(buf []byte) (int, packet.Protocol, error) {
	if len(s.queue) == 0 {
		time.Sleep(time.Millisecond)
		return 0, 0, &NoPacketError{Err: errors.New("timeout")}
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	first := packet.ProtocolIP
	if next[0]>>4 == 6 {
		first = packet.ProtocolIPv6
	}
	return copy(buf, next), first, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func newFakeTransport(t *testing.T, src *fakeSource, sink *fakeSink) *Transport {
	opened := 0
	tr := New(WithRate(0), WithOpenFunc(func(iface string, ipv6 bool, proto packet.Protocol) (*Handle, error) {
		opened++
		require.Equal(t, 1, opened, "handles are reused")
		return &Handle{Source: src, Sink: sink}, nil
	}))
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestSendAndWaitReturnsMatchingReply(t *testing.T) {
	probe := testutils.TCPProbe(t, 3)
	other := rewrite(testutils.TCPProbe(t, 7), 22, 0x1f, 0x91) // quotes port 8081
	want := testutils.TimeExceeded(t, probe)

	src := &fakeSource{queue: [][]byte{
		testutils.UDPProbe(t, 64, []byte("noise")),
		testutils.TimeExceeded(t, other),
		want,
	}}
	sink := &fakeSink{}
	tr := newFakeTransport(t, src, sink)

	reply, err := tr.SendAndWait(context.Background(), probe, "eth0", time.Second, 0)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, want, reply.Data)
	assert.Equal(t, packet.ProtocolIP, reply.LinkType)
	assert.False(t, reply.Timestamp.IsZero())
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("198.51.100.7")}, sink.addrs)

	// second call reuses the handle
	src.queue = [][]byte{want}
	_, err = tr.SendAndWait(context.Background(), probe, "eth0", time.Second, 0)
	require.NoError(t, err)
}

func TestSendAndWaitReturnsTranslatedQuote(t *testing.T) {
	probe := testutils.TCPProbe(t, 4)
	// a NAT before the router changed both the source address and port
	natted := rewrite(rewrite(probe, 12, 203, 0, 113, 9), 20, 0x12, 0x34)
	want := testutils.TimeExceeded(t, natted)

	src := &fakeSource{queue: [][]byte{want}}
	tr := newFakeTransport(t, src, &fakeSink{})

	reply, err := tr.SendAndWait(context.Background(), probe, "eth0", time.Second, 0)
	require.NoError(t, err)
	require.NotNil(t, reply, "translated quotation reported as a timeout")
	assert.Equal(t, want, reply.Data)
}

func TestSendAndWaitRetries(t *testing.T) {
	probe := testutils.TCPProbe(t, 3)
	src := &fakeSource{}
	sink := &fakeSink{}
	tr := newFakeTransport(t, src, sink)

	reply, err := tr.SendAndWait(context.Background(), probe, "eth0", 20*time.Millisecond, 2)
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Len(t, sink.sent, 3)
}

func TestSendAndWaitAnswerOnRetry(t *testing.T) {
	probe := testutils.UDPProbe(t, 2, []byte("payload"))
	src := &fakeSource{}
	sink := &fakeSink{onSend: func(n int) {
		if n == 2 {
			src.queue = append(src.queue, testutils.TimeExceeded(t, probe))
		}
	}}
	tr := newFakeTransport(t, src, sink)

	reply, err := tr.SendAndWait(context.Background(), probe, "eth0", 20*time.Millisecond, 3)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Len(t, sink.sent, 2)
}

func TestSendAndWaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{}
	sink := &fakeSink{onSend: func(int) { cancel() }}
	tr := newFakeTransport(t, src, sink)

	_, err := tr.SendAndWait(ctx, testutils.TCPProbe(t, 1), "eth0", time.Minute, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendAndWaitOpenError(t *testing.T) {
	tr := New(WithOpenFunc(func(string, bool, packet.Protocol) (*Handle, error) {
		return nil, errors.New("operation not permitted")
	}))
	_, err := tr.SendAndWait(context.Background(), testutils.TCPProbe(t, 1), "eth0", time.Second, 0)
	assert.ErrorContains(t, err, "operation not permitted")
}

func TestTransportClose(t *testing.T) {
	src := &fakeSource{}
	tr := New(WithRate(0), WithOpenFunc(func(string, bool, packet.Protocol) (*Handle, error) {
		return &Handle{Source: src, Sink: &fakeSink{}}, nil
	}))
	_, err := tr.SendAndWait(context.Background(), testutils.TCPProbe(t, 1), "eth0", 10*time.Millisecond, 0)
	require.NoError(t, err)
	require.NoError(t, tr.Close())
	assert.True(t, src.closed)
}

// rewrite returns a copy of b with the bytes at off replaced by v.
func rewrite(b []byte, off int, v ...byte) []byte {
	out := append([]byte(nil), b...)
	copy(out[off:], v)
	return out
}

func fromDestination(t *testing.T, tcp *layers.TCP) []byte {
	ip := &layers.IPv4{Version: 4, TTL: 60, Protocol: layers.IPProtocolTCP, SrcIP: testutils.ProbeDst, DstIP: testutils.ProbeSrc}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return testutils.Serialize(t, ip, tcp)
}

func TestMatcher(t *testing.T) {
	tcp := testutils.TCPProbe(t, 3)
	udp := testutils.UDPProbe(t, 3, []byte("x"))
	udp6 := testutils.UDPProbe6(t, 3, []byte("x"))

	synAck := fromDestination(t, &layers.TCP{SrcPort: testutils.ProbeDstPort, DstPort: testutils.ProbeSrcPort, SYN: true, ACK: true})
	wrongPort := fromDestination(t, &layers.TCP{SrcPort: testutils.ProbeDstPort, DstPort: testutils.ProbeSrcPort + 1, RST: true})
	unreachable := testutils.ICMPv4Error(t, testutils.ProbeDst, layers.ICMPv4TypeDestinationUnreachable, udp, 0, nil)

	tests := []struct {
		name  string
		probe []byte
		reply []byte
		want  bool
	}{
		{"time exceeded quoting the probe", tcp, testutils.TimeExceeded(t, tcp), true},
		{"time exceeded quoting 28 bytes", tcp, testutils.TimeExceeded(t, tcp[:28]), true},
		{"time exceeded quoting 20 bytes", tcp, testutils.TimeExceeded(t, tcp[:20]), false},
		{"time exceeded quoting another probe", udp, testutils.TimeExceeded(t, tcp), false},
		{"source port rewritten in the quote", tcp, testutils.TimeExceeded(t, rewrite(tcp, 20, 0x12, 0x34)), true},
		{"source address rewritten in the quote", tcp, testutils.TimeExceeded(t, rewrite(tcp, 12, 203, 0, 113, 9)), true},
		{"udp source port rewritten in the quote", udp, testutils.TimeExceeded(t, rewrite(udp, 20, 0x12, 0x34)), true},
		{"destination port differs in the quote", tcp, testutils.TimeExceeded(t, rewrite(tcp, 22, 0x1f, 0x91)), false},
		{"destination address differs in the quote", tcp, testutils.TimeExceeded(t, rewrite(tcp, 16, 198, 51, 100, 8)), false},
		{"syn ack from the destination", tcp, synAck, true},
		{"rst to another port", tcp, wrongPort, false},
		{"port unreachable", udp, unreachable, true},
		{"icmpv6 time exceeded", udp6, testutils.TimeExceeded6(t, udp6, 0, nil), true},
		{"the probe itself", tcp, tcp, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := newMatcher(tt.probe)
			require.NoError(t, err)
			first := packet.ProtocolIP
			if tt.reply[0]>>4 == 6 {
				first = packet.ProtocolIPv6
			}
			assert.Equal(t, tt.want, m.match(tt.reply, first))
		})
	}
}

func TestNewMatcherRejectsBareIP(t *testing.T) {
	_, err := newMatcher(testutils.TCPProbe(t, 3)[:20])
	assert.Error(t, err)
	_, err = newMatcher([]byte{0xff})
	assert.Error(t, err)
}

func TestGetReadTimeout(t *testing.T) {
	assert.Equal(t, pollInterval, getReadTimeout(time.Time{}))
	assert.Equal(t, pollInterval, getReadTimeout(time.Now().Add(time.Hour)))
	assert.Equal(t, 10*time.Millisecond, getReadTimeout(time.Now().Add(-time.Second)))
}
