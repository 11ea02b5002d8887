package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracebox/tracebox/diff"
	"github.com/tracebox/tracebox/packet"
	"github.com/tracebox/tracebox/result"
	"github.com/tracebox/tracebox/testutils"
	"github.com/tracebox/tracebox/tracebox"
)

var (
	dstAddr = netip.MustParseAddr("198.51.100.7")
	srcAddr = netip.MustParseAddr("192.0.2.10")
)

// pathTransport answers like routers 10.0.0.ttl, then the destination from
// hop dstAt on.
type pathTransport struct {
	t      *testing.T
	dstAt  uint8
	sent   int
	closed bool
}

func (p *pathTransport) SendAndWait(_ context.Context, probe []byte, iface string, _ time.Duration, _ int) (*tracebox.Reply, error) {
	assert.Equal(p.t, "eth0", iface)
	pkt := packet.DecodeIP(probe)
	nl := pkt.NetworkLayer()
	assert.Equal(p.t, srcAddr, nl.Source())
	assert.Equal(p.t, dstAddr, nl.Destination())
	p.sent++

	ttl := nl.HopCount()
	from := net.IPv4(10, 0, 0, ttl).To4()
	typ := uint8(layers.ICMPv4TypeTimeExceeded)
	if ttl >= p.dstAt {
		from = dstAddr.AsSlice()
		typ = layers.ICMPv4TypeDestinationUnreachable
	}
	return &tracebox.Reply{Data: testutils.ICMPv4Error(p.t, from, typ, bytes.Clone(probe), 0, nil), LinkType: packet.ProtocolIP}, nil
}

func (p *pathTransport) Close() error {
	p.closed = true
	return nil
}

type fakeResolver struct{}

func (fakeResolver) ResolveHostname(_ context.Context, hostname string, _ bool) (netip.Addr, error) {
	if hostname == "target.example" {
		return dstAddr, nil
	}
	return netip.Addr{}, fmt.Errorf("no such host %s", hostname)
}

func (fakeResolver) LocalAddress(string, bool) (netip.Addr, error) {
	return srcAddr, nil
}

func (fakeResolver) DefaultInterface(netip.Addr) (string, error) {
	return "eth0", nil
}

type fakeFetcher struct {
	ip  netip.Addr
	err error
}

func (f fakeFetcher) GetIP(context.Context, bool) (netip.Addr, error) {
	return f.ip, f.err
}

type headerReporter struct {
	dst      netip.Addr
	hostname string
	maxTTL   uint8
	ttls     []uint8
}

func (h *headerReporter) Header(dst netip.Addr, hostname string, maxTTL uint8) {
	h.dst, h.hostname, h.maxTTL = dst, hostname, maxTTL
}

func (h *headerReporter) OnProbeResult(ttl uint8, _ netip.Addr, _ *diff.PacketModifications) tracebox.Verdict {
	h.ttls = append(h.ttls, ttl)
	return tracebox.Continue
}

func stubCollaborators(t *testing.T, tr *pathTransport) {
	origTransport, origResolver, origRDNS, origUpload := newTransportFn, newResolverFn, reverseDnsFn, uploadFn
	newTransportFn = func(int) closableTransport { return tr }
	newResolverFn = func() tracebox.Resolver { return fakeResolver{} }
	reverseDnsFn = func(addr netip.Addr) []string {
		return []string{"host-" + addr.String() + ".example"}
	}
	uploadFn = func(context.Context, *http.Client, string, string) error {
		t.Fatal("unexpected upload")
		return nil
	}
	t.Cleanup(func() {
		newTransportFn, newResolverFn, reverseDnsFn, uploadFn = origTransport, origResolver, origRDNS, origUpload
	})
}

func TestRunTracebox(t *testing.T) {
	tr := &pathTransport{t: t, dstAt: 3}
	stubCollaborators(t, tr)
	reporter := &headerReporter{}
	r := &Runner{publicIPFetcher: fakeFetcher{ip: netip.MustParseAddr("203.0.113.50")}}

	results, err := r.RunTracebox(context.Background(), TraceboxParams{
		Hostname:              "target.example:53",
		Protocol:              "udp",
		MaxTTL:                10,
		ReverseDns:            true,
		CollectSourcePublicIP: true,
		Reporter:              reporter,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, tr.sent)
	assert.True(t, tr.closed)
	assert.Equal(t, dstAddr, reporter.dst)
	assert.Equal(t, "target.example", reporter.hostname)
	assert.Equal(t, uint8(10), reporter.maxTTL)
	assert.Equal(t, []uint8{1, 2, 3}, reporter.ttls)

	assert.NotEmpty(t, results.RunID)
	assert.Equal(t, result.Params{Protocol: "udp", Hostname: "target.example:53", Port: 53, MinTTL: 1, MaxTTL: 10, TimeoutMs: 1000}, results.Params)
	assert.Equal(t, result.Outcome{Reason: "reached_destination", TTL: 3}, results.Outcome)
	assert.Equal(t, result.Source{IP: srcAddr, Interface: "eth0", PublicIP: "203.0.113.50"}, results.Source)
	assert.Equal(t, dstAddr, results.Destination.IP)
	assert.Equal(t, "target.example", results.Destination.Hostname)
	assert.Equal(t, []string{"host-198.51.100.7.example"}, results.Destination.ReverseDNS)

	require.Len(t, results.Hops, 3)
	assert.Equal(t, "10.0.0.1", results.Hops[0].IP)
	assert.Equal(t, []string{"host-10.0.0.1.example"}, results.Hops[0].ReverseDNS)
	assert.True(t, results.Hops[0].Analyzable)
	assert.Equal(t, "198.51.100.7", results.Hops[2].IP)
	assert.Equal(t, 3, results.Stats.Answered)
	assert.Equal(t, 3, results.Stats.Analyzable)
}

func TestRunTraceboxPublicIPFailureIsIgnored(t *testing.T) {
	stubCollaborators(t, &pathTransport{t: t, dstAt: 1})
	r := &Runner{publicIPFetcher: fakeFetcher{err: errors.New("offline")}}

	results, err := r.RunTracebox(context.Background(), TraceboxParams{
		Hostname:              "target.example",
		Protocol:              "icmp",
		CollectSourcePublicIP: true,
	})
	require.NoError(t, err)
	assert.Empty(t, results.Source.PublicIP)
	assert.Nil(t, results.Hops[0].ReverseDNS)
	assert.Equal(t, 80, results.Params.Port)
	assert.Equal(t, uint8(64), results.Params.MaxTTL)
}

func TestRunTraceboxCapture(t *testing.T) {
	stubCollaborators(t, &pathTransport{t: t, dstAt: 2})
	path := filepath.Join(t.TempDir(), "run.pcap")
	var uploaded string
	uploadFn = func(_ context.Context, _ *http.Client, url, file string) error {
		assert.Equal(t, "http://collector.example/upload", url)
		uploaded = file
		return nil
	}

	_, err := (&Runner{}).RunTracebox(context.Background(), TraceboxParams{
		Hostname:  "target.example",
		Protocol:  "tcp",
		PcapFile:  path,
		UploadURL: "http://collector.example/upload",
	})
	require.NoError(t, err)
	assert.Equal(t, path, uploaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(24), "more than the pcap file header")
}

func TestRunTraceboxErrors(t *testing.T) {
	tests := []struct {
		name     string
		params   TraceboxParams
		wantCode tracebox.ErrorCode
		wantErr  string
	}{
		{
			name:     "unknown protocol",
			params:   TraceboxParams{Hostname: "target.example", Protocol: "sctp"},
			wantCode: tracebox.ErrCodeInvalidRequest,
			wantErr:  `unknown Protocol: "sctp"`,
		},
		{
			name:     "bad port",
			params:   TraceboxParams{Hostname: "target.example:99999"},
			wantCode: tracebox.ErrCodeInvalidRequest,
			wantErr:  "invalid port: 99999",
		},
		{
			name:     "ttl out of range",
			params:   TraceboxParams{Hostname: "target.example", MaxTTL: 300},
			wantCode: tracebox.ErrCodeInvalidRequest,
			wantErr:  "outside 1-255",
		},
		{
			name:     "dns failure",
			params:   TraceboxParams{Hostname: "missing.example"},
			wantCode: tracebox.ErrCodeDNS,
			wantErr:  `failed to resolve host "missing.example"`,
		},
		{
			name:     "min above max",
			params:   TraceboxParams{Hostname: "target.example", MinTTL: 9, MaxTTL: 3},
			wantCode: tracebox.ErrCodeInvalidRequest,
			wantErr:  "min ttl 9 is above max ttl 3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &pathTransport{t: t, dstAt: 1}
			stubCollaborators(t, tr)

			_, err := New().RunTracebox(context.Background(), tt.params)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Equal(t, tt.wantCode, tracebox.ClassifyError(err).Code)
			assert.Zero(t, tr.sent)
		})
	}
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw      string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{raw: "example.com", wantHost: "example.com", wantPort: 80},
		{raw: "example.com:443", wantHost: "example.com", wantPort: 443},
		{raw: "192.0.2.1", wantHost: "192.0.2.1", wantPort: 80},
		{raw: "192.0.2.1:22", wantHost: "192.0.2.1", wantPort: 22},
		{raw: "2001:db8::1", wantHost: "2001:db8::1", wantPort: 80},
		{raw: "[2001:db8::1]", wantHost: "2001:db8::1", wantPort: 80},
		{raw: "[2001:db8::1]:8080", wantHost: "2001:db8::1", wantPort: 8080},
		{raw: "example.com:0", wantErr: true},
		{raw: "example.com:http", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, port, err := parseTarget(tt.raw, 80)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}
