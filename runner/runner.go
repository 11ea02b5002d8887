package runner

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tracebox/tracebox/capture"
	"github.com/tracebox/tracebox/common"
	"github.com/tracebox/tracebox/localaddr"
	"github.com/tracebox/tracebox/log"
	"github.com/tracebox/tracebox/netnsutil"
	"github.com/tracebox/tracebox/packet"
	"github.com/tracebox/tracebox/probe"
	"github.com/tracebox/tracebox/publicip"
	"github.com/tracebox/tracebox/result"
	"github.com/tracebox/tracebox/reversedns"
	"github.com/tracebox/tracebox/tracebox"
	"github.com/tracebox/tracebox/transport"
)

const publicIPTimeout = 10 * time.Second

type closableTransport interface {
	tracebox.Transport
	Close() error
}

type headerer interface {
	Header(dst netip.Addr, hostname string, maxTTL uint8)
}

// declared for testing purpose (to be replaced by mock impl during tests)
var (
	newTransportFn = func(probeRate int) closableTransport {
		return transport.New(transport.WithRate(probeRate))
	}
	newResolverFn = func() tracebox.Resolver {
		return &localaddr.Resolver{}
	}
	reverseDnsFn = reversedns.Names
	uploadFn     = capture.Upload
)

// PublicIPFetcher looks up the address the internet sees for this host.
type PublicIPFetcher interface {
	GetIP(ctx context.Context, ipv6 bool) (netip.Addr, error)
}

type Runner struct {
	publicIPFetcher PublicIPFetcher
}

func New() *Runner {
	return &Runner{publicIPFetcher: publicip.NewFetcher()}
}

// RunTracebox probes the path to params.Hostname once and returns the
// collected results.
func (r *Runner) RunTracebox(ctx context.Context, params TraceboxParams) (*result.Results, error) {
	params, err := withDefaults(params)
	if err != nil {
		return nil, err
	}
	host, port, err := parseTarget(params.Hostname, params.Port)
	if err != nil {
		return nil, &tracebox.SetupError{Code: tracebox.ErrCodeInvalidRequest, Message: "invalid target", Err: err}
	}
	proto, err := parseProtocol(params.Protocol, params.WantV6)
	if err != nil {
		return nil, &tracebox.SetupError{Code: tracebox.ErrCodeInvalidRequest, Message: "invalid protocol", Err: err}
	}
	pkt, err := probe.Build(probe.Options{Protocol: proto, IPv6: params.WantV6, DstPort: uint16(port)})
	if err != nil {
		return nil, fmt.Errorf("could not build probe: %w", err)
	}

	results := result.New(result.Params{
		Protocol:  params.Protocol,
		Hostname:  params.Hostname,
		Port:      port,
		IPv6:      params.WantV6,
		MinTTL:    uint8(params.MinTTL),
		MaxTTL:    uint8(params.MaxTTL),
		TimeoutMs: params.Timeout.Milliseconds(),
		Retries:   params.Retries,
	})
	results.Destination.Hostname = host

	collector := &result.Collector{Next: params.Reporter}
	var reporter tracebox.Reporter = collector
	var pcap *capture.Writer
	if params.PcapFile != "" {
		pcap, err = capture.Create(params.PcapFile, collector)
		if err != nil {
			return nil, err
		}
		defer pcap.Close()
		reporter = pcap
	}

	tr := newTransportFn(params.ProbeRate)
	defer tr.Close()
	resolver := newResolverFn()
	tb := tracebox.New(tr, resolver)
	tbParams := tracebox.Params{
		Hostname:  host,
		Interface: params.Interface,
		MinTTL:    uint8(params.MinTTL),
		MaxTTL:    uint8(params.MaxTTL),
		Timeout:   params.Timeout,
		Retries:   params.Retries,
	}

	g, gctx := errgroup.WithContext(ctx)
	var outcome *tracebox.Outcome
	g.Go(func() error {
		// sockets must be opened from the thread that entered the namespace
		return netnsutil.Run(params.Netns, func() error {
			dst, err := resolver.ResolveHostname(gctx, host, params.WantV6)
			if err != nil {
				return &tracebox.SetupError{Code: tracebox.ErrCodeDNS, Message: "cannot resolve destination", Err: &tracebox.DNSError{Host: host, Err: err}}
			}
			if err := pkt.NetworkLayer().SetDestination(dst.Unmap()); err != nil {
				return &tracebox.SetupError{Code: tracebox.ErrCodeInvalidRequest, Message: "cannot set destination", Err: err}
			}
			if h, ok := params.Reporter.(headerer); ok {
				h.Header(dst.Unmap(), host, uint8(params.MaxTTL))
			}
			outcome, err = tb.Run(gctx, pkt, tbParams, reporter)
			return err
		})
	})

	var publicIP netip.Addr
	if params.CollectSourcePublicIP && r.publicIPFetcher != nil {
		log.Tracef("collect public ip")
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(gctx, publicIPTimeout)
			defer cancel()
			ip, err := r.publicIPFetcher.GetIP(ctx, params.WantV6)
			if err != nil {
				log.Debugf("Error getting IP: %s", err)
				return nil
			}
			publicIP = ip
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("could not generate tracebox results: %w", err)
	}

	results.SetOutcome(outcome)
	results.Hops = collector.Hops()
	if publicIP.IsValid() {
		results.Source.PublicIP = publicIP.String()
	}
	if params.ReverseDns {
		results.EnrichWithReverseDns(reverseDnsFn)
	}
	results.Normalize()

	if pcap != nil {
		if err := pcap.Close(); err != nil {
			return nil, err
		}
		log.Debugf("wrote %d packets to %s", pcap.Count(), params.PcapFile)
		if params.UploadURL != "" {
			if err := uploadFn(ctx, http.DefaultClient, params.UploadURL, params.PcapFile); err != nil {
				return nil, err
			}
		}
	}
	return results, nil
}

func withDefaults(p TraceboxParams) (TraceboxParams, error) {
	if p.Protocol == "" {
		p.Protocol = common.DefaultProtocol
	}
	if p.MinTTL == 0 {
		p.MinTTL = common.DefaultMinTTL
	}
	if p.MaxTTL == 0 {
		p.MaxTTL = common.DefaultMaxTTL
	}
	if p.Timeout == 0 {
		p.Timeout = common.DefaultTimeout
	}
	if p.MinTTL < 0 || p.MinTTL > 255 || p.MaxTTL < 0 || p.MaxTTL > 255 {
		return p, &tracebox.SetupError{Code: tracebox.ErrCodeInvalidRequest, Message: fmt.Sprintf("ttl range %d-%d is outside 1-255", p.MinTTL, p.MaxTTL)}
	}
	if p.Retries < 0 {
		return p, &tracebox.SetupError{Code: tracebox.ErrCodeInvalidRequest, Message: fmt.Sprintf("invalid retries: %d", p.Retries)}
	}
	return p, nil
}

func parseProtocol(name string, wantV6 bool) (packet.Protocol, error) {
	switch strings.ToLower(name) {
	case "tcp":
		return packet.ProtocolTCP, nil
	case "udp":
		return packet.ProtocolUDP, nil
	case "icmp":
		if wantV6 {
			return packet.ProtocolICMPv6, nil
		}
		return packet.ProtocolICMP, nil
	}
	return 0, fmt.Errorf("unknown Protocol: %q", name)
}

// parseTarget splits an optional port off raw. Hostnames are resolved later
// by the controller's resolver.
func parseTarget(raw string, defaultPort int) (string, int, error) {
	if raw == "" {
		return "", 0, fmt.Errorf("empty target")
	}
	if defaultPort == 0 {
		defaultPort = common.DefaultPort
	}
	if !hasPort(raw) {
		return strings.Trim(raw, "[]"), defaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port: %v", portStr)
	}
	return host, port, nil
}

// hasPort returns true if the input string includes a port
func hasPort(s string) bool {
	if strings.HasPrefix(s, "[") {
		return strings.Contains(s, "]:")
	}
	return strings.Count(s, ":") == 1
}
