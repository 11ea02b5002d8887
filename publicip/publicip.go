package publicip

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"time"

	externalip "github.com/glendc/go-external-ip"
	"github.com/tracebox/tracebox/cache"
	"github.com/tracebox/tracebox/log"
)

const defaultPublicIPCacheExpiration = 2 * time.Hour

// consensusIP asks the go-external-ip voters for the public address of the
// given family. Tests replace it.
var consensusIP = func(ipv6 bool) (net.IP, error) {
	consensus := externalip.DefaultConsensus(nil, nil)
	if ipv6 {
		consensus.UseIPProtocol(6)
	} else {
		consensus.UseIPProtocol(4)
	}
	return consensus.ExternalIP()
}

// Fetcher discovers the address the internet sees for this host, which
// differs from the probe source behind a NAT.
type Fetcher struct {
	client   *http.Client
	checkers []string
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: 5 * time.Second},
		checkers: ipCheckers,
	}
}

// GetIP returns the cached public address, or looks it up through the
// consensus voters and then the plain-text IP checkers.
func (f *Fetcher) GetIP(ctx context.Context, ipv6 bool) (netip.Addr, error) {
	family := "4"
	if ipv6 {
		family = "6"
	}
	return cache.GetWithExpiration(cache.Key("public_ip", family), func() (netip.Addr, error) {
		ip, err := f.lookup(ctx, ipv6)
		if err != nil {
			return netip.Addr{}, err
		}
		log.Debugf("Public IP fetched: %s", ip)
		return ip, nil
	}, defaultPublicIPCacheExpiration)
}

func (f *Fetcher) lookup(ctx context.Context, ipv6 bool) (netip.Addr, error) {
	raw, err := consensusIP(ipv6)
	if err == nil {
		if ip, ok := netip.AddrFromSlice(raw); ok {
			return ip.Unmap(), nil
		}
		err = fmt.Errorf("invalid consensus address %v", raw)
	}
	log.Debugf("external IP consensus failed: %s", err)

	ip, err := getPublicIPFromCheckers(ctx, f.client, f.checkers)
	if err != nil {
		return netip.Addr{}, err
	}
	if ip.Is6() != ipv6 {
		return netip.Addr{}, fmt.Errorf("public address %s is not of the requested family", ip)
	}
	return ip, nil
}
