// Package reversedns names the routers a tracebox run goes through.
package reversedns

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/tracebox/tracebox/cache"
	"github.com/tracebox/tracebox/log"
)

const (
	lookupTimeout = 5 * time.Second
	cacheTTL      = 10 * time.Minute
)

// LookupAddrFn is defined as variable to ease testing
var LookupAddrFn = net.DefaultResolver.LookupAddr

// Lookup returns the PTR names of addr without their trailing dot.
func Lookup(ctx context.Context, addr netip.Addr) ([]string, error) {
	if !addr.IsValid() {
		return nil, fmt.Errorf("invalid address")
	}
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	raw, err := LookupAddrFn(ctx, addr.Unmap().String())
	if err != nil {
		return nil, fmt.Errorf("failed to get reverse dns: %w", err)
	}
	names := make([]string, 0, len(raw))
	for _, name := range raw {
		names = append(names, strings.TrimRight(name, "."))
	}
	return names, nil
}

// Names returns the reverse names of addr, nil when there are none. Answers
// are cached since hop addresses repeat from one run to the next.
func Names(addr netip.Addr) []string {
	if !addr.IsValid() {
		return nil
	}
	names, err := cache.GetWithExpiration(cache.Key("rdns", addr.String()), func() ([]string, error) {
		return Lookup(context.Background(), addr)
	}, cacheTTL)
	if err != nil {
		log.Debugf("reverse dns for %s: %s", addr, err)
		return nil
	}
	return names
}
