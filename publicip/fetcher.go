package publicip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tracebox/tracebox/log"
)

// ipCheckers list of reliable public IP checkers
var ipCheckers = []string{
	"https://icanhazip.com/",         // owned by cloudflare
	"https://ipinfo.io/ip",           // same as our GeoIP info provider
	"https://checkip.amazonaws.com/", // Amazon
	"https://api.ipify.org/",         // Dedicated Public IP info and GeoIP info provider
	"https://whatismyip.akamai.com/", // Akamai is a CDN Provider
}

func getPublicIPFromCheckers(ctx context.Context, client *http.Client, checkers []string) (netip.Addr, error) {
	for _, ipChecker := range checkers {
		ip, err := getPublicIPUsingIPChecker(ctx, client, ipChecker)
		if err != nil {
			log.Debugf("error fetching: %s, %s", ipChecker, err.Error())
			continue
		}
		return ip, nil
	}
	return netip.Addr{}, errors.New("no IP found")
}

func getPublicIPUsingIPChecker(ctx context.Context, client *http.Client, dest string) (netip.Addr, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond
	expBackoff.MaxInterval = 3 * time.Second

	operation := func() (netip.Addr, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, dest, nil)
		if err != nil {
			return netip.Addr{}, backoff.Permanent(fmt.Errorf("failed to create new request: %w", err))
		}
		resp, err := client.Do(req)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("failed to fetch req: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("failed to read content: %w", err)
		}

		// client errors are not worth retrying
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return netip.Addr{}, backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		tb := strings.TrimSpace(string(body))
		ip, err := netip.ParseAddr(tb)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("IP address not valid: %q", tb)
		}
		return ip.Unmap(), nil
	}
	result, err := backoff.Retry(ctx, operation, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(3))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("backoff retry error: %w", err)
	}
	return result, nil
}
