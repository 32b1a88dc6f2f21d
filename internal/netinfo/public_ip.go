// Package netinfo resolves the server's public IP address. The value is
// fetched once at process start and cached for the process lifetime; a
// stale value after a re-bind is an accepted tradeoff.
package netinfo

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/creamcroissant/marzgo/internal/cache"
)

const (
	cacheKey   = "public-ip"
	fallbackIP = "127.0.0.1"
)

var defaultEndpoints = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://icanhazip.com",
}

// Provider discovers and caches the public IP.
type Provider struct {
	client    *http.Client
	cache     cache.Store
	endpoints []string
}

// NewProvider builds a provider over the given endpoints; an empty list
// uses well-known discovery services.
func NewProvider(store cache.Store, endpoints []string) *Provider {
	if len(endpoints) == 0 {
		endpoints = defaultEndpoints
	}
	return &Provider{
		client:    &http.Client{Timeout: 5 * time.Second},
		cache:     store.Namespace("netinfo"),
		endpoints: endpoints,
	}
}

// PublicIP returns the cached address, fetching it on first use. Discovery
// failures degrade to a loopback placeholder rather than failing the
// caller; subscription output stays well-formed either way.
func (p *Provider) PublicIP(ctx context.Context) string {
	if ip, ok := p.cache.GetString(ctx, cacheKey); ok {
		return ip
	}

	ip, err := p.fetch(ctx)
	if err != nil {
		ip = fallbackIP
	}
	p.cache.Set(ctx, cacheKey, ip, cache.NoExpiration)
	return ip
}

// fetch tries each endpoint with a short exponential backoff around the
// whole round.
func (p *Provider) fetch(ctx context.Context) (string, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)

	var ip string
	err := backoff.Retry(func() error {
		for _, endpoint := range p.endpoints {
			candidate, err := p.query(ctx, endpoint)
			if err != nil {
				continue
			}
			ip = candidate
			return nil
		}
		return fmt.Errorf("no public ip endpoint reachable")
	}, policy)
	if err != nil {
		return "", err
	}
	return ip, nil
}

func (p *Provider) query(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("public ip endpoint %s: status %d", endpoint, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 128))
	if err != nil {
		return "", err
	}
	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("public ip endpoint %s: invalid response %q", endpoint, ip)
	}
	return ip, nil
}
