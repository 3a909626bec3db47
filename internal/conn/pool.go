// Package conn implements the connection manager: a single logical LDAP
// session multiplexed over a pool of physical endpoints with transparent
// failover and reconnection.
package conn

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// Endpoint is one resolved (scheme, address, port) triple in the
// connection pool.
type Endpoint struct {
	Scheme string // "ldap" or "ldaps"
	Host   string // resolved address
	Port   int
}

// URL renders the endpoint back into a dial-able ldap[s]:// URL.
func (e Endpoint) URL() string {
	return fmt.Sprintf("%s://%s:%d", e.Scheme, e.Host, e.Port)
}

// Resolver is the seam ResolvePool consumes for host resolution; *net.Resolver
// satisfies it, and tests supply a fake to stay hermetic.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// ResolvePool resolves each ldap[s]://host[:port] URL to one Endpoint per
// resolved address, concatenated in input order. DNS lookups for distinct
// input URLs run concurrently; this is the one place the connection
// manager uses concurrency, and it completes before any Manager exists,
// so the manager itself stays single-threaded.
func ResolvePool(ctx context.Context, resolver Resolver, urls []string) ([]Endpoint, error) {
	perURL := make([][]Endpoint, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	for i, raw := range urls {
		i, raw := i, raw
		g.Go(func() error {
			eps, err := resolveOne(gctx, resolver, raw)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", raw, err)
			}
			perURL[i] = eps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pool []Endpoint
	for _, eps := range perURL {
		pool = append(pool, eps...)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("no endpoints resolved from %d url(s)", len(urls))
	}
	return pool, nil
}

func resolveOne(ctx context.Context, resolver Resolver, raw string) ([]Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ldap" && u.Scheme != "ldaps" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	port := defaultPort(u.Scheme)
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port in %q: %w", raw, err)
		}
	}

	addrs, err := resolver.LookupHost(ctx, u.Hostname())
	if err != nil {
		return nil, err
	}

	eps := make([]Endpoint, len(addrs))
	for i, addr := range addrs {
		eps[i] = Endpoint{Scheme: u.Scheme, Host: addr, Port: port}
	}
	return eps, nil
}

func defaultPort(scheme string) int {
	if scheme == "ldaps" {
		return 636
	}
	return 389
}

// SystemResolver adapts *net.Resolver (and so net.DefaultResolver) to the
// Resolver interface.
var SystemResolver Resolver = net.DefaultResolver
