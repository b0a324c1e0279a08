package client

import (
	"context"
	"fmt"
	"net"
	"strings"
)

func (c *Client) lookup() Resolver {
	if c.resolver != nil {
		return c.resolver
	}
	return net.DefaultResolver
}

// checkAddr validates a host:port dial address.
func (c *Client) checkAddr(ctx context.Context, addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return c.checkHost(ctx, host)
}

// checkHost rejects loopback, private, link-local and similar targets.
// Unresolvable hosts fail closed.
func (c *Client) checkHost(ctx context.Context, host string) error {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	switch strings.ToLower(host) {
	case "localhost", "localhost.localdomain":
		return fmt.Errorf("%w: localhost is blocked", ErrSSRFBlocked)
	}

	if ip := net.ParseIP(host); ip != nil {
		if !allowedIP(ip) {
			return fmt.Errorf("%w: IP %s is blocked", ErrSSRFBlocked, ip)
		}
		return nil
	}

	addrs, err := c.lookup().LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrHostUnresolvable, host, err)
	}
	for _, a := range addrs {
		if !allowedIP(a.IP) {
			return fmt.Errorf("%w: %s resolves to blocked IP %s", ErrSSRFBlocked, host, a.IP)
		}
	}
	return nil
}

func allowedIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() ||
		ip.IsMulticast())
}
