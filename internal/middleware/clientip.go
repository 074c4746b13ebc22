package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP resolves the client address of a request. X-Forwarded-For is
// only consulted when the direct peer is a trusted proxy; the chain is then
// walked right to left up to the first untrusted hop.
type ClientIP struct {
	trusted []netip.Prefix
}

// NewClientIP creates a resolver trusting the given CIDRs or single IPs.
// Unparseable entries are skipped.
func NewClientIP(trustedProxies []string) *ClientIP {
	c := &ClientIP{}
	for _, s := range trustedProxies {
		if p, err := netip.ParsePrefix(s); err == nil {
			c.trusted = append(c.trusted, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			c.trusted = append(c.trusted, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return c
}

// Extract returns the client IP of r.
func (c *ClientIP) Extract(r *http.Request) string {
	remote := stripPort(r.RemoteAddr)
	if len(c.trusted) == 0 || !c.isTrusted(remote) {
		return remote
	}

	hops := strings.Split(r.Header.Get(HeaderXForwardedFor), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !c.isTrusted(hop) {
			return hop
		}
	}
	return remote
}

func (c *ClientIP) isTrusted(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range c.trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
