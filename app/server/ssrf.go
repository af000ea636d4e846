package server

// Operator-supplied external registry locations are fetched by the discovery clients
// and the copy tool from inside the deployment network. Without validation a config
// entry could point them at link-local metadata services or internal hosts, so every
// URL crossing the API is checked here before it is stored.

import (
	"net"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// errURLNotAllowed is deliberately generic: the response must not leak which check
// matched or what the hostname resolved to
var errURLNotAllowed = errors.New("external registry location is not allowed")

var blockedHostSuffixes = []string{".internal", ".local", ".localhost"}

var blockedNetworks = mustParseCIDRs(
	"127.0.0.0/8",    // loopback
	"10.0.0.0/8",     // RFC 1918
	"172.16.0.0/12",  // RFC 1918
	"192.168.0.0/16", // RFC 1918
	"169.254.0.0/16", // link-local, covers cloud metadata 169.254.169.254
	"fc00::/7",       // unique local
	"fe80::/10",      // link-local
	"::1/128",        // loopback
)

// URLGuard validates operator-supplied external URLs. Hosts and CIDRs in Allowed
// bypass the blocklist so air-gapped deployments can mirror from internal registries.
type URLGuard struct {
	Allowed []string

	// LookupIP is swapped in tests, defaults to net.LookupIP
	LookupIP func(host string) ([]net.IP, error)
}

// ValidateURL checks a full URL: scheme, userinfo, hostname and every address the
// hostname resolves to. Any failure returns the generic not-allowed error.
func (g *URLGuard) ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errURLNotAllowed
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errURLNotAllowed
	}
	if u.User != nil {
		return errURLNotAllowed
	}
	return g.validateHost(u.Hostname())
}

// ValidateReference checks a registry reference of host/namespace/name form
func (g *URLGuard) ValidateReference(ref string) error {
	host := ref
	if idx := strings.Index(ref, "/"); idx >= 0 {
		host = ref[:idx]
	}
	if host == "" {
		return errURLNotAllowed
	}
	// strip an explicit port
	if h, _, errSplit := net.SplitHostPort(host); errSplit == nil {
		host = h
	}
	return g.validateHost(host)
}

func (g *URLGuard) validateHost(host string) error {
	if host == "" {
		return errURLNotAllowed
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if g.isAllowed(host) {
		return nil
	}

	if host == "localhost" || host == "metadata.google.internal" {
		return errURLNotAllowed
	}
	for _, suffix := range blockedHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return errURLNotAllowed
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		return g.validateIP(ip)
	}

	lookup := g.LookupIP
	if lookup == nil {
		lookup = net.LookupIP
	}
	ips, err := lookup(host)
	if err != nil {
		return errURLNotAllowed
	}
	for _, ip := range ips {
		if errIP := g.validateIP(ip); errIP != nil {
			return errIP
		}
	}
	return nil
}

func (g *URLGuard) validateIP(ip net.IP) error {
	if ip.IsUnspecified() {
		return errURLNotAllowed
	}
	if g.isAllowed(ip.String()) {
		return nil
	}
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return errURLNotAllowed
		}
	}
	return nil
}

// isAllowed matches host or address against the allowlist, entries may be exact
// hostnames, IPs or CIDRs
func (g *URLGuard) isAllowed(host string) bool {
	ip := net.ParseIP(host)
	for _, entry := range g.Allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if entry == host {
			return true
		}
		if ip == nil {
			continue
		}
		if _, network, err := net.ParseCIDR(entry); err == nil && network.Contains(ip) {
			return true
		}
	}
	return false
}

func mustParseCIDRs(blocks ...string) []*net.IPNet {
	out := make([]*net.IPNet, 0, len(blocks))
	for _, b := range blocks {
		_, network, err := net.ParseCIDR(b)
		if err != nil {
			panic(err)
		}
		out = append(out, network)
	}
	return out
}
