package geo

import (
	"net"
	"net/http"
	"net/netip"
	"regexp"
	"strings"
)

var directIPHeaders = []string{
	"cf-connecting-ip",
	"true-client-ip",
	"fastly-client-ip",
	"fly-client-ip",
	"x-real-ip",
	"x-client-ip",
	"client-ip",
}

var forwardedFor = regexp.MustCompile(`(?i)for="?([^;",]+)"?`)

// ClientIP picks the visitor's public address from proxy headers, falling back to the
// connection's remote address. It returns an invalid Addr when nothing public is found.
func ClientIP(r *http.Request) netip.Addr {
	for _, name := range directIPHeaders {
		if addr, ok := publicAddr(r.Header.Get(name)); ok {
			return addr
		}
	}
	if addr, ok := firstForwarded(r.Header.Get("x-forwarded-for")); ok {
		return addr
	}
	if addr, ok := firstForwarded(r.Header.Get("forwarded")); ok {
		return addr
	}
	if addr, ok := publicAddr(r.RemoteAddr); ok {
		return addr
	}
	return netip.Addr{}
}

func firstForwarded(value string) (netip.Addr, bool) {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if m := forwardedFor.FindStringSubmatch(part); m != nil {
			part = m[1]
		}
		if addr, ok := publicAddr(part); ok {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

// publicAddr normalizes a header value into a routable address.
func publicAddr(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, false
	}
	addr = addr.Unmap().WithZone("")

	if !addr.IsValid() ||
		addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsMulticast() {
		return netip.Addr{}, false
	}
	return addr, true
}
