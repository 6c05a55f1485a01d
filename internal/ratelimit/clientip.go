package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// UnknownIP is used when no usable address is found. All such requests share
// a bucket per user and action.
const UnknownIP = "unknown"

// ipHeaders are consulted in order before the connection address.
var ipHeaders = []string{
	"CF-Connecting-IP",
	"Client-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"X-Cluster-Client-IP",
	"Forwarded-For",
	"Forwarded",
}

var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("2001:db8::/32"),
}

// ClientIP returns the first public address found in the forwarding headers,
// then the connection address, then UnknownIP.
func ClientIP(r *http.Request) string {
	for _, h := range ipHeaders {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		if addr, ok := parseCandidate(v); ok && isPublic(addr) {
			return addr.String()
		}
	}

	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}
	return UnknownIP
}

// parseCandidate takes the first element of a comma separated header value.
// RFC 7239 "for=" syntax is accepted.
func parseCandidate(v string) (netip.Addr, bool) {
	first := strings.TrimSpace(strings.Split(v, ",")[0])

	if i := strings.Index(strings.ToLower(first), "for="); i >= 0 {
		first = first[i+len("for="):]
		if j := strings.IndexByte(first, ';'); j >= 0 {
			first = first[:j]
		}
		first = strings.Trim(strings.TrimSpace(first), `"`)
	}

	if strings.HasPrefix(first, "[") {
		if j := strings.IndexByte(first, ']'); j > 0 {
			first = first[1:j]
		}
	} else if host, _, err := net.SplitHostPort(first); err == nil {
		first = host
	}

	addr, err := netip.ParseAddr(first)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func isPublic(addr netip.Addr) bool {
	if !addr.IsValid() || !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return false
	}
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}
