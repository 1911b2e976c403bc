// Package enrich derives geolocation, device, bot, and campaign facts from
// raw request data. Resolvers never fail the ingestion path: they return a
// usable default or an absent value instead.
package enrich

import (
	"net"
	"net/http"
	"strings"
)

// LoopbackIPv4 is the safe default the normalizer falls back to when no
// candidate validates.
const LoopbackIPv4 = "127.0.0.1"

// forwardedHeaders in decreasing trust order.
var forwardedHeaders = []string{
	"Cf-Connecting-Ip",
	"X-Real-Ip",
	"X-Forwarded-For",
	"X-Client-Ip",
}

// ClientIP normalizes the client address from the direct peer address and
// the proxy-forwarded header set. Candidates are tried in order (direct
// address first, then headers in decreasing trust order) and the first
// syntactically valid IPv4 wins. It never fails: with no valid candidate
// it returns the IPv4 loopback.
func ClientIP(direct string, headers http.Header) string {
	candidates := make([]string, 0, len(forwardedHeaders)+1)
	candidates = append(candidates, direct)

	for _, name := range forwardedHeaders {
		value := headers.Get(name)
		if value == "" {
			continue
		}

		if name == "X-Forwarded-For" {
			candidates = append(candidates, pickForwardedFor(value))
			continue
		}

		candidates = append(candidates, value)
	}

	for _, candidate := range candidates {
		if ip := normalizeCandidate(candidate); ip != "" {
			return ip
		}
	}

	return LoopbackIPv4
}

// pickForwardedFor selects from a comma-separated X-Forwarded-For chain:
// the first publicly routable entry, or failing that the chain's first
// entry.
func pickForwardedFor(chain string) string {
	parts := strings.Split(chain, ",")

	first := ""

	for i, part := range parts {
		entry := strings.TrimSpace(part)
		if i == 0 {
			first = entry
		}

		if entry != "" && !IsPrivateIP(stripMappedPrefix(entry)) {
			return entry
		}
	}

	return first
}

// normalizeCandidate strips the IPv4-mapped-IPv6 prefix, maps the IPv6
// loopback and the literal "localhost" to the IPv4 loopback, and returns
// the candidate only if it is a valid IPv4 address.
func normalizeCandidate(candidate string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ""
	}

	// Peer addresses may carry a port.
	if host, _, err := net.SplitHostPort(candidate); err == nil {
		candidate = host
	}

	candidate = stripMappedPrefix(candidate)

	if candidate == "::1" || strings.EqualFold(candidate, "localhost") {
		return LoopbackIPv4
	}

	parsed := net.ParseIP(candidate)
	if parsed == nil || parsed.To4() == nil {
		return ""
	}

	return parsed.To4().String()
}

func stripMappedPrefix(candidate string) string {
	return strings.TrimPrefix(candidate, "::ffff:")
}

// IsPrivateIP reports whether the address falls in a loopback, RFC1918,
// link-local, or otherwise reserved range. Unparsable input counts as
// private so it is never sent to an external lookup.
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}

	if parsed.IsLoopback() || parsed.IsLinkLocalUnicast() || parsed.IsUnspecified() {
		return true
	}

	return parsed.IsPrivate()
}
