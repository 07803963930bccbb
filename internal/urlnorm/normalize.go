package urlnorm

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// defaultPorts maps schemes to the port that is implied when none is given.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize returns the canonical form of rawURL.
// It fails with ErrInvalidURL when rawURL is unparsable or not absolute.
func Normalize(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}
	return canonical(u), nil
}

// Resolve resolves ref against base using standard reference resolution
// and normalizes the result.
func Resolve(base, ref string) (string, error) {
	b, err := parseAbsolute(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidURL, ref, err)
	}
	resolved := b.ResolveReference(r)
	if resolved.Host == "" {
		return "", fmt.Errorf("%w: %q cannot be resolved against %q", ErrInvalidURL, ref, base)
	}
	return canonical(resolved), nil
}

// IsHTTPURL reports whether rawURL is an absolute http or https URL.
func IsHTTPURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// Domain returns the lowercased host of rawURL without its port.
func Domain(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}
	return strings.ToLower(u.Hostname()), nil
}

// SameDomain reports whether a and b have the same host.
// It returns false when either URL is malformed.
func SameDomain(a, b string) bool {
	da, err := Domain(a)
	if err != nil {
		return false
	}
	db, err := Domain(b)
	if err != nil {
		return false
	}
	return da == db
}

// RegistrableDomain returns the eTLD+1 of rawURL's host, e.g. "example.co.uk"
// for "https://www.example.co.uk/". IP addresses and single-label hosts are
// returned unchanged.
func RegistrableDomain(rawURL string) (string, error) {
	host, err := Domain(rawURL)
	if err != nil {
		return "", err
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host, nil
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil //nolint:nilerr // hosts that are themselves public suffixes stand for themselves
	}
	return etld1, nil
}

// Origin returns scheme://host[:port] of rawURL in canonical form.
// It is the key for per-origin caches and limiters.
func Origin(rawURL string) (string, error) {
	u, err := parseAbsolute(rawURL)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme + "://" + canonicalHost(scheme, u), nil
}

// parseAbsolute parses rawURL and requires a scheme and a host.
func parseAbsolute(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// canonical renders u in canonical form.
func canonical(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString(u.User.String())
		b.WriteByte('@')
	}
	b.WriteString(canonicalHost(scheme, u))
	b.WriteString(canonicalPath(u.EscapedPath()))
	if q := sortQuery(u.RawQuery); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

// canonicalHost lowercases the host and drops a default port.
func canonicalHost(scheme string, u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	port := u.Port()
	if port == "" || defaultPorts[scheme] == port {
		return host
	}
	return host + ":" + port
}

// canonicalPath lowercases the path and strips trailing slashes.
func canonicalPath(path string) string {
	path = strings.ToLower(path)
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// sortQuery orders query parameters by key. Parameters sharing a key keep
// their relative order, and the original encoding of each pair is preserved.
func sortQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	params := parts[:0]
	for _, p := range parts {
		if p != "" {
			params = append(params, p)
		}
	}
	sort.SliceStable(params, func(i, j int) bool {
		return queryKey(params[i]) < queryKey(params[j])
	})
	return strings.Join(params, "&")
}

// queryKey returns the decoded key of a "key=value" pair.
func queryKey(pair string) string {
	key, _, _ := strings.Cut(pair, "=")
	if unescaped, err := url.QueryUnescape(key); err == nil {
		return unescaped
	}
	return key
}
