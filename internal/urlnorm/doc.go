// Package urlnorm canonicalizes and resolves URLs.
//
// Every other component keys its state (visited set, robots cache, rate
// limiter buckets) on the strings produced here, so two spellings of the
// same page must normalize to the same string and Normalize must be
// idempotent.
//
// # Canonical form
//
// Normalize applies, in order:
//   - lowercase scheme, host and path
//   - strip trailing slashes from the path unless it is exactly "/"
//     (an empty path becomes "/")
//   - drop the port when it is the scheme's default (80/http, 443/https)
//   - sort query parameters by key, keeping the original order of equal keys
//   - drop the fragment
//
// Example:
//
//	urlnorm.Normalize("https://Example.COM/Page?b=2&a=1#x")
//	// "https://example.com/page?a=1&b=2"
package urlnorm
