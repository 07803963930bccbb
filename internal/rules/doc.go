// Package rules decides whether a URL may be crawled within one job.
//
// A Rules value is built once per job from its CrawlOptions and answers
// ShouldCrawl for every dequeued URL. The decision is the conjunction of:
//   - depth < MaxDepth
//   - pages scraped so far < MaxPages
//   - host scope according to the strategy (domain, site or all)
//   - the host is not a loopback, private or link-local address
//   - the path passes the optional ignore/follow patterns
//
// Malformed URLs fail closed.
//
// # Limitations
//
// The private-address check inspects literal IPs and "localhost" names.
// With WithResolver it additionally resolves host names, but the answer can
// change between this check and the actual fetch (DNS rebinding). It is
// advisory filtering, not SSRF protection.
package rules
