// Package robots answers robots.txt allow and crawl-delay queries.
//
// Rule sets are fetched once per origin and cached for a fixed TTL. Any
// failure to fetch or read robots.txt allows the request.
package robots
