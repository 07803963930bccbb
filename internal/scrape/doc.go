// Package scrape fetches, parses and extracts a single page.
//
// A Scraper is the shared unit of work of the crawl engine, the single
// scrape endpoint and the batch worker pool. It performs:
//  1. fetch through the optional throttle, bounded by the per-fetch timeout
//  2. parse into title, text, links and meta
//  3. link extraction: resolve, normalize, keep http(s), deduplicate and
//     drop self-references
package scrape
