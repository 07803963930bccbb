// Package main provides the entry point for the crawlscope CLI.
//
// crawlscope crawls websites breadth-first and serves the crawl engine
// over an HTTP API with asynchronous jobs.
//
// Usage:
//
//	crawlscope serve
//	crawlscope crawl <url>
//	crawlscope scrape <url>...
//
// See --help for all available options.
package main

func main() {
	Execute()
}
