// Package model defines the data structures shared by the crawl engine,
// the job manager, the HTTP API and the report writers.
//
// This package contains the following main types:
//   - CrawlOptions: Immutable per-job crawl parameters
//   - PageData: One successfully fetched and parsed page
//   - CrawlError: A per-URL failure recorded during a crawl
//   - CrawlResult: The aggregate outcome of one traversal
//   - Job: The asynchronous job record owned by the job manager
//   - BatchResult: The outcome of a batch scrape
//
// Models live in their own package so that engine, job, api, archive and
// report can share them without import cycles. All of them serialize to
// JSON; durations are encoded as integer milliseconds.
package model
