// Package archive stores finished crawl jobs in SQLite.
//
// The archive is a history of crawls for later inspection and reports.
// It is written when a job reaches a terminal state and is never used to
// restore jobs into a running job manager.
//
// The database is a single file (crawlscope.db) opened through the CGO-free
// modernc.org/sqlite driver, with WAL enabled by default.
package archive
