// Package metrics tracks the counters of a single crawl.
//
// The engine is the only writer; the job manager reads snapshots while the
// crawl is running so that status polls show live progress.
package metrics
