// Package engine runs the breadth-first crawl of one job.
//
// The traversal is processed level by level in batches: up to Concurrency
// items are dequeued, marked visited and checked against the crawl rules
// one after another, then fetched and parsed in parallel. Outcomes are
// applied in dequeue order, so a Concurrency of 1 gives the plain
// sequential breadth-first loop.
//
// Per-URL failures are recorded in the result and never stop the crawl.
// Only problems that prevent the crawl from starting are returned as
// errors wrapping ErrEngineFatal.
package engine
