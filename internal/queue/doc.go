// Package queue provides the crawl frontier: a FIFO of work items and the
// set of URLs already dequeued.
//
// Both are defined as interfaces so a networked implementation can replace
// the in-memory ones without changing the engine. Neither deduplicates on
// enqueue; the engine consults the VisitedSet right after each dequeue.
package queue
