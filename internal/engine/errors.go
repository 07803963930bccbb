package engine

import "errors"

// ErrEngineFatal marks a crawl that could not run at all.
var ErrEngineFatal = errors.New("engine: crawl cannot start")

// errBlockedByRobots is recorded for URLs disallowed by robots.txt.
var errBlockedByRobots = errors.New("blocked by robots.txt")
