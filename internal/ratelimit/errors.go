package ratelimit

import "errors"

var (
	// ErrCleared is returned to callers whose queued work was dropped by Clear.
	ErrCleared = errors.New("ratelimit: queued work cleared")
	// ErrClosed is returned by Schedule after Close.
	ErrClosed = errors.New("ratelimit: limiter closed")
)
