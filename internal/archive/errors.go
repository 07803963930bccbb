package archive

import "errors"

// ErrNotFound is returned when no archived crawl has the requested job id.
var ErrNotFound = errors.New("archived crawl not found")
