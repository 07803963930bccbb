package urlnorm

import "errors"

// ErrInvalidURL is returned when a URL cannot be parsed, is not absolute,
// or cannot be resolved against its base.
var ErrInvalidURL = errors.New("invalid url")
