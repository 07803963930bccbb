package fetch

import "errors"

var (
	// ErrFetchFailed is the category of every fetch failure: timeouts,
	// DNS and connection errors, bad status codes, non-HTML content and
	// oversize bodies.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected status code")

	// ErrNotHTML is returned when the content type is neither text/html
	// nor application/xhtml+xml.
	ErrNotHTML = errors.New("content is not html")

	// ErrBodyTooLarge is returned when the body exceeds the size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrInvalidProxyAddress is returned when a proxy address is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")
)
