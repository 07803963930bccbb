// Package parse provides the Parser capability: turning an HTML document
// into a title, plain text, raw link targets and meta tags.
//
// HTMLParser uses goquery for structure (title, meta, anchors) and
// go-trafilatura for main-content text, falling back to the body text when
// trafilatura finds no article content. Links are returned exactly as
// written in href attributes; resolving and filtering them is the caller's
// job.
//
// Malformed markup is parsed best-effort. ErrParseFailed is returned only
// when nothing can be extracted at all.
package parse
