// Package fetch provides the Fetcher capability used by the crawl engine
// and the scrape endpoints.
//
// # Components
//
//   - Fetcher: the narrow interface the engine depends on
//   - HTTPFetcher: the default implementation over net/http
//   - MapFetcher: an in-memory implementation for deterministic tests
//   - NewHTTPClient: builds the HTTP client, optionally through a SOCKS5 proxy
//
// Every failure is reported as ErrFetchFailed, wrapped together with a more
// specific sentinel when one applies (ErrUnexpectedStatus, ErrNotHTML,
// ErrBodyTooLarge). Callers record these per URL; they never abort a crawl.
//
// HTTPFetcher decodes response bodies to UTF-8 using the charset declared
// in the Content-Type header or the document itself.
package fetch
