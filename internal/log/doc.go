// Package log builds the slog loggers of crawlscope and masks secrets
// before they reach the output.
//
// SecureHandler wraps any slog.Handler and masks:
//   - attributes whose key names a secret (cookie, authorization, password,
//     token and similar)
//   - string values that look like credentials (bearer and basic auth,
//     JWTs, private key blocks)
//   - secret query parameters and userinfo passwords inside URL values,
//     so a crawled "https://example.com/?token=abc" is logged as
//     "https://example.com/?token=***REDACTED***"
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, log.Options{Verbose: true, Format: "json"})
//	logger.Info("crawl started", "url", startURL)
package log
