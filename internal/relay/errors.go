package relay

import "errors"

// Failure taxonomy surfaced to API callers. Handlers map these to HTTP
// status codes; everything else is absorbed internally.
var (
	// ErrInvalidInput marks a missing or malformed target URL.
	ErrInvalidInput = errors.New("invalid or missing url")

	// ErrNoCredentials marks a selection attempt against an empty key pool.
	ErrNoCredentials = errors.New("no scraper api keys configured")

	// ErrQuotaExhausted marks a pool whose every key is at its monthly cap.
	ErrQuotaExhausted = errors.New("monthly quota exhausted for all api keys")

	// ErrUpstreamAuth marks a credential rejected by the scrape service.
	ErrUpstreamAuth = errors.New("scrape service rejected api key")

	// ErrUpstreamFailed marks a non-2xx response, timeout, or malformed
	// payload from the upstream fetch.
	ErrUpstreamFailed = errors.New("upstream fetch failed")
)
