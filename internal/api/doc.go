// Package api hosts the HTTP server, middleware, and REST handlers for
// the relay. Notable routes:
//   - POST /scrape for a single structured extraction.
//   - POST /scrape-multi for batch extraction with per-URL outcomes.
//   - POST /scrape-spider for search/listing pages.
//   - GET /health for liveness, GET /metrics for Prometheus scraping.
package api
