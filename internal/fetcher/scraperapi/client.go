// Package scraperapi implements relay.Fetcher against the hosted scrape
// service. Rendering and autoparsing happen server-side; this client only
// shapes the query parameters and classifies failures.
package scraperapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/pagerelay/pagerelay/internal/relay"
)

// DefaultEndpoint is the hosted scrape service entry point.
const DefaultEndpoint = "https://api.scraperapi.com/"

// Config controls client behavior.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client fetches pages through the scrape service.
type Client struct {
	http     *resty.Client
	endpoint string
	logger   *zap.Logger
}

// New builds a Client. The timeout bounds the whole upstream call,
// including the service's own render time; failures are surfaced, never
// retried here (the quota router has already charged a key selection).
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)
	return &Client{
		http:     httpClient,
		endpoint: cfg.Endpoint,
		logger:   logger,
	}
}

// Fetch executes a single upstream request.
func (c *Client) Fetch(ctx context.Context, request relay.FetchRequest) (relay.FetchResponse, error) {
	params := map[string]string{
		"api_key":   request.APIKey,
		"url":       request.URL,
		"render":    strconv.FormatBool(request.RenderJS),
		"autoparse": strconv.FormatBool(request.Autoparse),
	}
	if request.Premium {
		params["premium"] = "true"
	}
	if request.CountryCode != "" {
		params["country_code"] = request.CountryCode
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.endpoint)
	if err != nil {
		return relay.FetchResponse{}, fmt.Errorf("%w: %v", relay.ErrUpstreamFailed, err)
	}

	duration := time.Since(start)
	status := resp.StatusCode()
	c.logger.Debug("scrape service response",
		zap.String("url", request.URL),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	)

	switch {
	case status == 401 || status == 403:
		return relay.FetchResponse{}, fmt.Errorf("%w: status %d", relay.ErrUpstreamAuth, status)
	case status < 200 || status > 299:
		return relay.FetchResponse{}, fmt.Errorf("%w: status %d", relay.ErrUpstreamFailed, status)
	}

	out := relay.FetchResponse{
		URL:        request.URL,
		StatusCode: status,
		Body:       resp.Body(),
		Duration:   duration,
	}
	if isJSON(resp.Header().Get("Content-Type")) {
		var parsed map[string]any
		if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
			return relay.FetchResponse{}, fmt.Errorf("%w: malformed autoparse payload: %v", relay.ErrUpstreamFailed, err)
		}
		out.PreParsed = parsed
	}
	return out, nil
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}
