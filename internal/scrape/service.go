// Package scrape executes the relay pipeline: validate, pick a key,
// fetch upstream, extract, account usage.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pagerelay/pagerelay/internal/extract"
	"github.com/pagerelay/pagerelay/internal/metrics"
	"github.com/pagerelay/pagerelay/internal/relay"
)

// Config controls Service behavior.
type Config struct {
	// BatchConcurrency bounds concurrent upstream fetches in ScrapeAll.
	BatchConcurrency int
	// ArchivePrefix prefixes capture object paths.
	ArchivePrefix string
	// EventTopic names the completion-event topic.
	EventTopic string
}

// Service owns one end-to-end scrape. It holds the only cross-request
// state (the key ring) behind the KeySelector interface.
type Service struct {
	keys    relay.KeySelector
	service relay.Fetcher
	direct  relay.Fetcher
	pipe    *extract.Pipeline
	blobs   relay.BlobStore
	events  relay.Publisher
	clock   relay.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Service. blobs and events may be nil; archival and
// event publishing are then skipped.
func New(
	keys relay.KeySelector,
	serviceFetcher relay.Fetcher,
	directFetcher relay.Fetcher,
	pipe *extract.Pipeline,
	blobs relay.BlobStore,
	events relay.Publisher,
	clock relay.Clock,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 4
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "captures"
	}
	if cfg.EventTopic == "" {
		cfg.EventTopic = "scrape-events"
	}
	return &Service{
		keys:    keys,
		service: serviceFetcher,
		direct:  directFetcher,
		pipe:    pipe,
		blobs:   blobs,
		events:  events,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Scrape runs the full pipeline for one URL.
func (s *Service) Scrape(ctx context.Context, req relay.ScrapeRequest) (relay.Result, error) {
	target, err := validateURL(req.Query)
	if err != nil {
		return relay.Result{}, err
	}

	resp, usedKey, err := s.fetch(ctx, req, target)
	if err != nil {
		metrics.ObserveScrape(target, "error", 0)
		return relay.Result{}, err
	}

	rawHTML := string(resp.Body)
	if resp.PreParsed != nil {
		if embedded, ok := resp.PreParsed["html"].(string); ok && embedded != "" {
			rawHTML = embedded
		}
	}
	result := s.pipe.Extract(rawHTML, target, req.Autoparse || req.DeepSearch)
	if resp.PreParsed != nil {
		extract.MergeParsed(&result, resp.PreParsed)
	}

	mode := "direct"
	if usedKey {
		mode = "service"
	}
	metrics.ObserveScrape(target, "ok", len(resp.Body))
	metrics.ObserveScrapeDuration(mode, resp.Duration)

	s.archive(ctx, target, resp.Body)
	s.publish(ctx, target, resp.Duration, usedKey)

	return result, nil
}

// ScrapeAll fans the pipeline out over a list of URLs with bounded
// concurrency. Failures are recorded per URL and never abort siblings;
// ledger updates stay serialized inside the key ring.
func (s *Service) ScrapeAll(ctx context.Context, queries []string) []relay.BatchItem {
	items := make([]relay.BatchItem, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			result, err := s.Scrape(ctx, relay.ScrapeRequest{Query: q})
			if err != nil {
				items[i] = relay.BatchItem{URL: q, Error: err.Error()}
				return nil
			}
			items[i] = relay.BatchItem{URL: q, Result: &result}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// Spider fetches a search/listing page and extracts result entries.
func (s *Service) Spider(ctx context.Context, pageURL string) (relay.SpiderResult, error) {
	target, err := validateURL(pageURL)
	if err != nil {
		return relay.SpiderResult{}, err
	}
	// Listing pages are usually rendered; ask the service for JS when a
	// key backs the request.
	resp, _, err := s.fetch(ctx, relay.ScrapeRequest{Query: target, RenderJS: true}, target)
	if err != nil {
		metrics.ObserveScrape(target, "error", 0)
		return relay.SpiderResult{}, err
	}
	metrics.ObserveScrape(target, "ok", len(resp.Body))
	return s.pipe.Spider(string(resp.Body), target), nil
}

func (s *Service) fetch(ctx context.Context, req relay.ScrapeRequest, target string) (relay.FetchResponse, bool, error) {
	fetchReq := relay.FetchRequest{
		URL:       target,
		RenderJS:  req.RenderJS,
		Autoparse: req.Autoparse,
	}
	s.pipe.AdjustFetch(&fetchReq)

	if s.keys == nil || s.keys.Empty() {
		resp, err := s.direct.Fetch(ctx, fetchReq)
		return resp, false, err
	}

	idx, key, err := s.keys.Select()
	if err != nil {
		if errors.Is(err, relay.ErrQuotaExhausted) {
			metrics.ObserveQuotaExhausted()
		}
		return relay.FetchResponse{}, false, err
	}
	fetchReq.APIKey = key

	resp, err := s.service.Fetch(ctx, fetchReq)
	if err != nil {
		// A failed fetch releases the reservation; only served
		// requests are charged against the key.
		s.keys.Release(idx)
		return relay.FetchResponse{}, true, err
	}
	s.keys.RecordUsage(idx)
	return resp, true, nil
}

func (s *Service) archive(ctx context.Context, target string, body []byte) {
	if s.blobs == nil || len(body) == 0 {
		return
	}
	host := metrics.SanitizeSite(target)
	now := s.clock.Now()
	path := fmt.Sprintf("%s/%s/%s/%d.html",
		s.cfg.ArchivePrefix, host, now.Format("2006-01-02"), now.UnixNano())
	if uri, err := s.blobs.PutObject(ctx, path, "text/html; charset=utf-8", body); err != nil {
		s.logger.Warn("capture archive failed", zap.String("url", target), zap.Error(err))
	} else {
		s.logger.Debug("capture archived", zap.String("uri", uri))
	}
}

func (s *Service) publish(ctx context.Context, target string, duration time.Duration, usedKey bool) {
	if s.events == nil {
		return
	}
	event := relay.Event{
		URL:        target,
		Host:       metrics.SanitizeSite(target),
		Status:     "ok",
		DurationMs: duration.Milliseconds(),
		UsedKey:    usedKey,
		At:         s.clock.Now(),
	}
	if _, err := s.events.Publish(ctx, s.cfg.EventTopic, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("url", target), zap.Error(err))
	}
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", relay.ErrInvalidInput
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", relay.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", relay.ErrInvalidInput)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", relay.ErrInvalidInput)
	}
	return u.String(), nil
}
