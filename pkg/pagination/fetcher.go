package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds fetcher configuration.
type Config struct {
	// PageSize is the $top value requested per page.
	PageSize int

	// MaxConcurrency is the number of pages fetched per wave.
	MaxConcurrency int

	// Timeout bounds each page fetch.
	Timeout time.Duration
}

// DefaultConfig returns safe defaults for tracker listing endpoints.
func DefaultConfig() Config {
	return Config{
		PageSize:       100,
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single page of a listing endpoint.
type PageFetcher interface {
	// FetchPage returns the items at [skip, skip+top). A result shorter
	// than top marks the final page.
	FetchPage(ctx context.Context, endpoint string, skip, top int) ([]json.RawMessage, error)
}

// PageFunc adapts a function to the PageFetcher interface.
type PageFunc func(ctx context.Context, endpoint string, skip, top int) ([]json.RawMessage, error)

// FetchPage calls f.
func (f PageFunc) FetchPage(ctx context.Context, endpoint string, skip, top int) ([]json.RawMessage, error) {
	return f(ctx, endpoint, skip, top)
}

// Fetcher drains a paginated listing endpoint in parallel waves.
type Fetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewFetcher creates a fetcher. Non-positive config fields fall back to
// the defaults.
func NewFetcher(fetcher PageFetcher, config Config) *Fetcher {
	defaults := DefaultConfig()
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &Fetcher{fetcher: fetcher, config: config}
}

// FetchAll fetches every page of endpoint and returns the items in
// page order. Pages are requested MaxConcurrency at a time; the first
// page shorter than PageSize ends the listing. The first fetch error
// cancels the in-flight wave and is returned.
func (f *Fetcher) FetchAll(ctx context.Context, endpoint string) ([]json.RawMessage, error) {
	start := time.Now()

	var all []json.RawMessage
	skip := 0

	for {
		pages := make([][]json.RawMessage, f.config.MaxConcurrency)

		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < f.config.MaxConcurrency; i++ {
			g.Go(func() error {
				pageCtx, cancel := context.WithTimeout(gctx, f.config.Timeout)
				defer cancel()

				items, err := f.fetcher.FetchPage(pageCtx, endpoint, skip+i*f.config.PageSize, f.config.PageSize)
				if err != nil {
					return fmt.Errorf("fetch page at skip %d: %w", skip+i*f.config.PageSize, err)
				}
				pages[i] = items
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			log.Warn().
				Err(err).
				Str("endpoint", endpoint).
				Int("items", len(all)).
				Msg("Page fetch failed")
			return nil, err
		}

		done := false
		for _, page := range pages {
			all = append(all, page...)
			if len(page) < f.config.PageSize {
				done = true
				break
			}
		}
		if done {
			break
		}

		skip += f.config.MaxConcurrency * f.config.PageSize

		log.Debug().
			Str("endpoint", endpoint).
			Int("items", len(all)).
			Msg("Fetch progress")
	}

	log.Info().
		Str("endpoint", endpoint).
		Int("items", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Listing fetch complete")

	return all, nil
}
