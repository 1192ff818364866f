package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// CollectConfig holds collector configuration
type CollectConfig struct {
	// MaxPages bounds the number of pages fetched. Zero means no bound.
	MaxPages int
	// ProgressEvery logs progress every N pages (default: 10)
	ProgressEvery int
}

// DefaultCollectConfig returns the default collector configuration
func DefaultCollectConfig() CollectConfig {
	return CollectConfig{
		MaxPages:      100,
		ProgressEvery: 10,
	}
}

// Collect drives fetch until the list is exhausted or MaxPages is
// reached and returns every item in order.
//
// On a fetch error after the first page the items gathered so far are
// returned together with the error.
func Collect[T any](ctx context.Context, fetch FetchFunc[T], config CollectConfig) ([]T, error) {
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 10
	}

	start := time.Now()
	logger := log.With().Str("component", "pagination").Logger()
	list := New(fetch, WithLogger(logger))

	if _, err := list.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	pages := 1

	for list.HasMore() {
		if config.MaxPages > 0 && pages >= config.MaxPages {
			logger.Warn().
				Int("pages", pages).
				Int("max_pages", config.MaxPages).
				Msg("Page limit reached, returning partial results")
			break
		}

		if err := ctx.Err(); err != nil {
			items := list.Items()
			return items, fmt.Errorf("collect cancelled (partial data: %d items): %w", len(items), err)
		}

		applied, err := list.LoadMore(ctx)
		if err != nil {
			snap := list.Snapshot()
			logger.Warn().
				Err(err).
				Int("pages", pages).
				Int("cursor", snap.Cursor).
				Msg("Page fetch failed - returning partial results")
			return snap.Items, fmt.Errorf("fetch page at cursor %d (partial data: %d items): %w", snap.Cursor, len(snap.Items), err)
		}
		if !applied {
			break
		}
		pages++

		if pages%config.ProgressEvery == 0 {
			logger.Info().
				Int("pages", pages).
				Int("items", len(list.Items())).
				Msg("Collect progress")
		}
	}

	items := list.Items()
	logger.Info().
		Int("pages", pages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Collect complete")

	return items, nil
}
