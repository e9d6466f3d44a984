package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"feedimport/internal/domain"
	"feedimport/internal/feed"
)

const (
	defaultSourceWorkers     = 4
	updateLastFetchedTimeout = 10 * time.Second
)

var ErrSyncRunning = errors.New("sync is already running")

type itemOutcome int

const (
	itemImported itemOutcome = iota
	itemSkipped
	itemFailed
)

type sourceOutcome struct {
	processed bool
	imported  int
	skipped   int
	failed    int
}

// Syncer runs one import pass over every active feed source.
type Syncer struct {
	sources  SourceStore
	fetcher  *feed.Fetcher
	parser   *feed.Parser
	enricher *feed.Enricher
	writer   *Writer
	workers  int
	running  atomic.Bool
	now      func() time.Time
	log      *slog.Logger
}

func NewSyncer(
	sources SourceStore,
	fetcher *feed.Fetcher,
	parser *feed.Parser,
	enricher *feed.Enricher,
	writer *Writer,
	workers int,
	log *slog.Logger,
) *Syncer {
	if workers <= 0 {
		workers = defaultSourceWorkers
	}

	return &Syncer{
		sources:  sources,
		fetcher:  fetcher,
		parser:   parser,
		enricher: enricher,
		writer:   writer,
		workers:  workers,
		now:      time.Now,
		log:      log,
	}
}

// RunSync imports new items from all active sources. It fails only when the
// sources cannot be listed; per-source and per-item problems are logged and
// counted.
func (s *Syncer) RunSync(ctx context.Context) (domain.SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return domain.SyncResult{}, ErrSyncRunning
	}
	defer s.running.Store(false)

	start := time.Now()

	sources, err := s.sources.ListActiveSources(ctx)
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("list active sources: %w", err)
	}

	outcomes := make([]sourceOutcome, len(sources))

	var wg sync.WaitGroup
	semCh := make(chan struct{}, min(s.workers, max(len(sources), 1)))

	for i, source := range sources {
		if ctx.Err() != nil {
			s.log.WarnContext(ctx, "Sync is interrupted",
				"error", ctx.Err(),
				"pendingSources", len(sources)-i)

			break
		}

		semCh <- struct{}{}

		wg.Go(func() {
			defer func() { <-semCh }()

			outcomes[i] = s.syncSource(ctx, source)
		})
	}

	wg.Wait()

	var result domain.SyncResult
	for _, o := range outcomes {
		if o.processed {
			result.SourcesProcessed++
		}
		result.ItemsImported += o.imported
		result.ItemsSkipped += o.skipped
		result.ItemsFailed += o.failed
	}
	result.SourcesSkipped = len(sources) - result.SourcesProcessed

	s.log.InfoContext(ctx, "Sync is completed",
		"sourcesProcessed", result.SourcesProcessed,
		"sourcesSkipped", result.SourcesSkipped,
		"itemsImported", result.ItemsImported,
		"itemsSkipped", result.ItemsSkipped,
		"itemsFailed", result.ItemsFailed,
		"durationSeconds", time.Since(start).Seconds())

	return result, nil
}

func (s *Syncer) syncSource(ctx context.Context, source domain.FeedSource) (outcome sourceOutcome) {
	if !source.Active {
		return sourceOutcome{}
	}

	if !source.HasOwner() {
		s.log.WarnContext(ctx, "Skipping source without owner",
			"sourceID", source.ID,
			"feedURL", source.URL)

		return sourceOutcome{}
	}

	// From here on the source counts as attempted, even if something panics.
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "Source sync panicked",
				"panic", fmt.Sprint(r),
				"sourceID", source.ID,
				"feedURL", source.URL)
		}

		s.markFetched(ctx, source)
		outcome.processed = true
	}()

	items := s.loadItems(ctx, source)

	for _, item := range items {
		if ctx.Err() != nil {
			s.log.WarnContext(ctx, "Source sync is interrupted",
				"error", ctx.Err(),
				"sourceID", source.ID,
				"feedURL", source.URL)

			break
		}

		switch s.importItem(ctx, item, source) {
		case itemImported:
			outcome.imported++
		case itemSkipped:
			outcome.skipped++
		case itemFailed:
			outcome.failed++
		}
	}

	s.log.InfoContext(ctx, "Source is synced",
		"sourceID", source.ID,
		"feedURL", source.URL,
		"items", len(items),
		"imported", outcome.imported,
		"skipped", outcome.skipped,
		"failed", outcome.failed)

	return outcome
}

// loadItems fetches, parses and enriches the feed of source. Any failure yields
// no items.
func (s *Syncer) loadItems(ctx context.Context, source domain.FeedSource) (items []domain.FeedItem) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "Loading feed items panicked",
				"panic", fmt.Sprint(r),
				"sourceID", source.ID,
				"feedURL", source.URL)

			items = nil
		}
	}()

	raw, err := s.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to fetch feed",
			"error", err,
			"sourceID", source.ID,
			"feedURL", source.URL)

		return nil
	}

	items = s.parser.Parse(ctx, raw, source.URL)

	return s.enricher.Enrich(ctx, items)
}

func (s *Syncer) importItem(
	ctx context.Context,
	item domain.FeedItem,
	source domain.FeedSource,
) (outcome itemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "Item import panicked",
				"panic", fmt.Sprint(r),
				"sourceID", source.ID,
				"link", item.Link)

			outcome = itemFailed
		}
	}()

	record, err := s.writer.ImportItem(ctx, item, source)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to import item",
			"error", err,
			"sourceID", source.ID,
			"link", item.Link)

		return itemFailed
	}

	if record == nil {
		return itemSkipped
	}

	s.log.DebugContext(ctx, "Item is imported",
		"sourceID", source.ID,
		"contentID", record.ID,
		"slug", record.Slug,
		"link", item.Link)

	return itemImported
}

func (s *Syncer) markFetched(ctx context.Context, source domain.FeedSource) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), updateLastFetchedTimeout)
	defer cancel()

	if err := s.sources.UpdateLastFetchedAt(ctx, source.ID, s.now()); err != nil {
		s.log.ErrorContext(ctx, "Failed to update last fetch time",
			"error", err,
			"sourceID", source.ID,
			"feedURL", source.URL)
	}
}
