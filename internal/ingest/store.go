package ingest

import (
	"context"
	"time"

	"feedimport/internal/domain"
)

type SourceStore interface {
	ListActiveSources(ctx context.Context) ([]domain.FeedSource, error)
	UpdateLastFetchedAt(ctx context.Context, sourceID int64, at time.Time) error
}

// ContentStore must persist a record and its provenance atomically and report
// a provenance clash as domain.ErrAlreadyImported and a slug clash as
// domain.ErrSlugTaken.
type ContentStore interface {
	FindProvenance(ctx context.Context, marker string, value string) (*domain.Provenance, error)
	CreateContent(ctx context.Context, record *domain.ContentRecord, provenance *domain.Provenance) (int64, error)
}
