package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"feedimport/internal/domain"
	"feedimport/internal/feed"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

type Writer struct {
	store  ContentStore
	guard  *Guard
	policy *bluemonday.Policy
	newID  func() string
	now    func() time.Time
	log    *slog.Logger
}

func NewWriter(store ContentStore, log *slog.Logger) *Writer {
	return &Writer{
		store:  store,
		guard:  NewGuard(store),
		policy: bluemonday.UGCPolicy(),
		newID:  uuid.NewString,
		now:    time.Now,
		log:    log,
	}
}

// ImportItem stores item as a published post owned by the source's owner.
// It returns nil without error when the link was imported before.
func (w *Writer) ImportItem(
	ctx context.Context,
	item domain.FeedItem,
	source domain.FeedSource,
) (*domain.ContentRecord, error) {
	imported, err := w.guard.AlreadyImported(ctx, item.Link)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if imported {
		return nil, nil
	}

	now := w.now()
	fallbackID := w.newID()

	record := &domain.ContentRecord{
		Title:           item.Title,
		Body:            w.policy.Sanitize(item.Description),
		Slug:            feed.DeriveSlug(item.Title, fallbackID),
		PreviewImageURL: item.PreviewImageURL,
		GalleryURLs:     []string{},
		ContentType:     domain.ContentTypePost,
		Status:          domain.ContentStatusPublic,
		PublishedAt:     item.PublishedAt,
		ModifiedAt:      now,
		OwnerID:         source.OwnerID,
		CategoryIDs:     []int64{source.CategoryID},
	}

	provenance := &domain.Provenance{
		Marker:    domain.ProvenanceMarkerRSS,
		Value:     item.Link,
		CreatedAt: now,
	}

	_, err = w.store.CreateContent(ctx, record, provenance)
	if errors.Is(err, domain.ErrSlugTaken) {
		slug := fallbackID
		if record.Slug == fallbackID {
			slug = w.newID()
		}

		w.log.InfoContext(ctx, "Slug is taken so fallback id is used",
			"slug", record.Slug,
			"fallbackSlug", slug,
			"link", item.Link)

		record.Slug = slug
		_, err = w.store.CreateContent(ctx, record, provenance)
	}

	if errors.Is(err, domain.ErrAlreadyImported) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}

	return record, nil
}
