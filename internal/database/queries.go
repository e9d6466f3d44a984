package database

import (
	"context"
	"database/sql"
	"errors"
	"feedimport/internal/domain"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

func (d *Database) UpsertSource(ctx context.Context, source domain.FeedSource) (int64, error) {
	sourceURL := strings.TrimSpace(source.URL)
	if sourceURL == "" {
		return 0, errors.New("source URL is empty")
	}

	query := `insert into feed_sources (url, category_id, owner_id, active)
	values (?, ?, ?, ?)
	on conflict (url) do update
	set category_id = excluded.category_id,
	owner_id = excluded.owner_id,
	active = excluded.active
	returning id`

	var id int64
	err := d.db.QueryRowContext(ctx, query,
		sourceURL, source.CategoryID, source.OwnerID, source.Active).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert source: %w", err)
	}

	return id, nil
}

func (d *Database) ListActiveSources(ctx context.Context) ([]domain.FeedSource, error) {
	query := `select id, url, category_id, owner_id, active, last_fetched_at
	from feed_sources
	where active = 1
	order by id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "ListActiveSources")
		}
	}()

	var sources []domain.FeedSource
	for rows.Next() {
		var (
			s           domain.FeedSource
			lastFetched sql.NullTime
		)
		if err = rows.Scan(&s.ID, &s.URL, &s.CategoryID, &s.OwnerID, &s.Active, &lastFetched); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		s.URL = strings.TrimSpace(s.URL)
		if lastFetched.Valid {
			t := lastFetched.Time
			s.LastFetchedAt = &t
		}

		sources = append(sources, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return sources, nil
}

func (d *Database) GetSource(ctx context.Context, sourceID int64) (*domain.FeedSource, error) {
	query := `select id, url, category_id, owner_id, active, last_fetched_at
	from feed_sources
	where id = ?`

	var (
		s           domain.FeedSource
		lastFetched sql.NullTime
	)
	err := d.db.QueryRowContext(ctx, query, sourceID).
		Scan(&s.ID, &s.URL, &s.CategoryID, &s.OwnerID, &s.Active, &lastFetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}

	if lastFetched.Valid {
		t := lastFetched.Time
		s.LastFetchedAt = &t
	}

	return &s, nil
}

func (d *Database) UpdateLastFetchedAt(ctx context.Context, sourceID int64, at time.Time) error {
	query := "update feed_sources set last_fetched_at = ? where id = ?"

	_, err := d.db.ExecContext(ctx, query, at.UTC(), sourceID)

	return err
}

// FindProvenance returns nil without error when nothing matches.
func (d *Database) FindProvenance(
	ctx context.Context,
	marker string,
	value string,
) (*domain.Provenance, error) {
	query := `select content_id, marker, value, created_at
	from provenance
	where marker = ? and value = ?`

	var p domain.Provenance
	err := d.db.QueryRowContext(ctx, query, marker, value).
		Scan(&p.ContentID, &p.Marker, &p.Value, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find provenance: %w", err)
	}

	return &p, nil
}

// CreateContent writes the record, its category links and its provenance in one
// transaction and returns the new content id.
func (d *Database) CreateContent(
	ctx context.Context,
	record *domain.ContentRecord,
	provenance *domain.Provenance,
) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			d.log.ErrorContext(ctx, "Failed to rollback transaction",
				"error", rollbackErr,
				"slug", record.Slug,
				"operation", "CreateContent")
		}
	}()

	contentQuery := `insert into contents (title, body, slug, preview_image_url, gallery_urls,
	content_type, status, published_at, modified_at, owner_id)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := tx.ExecContext(ctx, contentQuery,
		record.Title,
		record.Body,
		record.Slug,
		record.PreviewImageURL,
		strings.Join(record.GalleryURLs, "\n"),
		record.ContentType,
		record.Status,
		record.PublishedAt.UTC(),
		record.ModifiedAt.UTC(),
		record.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("insert content: %w", classifyConstraintErr(err))
	}

	contentID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get content id: %w", err)
	}

	for _, categoryID := range record.CategoryIDs {
		if _, err = tx.ExecContext(ctx,
			"insert or ignore into content_categories (content_id, category_id) values (?, ?)",
			contentID, categoryID); err != nil {
			return 0, fmt.Errorf("insert content category: %w", err)
		}
	}

	provenanceQuery := `insert into provenance (content_id, marker, value, created_at)
	values (?, ?, ?, ?)`

	if _, err = tx.ExecContext(ctx, provenanceQuery,
		contentID, provenance.Marker, provenance.Value, provenance.CreatedAt.UTC()); err != nil {
		return 0, fmt.Errorf("insert provenance: %w", classifyConstraintErr(err))
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	record.ID = contentID
	provenance.ContentID = contentID

	return contentID, nil
}

func (d *Database) GetContentBySlug(ctx context.Context, slug string) (*domain.ContentRecord, error) {
	query := `select id, title, body, slug, preview_image_url, gallery_urls,
	content_type, status, published_at, modified_at, owner_id
	from contents
	where slug = ?`

	var (
		c       domain.ContentRecord
		gallery string
	)
	err := d.db.QueryRowContext(ctx, query, slug).Scan(
		&c.ID, &c.Title, &c.Body, &c.Slug, &c.PreviewImageURL, &gallery,
		&c.ContentType, &c.Status, &c.PublishedAt, &c.ModifiedAt, &c.OwnerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}

	if gallery != "" {
		c.GalleryURLs = strings.Split(gallery, "\n")
	}

	categoryIDs, err := d.contentCategoryIDs(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.CategoryIDs = categoryIDs

	return &c, nil
}

func (d *Database) CountContents(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "select count(*) from contents").Scan(&n); err != nil {
		return 0, fmt.Errorf("count contents: %w", err)
	}

	return n, nil
}

func (d *Database) contentCategoryIDs(ctx context.Context, contentID int64) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		"select category_id from content_categories where content_id = ? order by category_id",
		contentID)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"contentID", contentID,
				"operation", "contentCategoryIDs")
		}
	}()

	var ids []int64
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return ids, nil
}

func classifyConstraintErr(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return err
	}

	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "contents.slug"):
		return fmt.Errorf("%w: %w", domain.ErrSlugTaken, err)
	case strings.Contains(msg, "provenance.marker"):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyImported, err)
	default:
		return err
	}
}
