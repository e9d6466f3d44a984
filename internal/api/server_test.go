package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedimport/internal/api"
	"feedimport/internal/domain"
	"feedimport/internal/ingest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	result domain.SyncResult
	err    error
}

func (s stubRunner) RunSync(context.Context) (domain.SyncResult, error) {
	return s.result, s.err
}

type stubStore struct {
	contents map[string]*domain.ContentRecord
	sources  map[int64]*domain.FeedSource
	err      error
}

func (s stubStore) GetContentBySlug(_ context.Context, slug string) (*domain.ContentRecord, error) {
	return s.contents[slug], s.err
}

func (s stubStore) GetSource(_ context.Context, sourceID int64) (*domain.FeedSource, error) {
	return s.sources[sourceID], s.err
}

func (s stubStore) CountContents(context.Context) (int, error) {
	return len(s.contents), s.err
}

func serve(t *testing.T, runner api.Runner, token string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	return serveWithStore(t, runner, stubStore{}, token, req)
}

func serveWithStore(
	t *testing.T,
	runner api.Runner,
	store api.Store,
	token string,
	req *http.Request,
) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	api.New(runner, store, token, time.Minute, slog.Default()).Routes().ServeHTTP(rec, req)

	return rec
}

func TestSyncReturnsSummary(t *testing.T) {
	runner := stubRunner{result: domain.SyncResult{SourcesProcessed: 2, ItemsImported: 5}}

	rec := serve(t, runner, "", httptest.NewRequest(http.MethodPost, "/cron/rss", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.SourcesProcessed)
	assert.Equal(t, 5, got.ItemsImported)
}

func TestSyncRequiresToken(t *testing.T) {
	runner := stubRunner{}

	rec := serve(t, runner, "secret", httptest.NewRequest(http.MethodPost, "/cron/rss", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/cron/rss", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = serve(t, runner, "secret", req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSyncErrors(t *testing.T) {
	rec := serve(t, stubRunner{err: ingest.ErrSyncRunning}, "", httptest.NewRequest(http.MethodPost, "/cron/rss", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(t, stubRunner{err: errors.New("db down")}, "", httptest.NewRequest(http.MethodPost, "/cron/rss", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}

func TestHealth(t *testing.T) {
	rec := serve(t, stubRunner{}, "secret", httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestReadBackRoutes(t *testing.T) {
	fetchedAt := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	store := stubStore{
		contents: map[string]*domain.ContentRecord{
			"breaking-market-update": {
				ID:          3,
				Title:       "Breaking: Market Update!!",
				Slug:        "breaking-market-update",
				ContentType: domain.ContentTypePost,
				Status:      domain.ContentStatusPublic,
				OwnerID:     9,
				CategoryIDs: []int64{5},
			},
		},
		sources: map[int64]*domain.FeedSource{
			4: {ID: 4, URL: "https://a.example/rss", OwnerID: 9, Active: true, LastFetchedAt: &fetchedAt},
		},
	}

	rec := serveWithStore(t, stubRunner{}, store, "", httptest.NewRequest(http.MethodGet, "/contents/breaking-market-update", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var content map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &content))
	assert.Equal(t, "Breaking: Market Update!!", content["title"])
	assert.Equal(t, "published", content["status"])
	assert.Equal(t, []any{}, content["galleryUrls"])
	assert.Equal(t, []any{float64(5)}, content["categoryIds"])

	rec = serveWithStore(t, stubRunner{}, store, "", httptest.NewRequest(http.MethodGet, "/contents/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveWithStore(t, stubRunner{}, store, "", httptest.NewRequest(http.MethodGet, "/sources/4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lastFetchedAt":"2026-10-16T09:00:00Z"`)

	rec = serveWithStore(t, stubRunner{}, store, "", httptest.NewRequest(http.MethodGet, "/sources/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serveWithStore(t, stubRunner{}, store, "", httptest.NewRequest(http.MethodGet, "/sources/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serveWithStore(t, stubRunner{}, store, "", httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"contents":1}`, rec.Body.String())
}

func TestReadBackRoutesRequireTokenAndReportErrors(t *testing.T) {
	rec := serveWithStore(t, stubRunner{}, stubStore{}, "secret", httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	store := stubStore{err: errors.New("db down")}
	rec = serveWithStore(t, stubRunner{}, store, "", httptest.NewRequest(http.MethodGet, "/contents/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "db down")
}
