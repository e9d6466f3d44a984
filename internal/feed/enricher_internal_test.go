package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"feedimport/internal/domain"
	"feedimport/internal/ratelimiter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractOGImage(t *testing.T) {
	cases := []struct {
		name string
		page string
		want string
	}{
		{
			name: "property first double quotes",
			page: `<html><head><meta property="og:image" content="https://a.example/1.jpg"></head></html>`,
			want: "https://a.example/1.jpg",
		},
		{
			name: "content first single quotes",
			page: `<html><head><meta content='https://a.example/2.jpg' property='og:image' /></head></html>`,
			want: "https://a.example/2.jpg",
		},
		{
			name: "other meta tags first",
			page: `<head><meta property="og:title" content="T"><meta property="og:image" content="/img/3.jpg"></head>`,
			want: "/img/3.jpg",
		},
		{
			name: "inside noscript",
			page: `<head><noscript><meta content="https://a.example/4.jpg" property="og:image"></noscript></head>`,
			want: "https://a.example/4.jpg",
		},
		{
			name: "missing",
			page: `<html><head><meta name="description" content="x"></head></html>`,
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractOGImage([]byte(tc.page)))
		})
	}
}

func TestResolveImageURL(t *testing.T) {
	assert.Equal(t, "https://news.example.com/img/a.jpg",
		resolveImageURL("https://news.example.com/story/1", "/img/a.jpg"))
	assert.Equal(t, "https://cdn.example.com/a.jpg",
		resolveImageURL("https://news.example.com/story/1", "https://cdn.example.com/a.jpg"))
	assert.Empty(t, resolveImageURL("https://news.example.com/story/1", ""))
}

func TestEnricherBackfillsImages(t *testing.T) {
	var hits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/with-og", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<html><head><meta property="og:image" content="/og.jpg"></head></html>`)
	})
	mux.HandleFunc("/without-og", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<html><head><title>nothing</title></head></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := NewFetcher(FetcherOptions{}, slog.Default())
	enricher := NewEnricher(fetcher, 200*time.Millisecond, 2, slog.Default())

	items := []domain.FeedItem{
		{Link: srv.URL + "/with-og", NeedsImage: true},
		{Link: srv.URL + "/without-og", NeedsImage: true},
		{Link: srv.URL + "/broken", NeedsImage: true},
		{Link: srv.URL + "/slow", NeedsImage: true},
		{Link: srv.URL + "/never-fetched", PreviewImageURL: "https://cdn.example.com/x.jpg"},
	}

	start := time.Now()
	got := enricher.Enrich(context.Background(), items)
	require.Less(t, time.Since(start), 3*time.Second)

	require.Len(t, got, len(items))
	assert.Equal(t, srv.URL+"/og.jpg", got[0].PreviewImageURL)
	assert.False(t, got[0].NeedsImage)

	for _, i := range []int{1, 2, 3} {
		assert.Empty(t, got[i].PreviewImageURL, "item %d", i)
		assert.True(t, got[i].NeedsImage, "item %d", i)
	}

	assert.Equal(t, "https://cdn.example.com/x.jpg", got[4].PreviewImageURL)
	assert.Equal(t, int32(4), hits.Load())

	assert.True(t, items[0].NeedsImage, "input slice must not be modified")
}

func TestEnricherCachesLookups(t *testing.T) {
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `<meta property="og:image" content="https://cdn.example.com/c.jpg">`)
	}))
	defer srv.Close()

	enricher := NewEnricher(NewFetcher(FetcherOptions{}, slog.Default()), time.Second, 1, slog.Default())
	items := []domain.FeedItem{{Link: srv.URL + "/a", NeedsImage: true}}

	first := enricher.Enrich(context.Background(), items)
	second := enricher.Enrich(context.Background(), items)

	assert.Equal(t, "https://cdn.example.com/c.jpg", first[0].PreviewImageURL)
	assert.Equal(t, "https://cdn.example.com/c.jpg", second[0].PreviewImageURL)
	assert.Equal(t, int32(1), hits.Load())
}

func TestEnricherSameHostItemsAllGetImagesUnderPacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<meta property="og:image" content="https://cdn.example.com%s.jpg">`, r.URL.Path)
	}))
	defer srv.Close()

	limiter := ratelimiter.New(10*time.Millisecond, slog.Default())
	fetcher := NewFetcher(FetcherOptions{Limiter: limiter}, slog.Default())
	enricher := NewEnricher(fetcher, 200*time.Millisecond, 32, slog.Default())

	items := make([]domain.FeedItem, 64)
	for i := range items {
		items[i] = domain.FeedItem{Link: fmt.Sprintf("%s/story/%d", srv.URL, i), NeedsImage: true}
	}

	got := enricher.Enrich(context.Background(), items)

	for i, item := range got {
		assert.Equal(t, fmt.Sprintf("https://cdn.example.com/story/%d.jpg", i), item.PreviewImageURL, "item %d", i)
	}
}
