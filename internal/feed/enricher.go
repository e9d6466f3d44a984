package feed

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"feedimport/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

const (
	defaultEnrichTimeout = 10 * time.Second
	defaultEnrichWorkers = 8
)

var (
	ogImagePropertyFirstRe = regexp.MustCompile(
		`(?is)<meta\b[^>]*?\bproperty\s*=\s*["']og:image["'][^>]*?\bcontent\s*=\s*["']([^"']+)["']`)
	ogImageContentFirstRe = regexp.MustCompile(
		`(?is)<meta\b[^>]*?\bcontent\s*=\s*["']([^"']+)["'][^>]*?\bproperty\s*=\s*["']og:image["']`)
)

// Enricher backfills preview images from the Open Graph metadata of the
// linked article.
type Enricher struct {
	fetcher *Fetcher
	timeout time.Duration
	workers int
	cache   *imageCache
	now     func() time.Time
	log     *slog.Logger
}

func NewEnricher(
	fetcher *Fetcher,
	timeout time.Duration,
	workers int,
	log *slog.Logger,
) *Enricher {
	if timeout <= 0 {
		timeout = defaultEnrichTimeout
	}
	if workers <= 0 {
		workers = defaultEnrichWorkers
	}

	return &Enricher{
		fetcher: fetcher,
		timeout: timeout,
		workers: workers,
		cache:   newImageCache(imageCacheMaxEntries, imageCacheHitTTL, imageCacheMissTTL),
		now:     time.Now,
		log:     log,
	}
}

// Enrich returns a copy of items in the same order. Items that need an image
// get one when the linked page declares og:image; all others are untouched.
func (e *Enricher) Enrich(ctx context.Context, items []domain.FeedItem) []domain.FeedItem {
	enriched := make([]domain.FeedItem, len(items))
	copy(enriched, items)

	var g errgroup.Group
	g.SetLimit(e.workers)

	for i := range enriched {
		if !enriched[i].NeedsImage || enriched[i].Link == "" {
			continue
		}

		g.Go(func() error {
			imageURL := e.lookupImage(ctx, enriched[i].Link)
			if imageURL != "" {
				enriched[i].PreviewImageURL = imageURL
				enriched[i].NeedsImage = false
			}

			return nil
		})
	}

	_ = g.Wait()

	return enriched
}

func (e *Enricher) lookupImage(ctx context.Context, link string) string {
	if imageURL, ok := e.cache.get(link, e.now()); ok {
		return imageURL
	}

	page, err := e.fetcher.FetchWithTimeout(ctx, link, e.timeout)
	if err != nil {
		e.log.InfoContext(ctx, "Failed to fetch article for preview image",
			"error", err,
			"link", link)

		return ""
	}

	imageURL := resolveImageURL(link, extractOGImage(page))
	e.cache.set(link, imageURL, e.now())

	return imageURL
}

// extractOGImage returns the og:image content of an HTML page or "".
func extractOGImage(page []byte) string {
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page)); err == nil {
		var found string
		doc.Find("meta[property][content]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			property, _ := s.Attr("property")
			if !strings.EqualFold(strings.TrimSpace(property), "og:image") {
				return true
			}

			content, _ := s.Attr("content")
			found = strings.TrimSpace(content)

			return found == ""
		})

		if found != "" {
			return found
		}
	}

	for _, re := range []*regexp.Regexp{ogImagePropertyFirstRe, ogImageContentFirstRe} {
		if m := re.FindSubmatch(page); len(m) == 2 {
			if found := strings.TrimSpace(string(m[1])); found != "" {
				return found
			}
		}
	}

	return ""
}

func resolveImageURL(pageURL string, imageURL string) string {
	if imageURL == "" {
		return ""
	}

	ref, err := url.Parse(imageURL)
	if err != nil {
		return imageURL
	}
	if ref.IsAbs() {
		return imageURL
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return imageURL
	}

	return base.ResolveReference(ref).String()
}
