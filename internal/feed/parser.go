package feed

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"feedimport/internal/domain"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"mvdan.cc/xurls/v2"
)

type Parser struct {
	now func() time.Time
	log *slog.Logger
}

func NewParser(log *slog.Logger) *Parser {
	return &Parser{now: time.Now, log: log}
}

// Parse turns a raw feed document into normalized items in document order.
// A document that cannot be parsed yields no items.
func (p *Parser) Parse(ctx context.Context, raw []byte, feedURL string) []domain.FeedItem {
	// gofeed.Parser keeps per-document state, so one is built per call.
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		p.log.WarnContext(ctx, "Failed to parse feed",
			"error", err,
			"feedURL", feedURL,
			"size", len(raw))

		return nil
	}

	sourceDomain := hostOf(feedURL)
	now := p.now()

	items := make([]domain.FeedItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}

		item, ok := p.normalizeItem(it, sourceDomain, now)
		if !ok {
			p.log.DebugContext(ctx, "Skipping feed item without link",
				"feedURL", feedURL,
				"itemTitle", strings.TrimSpace(it.Title),
				"guid", it.GUID)

			continue
		}

		items = append(items, item)
	}

	return items
}

func (p *Parser) normalizeItem(
	it *gofeed.Item,
	sourceDomain string,
	now time.Time,
) (domain.FeedItem, bool) {
	link := canonicalLink(it.Link)
	if link == "" {
		return domain.FeedItem{}, false
	}

	description := it.Description
	if strings.TrimSpace(it.Content) != "" {
		description = it.Content
	}

	publishedAt := now
	if it.PublishedParsed != nil {
		publishedAt = *it.PublishedParsed
	} else if it.UpdatedParsed != nil {
		publishedAt = *it.UpdatedParsed
	}

	imageURL := itemImageURL(it)

	return domain.FeedItem{
		Title:           strings.TrimSpace(it.Title),
		Link:            link,
		Description:     strings.TrimSpace(description),
		PublishedAt:     publishedAt,
		GUID:            strings.TrimSpace(it.GUID),
		PreviewImageURL: imageURL,
		SourceDomain:    sourceDomain,
		NeedsImage:      imageURL == "",
	}, true
}

// canonicalLink keeps a well-formed absolute link verbatim and otherwise digs
// the first URL out of the element text.
func canonicalLink(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if u, err := url.Parse(raw); err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https") {
		return raw
	}

	if found := xurls.Strict().FindString(raw); found != "" {
		return found
	}

	return raw
}

func itemImageURL(it *gofeed.Item) string {
	if media, ok := it.Extensions["media"]; ok {
		if u := mediaImageURL(media); u != "" {
			return u
		}
	}

	for _, enc := range it.Enclosures {
		if enc == nil {
			continue
		}

		if strings.HasPrefix(strings.ToLower(enc.Type), "image/") && strings.TrimSpace(enc.URL) != "" {
			return strings.TrimSpace(enc.URL)
		}
	}

	if it.Image != nil {
		return strings.TrimSpace(it.Image.URL)
	}

	return ""
}

func mediaImageURL(media map[string][]ext.Extension) string {
	for _, c := range media["content"] {
		medium := c.Attrs["medium"]
		mimeType := c.Attrs["type"]
		if medium != "" && medium != "image" {
			continue
		}
		if medium == "" && mimeType != "" && !strings.HasPrefix(mimeType, "image/") {
			continue
		}

		if u := strings.TrimSpace(c.Attrs["url"]); u != "" {
			return u
		}
	}

	for _, t := range media["thumbnail"] {
		if u := strings.TrimSpace(t.Attrs["url"]); u != "" {
			return u
		}
	}

	for _, g := range media["group"] {
		if u := mediaImageURL(g.Children); u != "" {
			return u
		}
	}

	return ""
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	return u.Hostname()
}
