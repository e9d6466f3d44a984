package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"feedimport/internal/domain"

	"gopkg.in/yaml.v3"
)

// File is the on-disk list of feed sources, e.g.
//
//	sources:
//	  - url: https://example.com/rss.xml
//	    category: 3
//	    owner: 1
//	    active: true
type File struct {
	Sources []Source `yaml:"sources"`
}

type Source struct {
	URL      string `yaml:"url"`
	Category int64  `yaml:"category"`
	Owner    int64  `yaml:"owner"`
	Active   *bool  `yaml:"active"`
}

type Upserter interface {
	UpsertSource(ctx context.Context, source domain.FeedSource) (int64, error)
}

func Load(path string) ([]domain.FeedSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var f File
	if err = yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}

	result := make([]domain.FeedSource, 0, len(f.Sources))
	var errs []error

	for i, s := range f.Sources {
		if err = validate(s); err != nil {
			errs = append(errs, fmt.Errorf("source %d: %w", i, err))
			continue
		}

		active := true
		if s.Active != nil {
			active = *s.Active
		}

		result = append(result, domain.FeedSource{
			URL:        strings.TrimSpace(s.URL),
			CategoryID: s.Category,
			OwnerID:    s.Owner,
			Active:     active,
		})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return result, nil
}

// Seed loads the sources file and upserts every entry by URL.
func Seed(ctx context.Context, path string, store Upserter, log *slog.Logger) (int, error) {
	list, err := Load(path)
	if err != nil {
		return 0, err
	}

	for _, s := range list {
		id, upsertErr := store.UpsertSource(ctx, s)
		if upsertErr != nil {
			return 0, fmt.Errorf("upsert source %q: %w", s.URL, upsertErr)
		}

		log.InfoContext(ctx, "Source is registered",
			"sourceID", id,
			"feedURL", s.URL,
			"active", s.Active,
			"ownerID", s.OwnerID)
	}

	return len(list), nil
}

func validate(s Source) error {
	raw := strings.TrimSpace(s.URL)
	if raw == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q must be absolute http(s)", raw)
	}

	if s.Category < 0 || s.Owner < 0 {
		return errors.New("category and owner must be non-negative")
	}

	return nil
}
