package domain

import (
	"errors"
	"time"
)

const (
	ContentTypePost     = "post"
	ContentStatusPublic = "published"
	ProvenanceMarkerRSS = "rsslink"
)

var (
	ErrAlreadyImported = errors.New("item already imported")
	ErrSlugTaken       = errors.New("slug already taken")
)

type FeedSource struct {
	ID            int64
	URL           string
	CategoryID    int64
	OwnerID       int64
	Active        bool
	LastFetchedAt *time.Time
}

// HasOwner reports whether imported items can be attributed to someone.
func (s FeedSource) HasOwner() bool {
	return s.OwnerID > 0
}

// FeedItem is a normalized feed entry. It is never persisted as is.
type FeedItem struct {
	Title           string
	Link            string
	Description     string
	PublishedAt     time.Time
	GUID            string
	PreviewImageURL string
	SourceDomain    string
	NeedsImage      bool
}

type ContentRecord struct {
	ID              int64
	Title           string
	Body            string
	Slug            string
	PreviewImageURL string
	GalleryURLs     []string
	ContentType     string
	Status          string
	PublishedAt     time.Time
	ModifiedAt      time.Time
	OwnerID         int64
	CategoryIDs     []int64
}

type Provenance struct {
	ContentID int64
	Marker    string
	Value     string
	CreatedAt time.Time
}

type SyncResult struct {
	SourcesProcessed int `json:"sourcesProcessed"`
	SourcesSkipped   int `json:"sourcesSkipped"`
	ItemsImported    int `json:"itemsImported"`
	ItemsSkipped     int `json:"itemsSkipped"`
	ItemsFailed      int `json:"itemsFailed"`
}
