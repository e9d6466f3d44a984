package api

import (
	"time"

	"feedimport/internal/domain"
)

type statsResponse struct {
	Contents int `json:"contents"`
}

type contentResponse struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
	Slug            string    `json:"slug"`
	PreviewImageURL string    `json:"previewImageUrl"`
	GalleryURLs     []string  `json:"galleryUrls"`
	ContentType     string    `json:"contentType"`
	Status          string    `json:"status"`
	PublishedAt     time.Time `json:"publishedAt"`
	ModifiedAt      time.Time `json:"modifiedAt"`
	OwnerID         int64     `json:"ownerId"`
	CategoryIDs     []int64   `json:"categoryIds"`
}

func newContentResponse(c *domain.ContentRecord) contentResponse {
	gallery := c.GalleryURLs
	if gallery == nil {
		gallery = []string{}
	}

	return contentResponse{
		ID:              c.ID,
		Title:           c.Title,
		Body:            c.Body,
		Slug:            c.Slug,
		PreviewImageURL: c.PreviewImageURL,
		GalleryURLs:     gallery,
		ContentType:     c.ContentType,
		Status:          c.Status,
		PublishedAt:     c.PublishedAt,
		ModifiedAt:      c.ModifiedAt,
		OwnerID:         c.OwnerID,
		CategoryIDs:     c.CategoryIDs,
	}
}

type sourceResponse struct {
	ID            int64      `json:"id"`
	URL           string     `json:"url"`
	CategoryID    int64      `json:"categoryId"`
	OwnerID       int64      `json:"ownerId"`
	Active        bool       `json:"active"`
	LastFetchedAt *time.Time `json:"lastFetchedAt"`
}

func newSourceResponse(s *domain.FeedSource) sourceResponse {
	return sourceResponse{
		ID:            s.ID,
		URL:           s.URL,
		CategoryID:    s.CategoryID,
		OwnerID:       s.OwnerID,
		Active:        s.Active,
		LastFetchedAt: s.LastFetchedAt,
	}
}
