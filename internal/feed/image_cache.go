package feed

import (
	"container/list"
	"sync"
	"time"
)

const (
	imageCacheMaxEntries = 4096
	imageCacheHitTTL     = 24 * time.Hour
	imageCacheMissTTL    = time.Hour
)

// imageCache remembers og:image lookups per article link. A found image is
// kept for hitTTL; a page without one is remembered as a miss for missTTL, so
// pages that gain an image later are looked at again sooner.
type imageCache struct {
	mu       sync.Mutex
	byLink   map[string]*list.Element
	recency  *list.List // front is most recently used
	capacity int
	hitTTL   time.Duration
	missTTL  time.Duration
}

type imageLookup struct {
	link      string
	imageURL  string
	expiresAt time.Time
}

func (l *imageLookup) expired(now time.Time) bool {
	return now.After(l.expiresAt)
}

func newImageCache(capacity int, hitTTL time.Duration, missTTL time.Duration) *imageCache {
	if capacity <= 0 {
		return nil
	}

	return &imageCache{
		byLink:   make(map[string]*list.Element, capacity),
		recency:  list.New(),
		capacity: capacity,
		hitTTL:   hitTTL,
		missTTL:  missTTL,
	}
}

func (c *imageCache) ttlFor(imageURL string) time.Duration {
	if imageURL == "" {
		return c.missTTL
	}

	return c.hitTTL
}

// get returns the remembered image URL, empty for a remembered miss, and
// whether the link is remembered at all.
func (c *imageCache) get(link string, now time.Time) (string, bool) {
	if c == nil || link == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.byLink[link]
	if !ok {
		return "", false
	}

	lookup := elem.Value.(*imageLookup)
	if lookup.expired(now) {
		c.drop(elem)

		return "", false
	}

	c.recency.MoveToFront(elem)

	return lookup.imageURL, true
}

func (c *imageCache) set(link string, imageURL string, now time.Time) {
	if c == nil || link == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lookup := &imageLookup{
		link:      link,
		imageURL:  imageURL,
		expiresAt: now.Add(c.ttlFor(imageURL)),
	}

	if elem, ok := c.byLink[link]; ok {
		elem.Value = lookup
		c.recency.MoveToFront(elem)

		return
	}

	c.byLink[link] = c.recency.PushFront(lookup)
	c.prune(now)
}

// prune walks from the least recently used end, dropping expired lookups and
// then the oldest ones until the cache fits its capacity.
func (c *imageCache) prune(now time.Time) {
	for elem := c.recency.Back(); elem != nil; {
		prev := elem.Prev()

		if len(c.byLink) > c.capacity || elem.Value.(*imageLookup).expired(now) {
			c.drop(elem)
		}

		elem = prev
	}
}

func (c *imageCache) drop(elem *list.Element) {
	delete(c.byLink, elem.Value.(*imageLookup).link)
	c.recency.Remove(elem)
}
