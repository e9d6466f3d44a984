package ingest

import (
	"context"
	"fmt"

	"feedimport/internal/domain"
)

// Guard answers whether a link was imported before. The provenance record is
// the only signal; titles and GUIDs are ignored because feeds rewrite them.
type Guard struct {
	store ContentStore
}

func NewGuard(store ContentStore) *Guard {
	return &Guard{store: store}
}

func (g *Guard) AlreadyImported(ctx context.Context, link string) (bool, error) {
	p, err := g.store.FindProvenance(ctx, domain.ProvenanceMarkerRSS, link)
	if err != nil {
		return false, fmt.Errorf("find provenance: %w", err)
	}

	return p != nil, nil
}
