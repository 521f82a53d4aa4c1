package feeds

import (
	"context"

	"github.com/ternarybob/recondo/internal/models"
)

// Source fetches and parses one configured feed. Fetch honors the cache's
// conditional headers; an unmodified feed returns no items and the cache
// unchanged.
type Source interface {
	Name() models.FeedSource
	Fetch(ctx context.Context, cache *models.FeedCache) ([]models.BookmarkItem, *models.FeedCache, error)
}

// GUIDChecker lets a paginated source stop once it reaches known territory
type GUIDChecker interface {
	IsGUIDSeen(ctx context.Context, source models.FeedSource, guid string) (bool, error)
}
