package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// FeedCacheStorage persists conditional polling state per feed source.
// Records live under the documented "feed:cache:{source}" keys.
type FeedCacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.FeedCacheStorage = (*FeedCacheStorage)(nil)

// NewFeedCacheStorage creates a new FeedCacheStorage instance
func NewFeedCacheStorage(db *BadgerDB, logger arbor.ILogger) *FeedCacheStorage {
	return &FeedCacheStorage{
		db:     db,
		logger: logger,
	}
}

func cacheKey(source string) string {
	return "feed:cache:" + source
}

// GetCache returns the stored cache for a source, or an empty cache when none exists
func (s *FeedCacheStorage) GetCache(ctx context.Context, source string) (*models.FeedCache, error) {
	var cache models.FeedCache
	err := s.db.Store().Get(cacheKey(source), &cache)
	if err == badgerhold.ErrNotFound {
		return &models.FeedCache{Source: source}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed cache: %w", err)
	}
	return &cache, nil
}

// SetCache persists the cache for a source
func (s *FeedCacheStorage) SetCache(ctx context.Context, cache *models.FeedCache) error {
	if err := s.db.Store().Upsert(cacheKey(cache.Source), cache); err != nil {
		return fmt.Errorf("failed to set feed cache: %w", err)
	}
	return nil
}
