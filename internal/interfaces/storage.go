package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/recondo/internal/models"
)

// ErrKeyNotFound is returned when a key does not exist in storage
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair represents a stored key/value entry
type KeyValuePair struct {
	Key         string    `json:"key" badgerhold:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// KeyValueStorage provides generic key/value persistence
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value, description string) error
	Delete(ctx context.Context, key string) error
}

// DedupStorage tracks seen feed GUIDs per source and seen canonical URLs globally.
// All operations are atomic; marking an already-marked member is a no-op.
type DedupStorage interface {
	IsGUIDSeen(ctx context.Context, source models.FeedSource, guid string) (bool, error)
	MarkGUIDSeen(ctx context.Context, source models.FeedSource, guid string) error
	IsURLSeen(ctx context.Context, canonicalURL string) (bool, error)
	MarkURLSeen(ctx context.Context, canonicalURL string, source models.FeedSource) error
	GetProvenance(ctx context.Context, canonicalURL string) (*models.URLProvenance, error)
}

// FeedCacheStorage persists conditional polling state per feed source
type FeedCacheStorage interface {
	GetCache(ctx context.Context, source string) (*models.FeedCache, error)
	SetCache(ctx context.Context, cache *models.FeedCache) error
}

// FailureStorage persists terminal conversion failures for inspection
type FailureStorage interface {
	SaveFailure(ctx context.Context, record *models.FailureRecord) error
	ListFailures(ctx context.Context) ([]*models.FailureRecord, error)
	DeleteFailures(ctx context.Context, jobIDs []string) (int, error)
}

// StorageManager aggregates the storage services backed by one database
type StorageManager interface {
	KeyValueStorage() KeyValueStorage
	DedupStorage() DedupStorage
	FeedCacheStorage() FeedCacheStorage
	FailureStorage() FailureStorage
	Close() error
}
