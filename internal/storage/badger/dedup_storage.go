package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

// Key prefixes for dedup state. These mirror the documented persisted layout
// so external tooling can inspect the sets.
const (
	guidKeyPrefix       = "feed:guids:"
	seenURLKeyPrefix    = "bookmarks:seen-urls:"
	provenanceKeyPrefix = "bookmark:"
)

// DedupStorage implements the DedupStorage interface on raw badger
// transactions. Set membership is a key-exists check; marks are idempotent
// single-key writes, so concurrent callers are safe.
type DedupStorage struct {
	db     *badgerdb.DB
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.DedupStorage = (*DedupStorage)(nil)

// NewDedupStorage creates a new DedupStorage instance
func NewDedupStorage(db *BadgerDB, logger arbor.ILogger) *DedupStorage {
	return &DedupStorage{
		db:     db.Badger(),
		logger: logger,
	}
}

func guidKey(source models.FeedSource, guid string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", guidKeyPrefix, source, guid))
}

func seenURLKey(canonicalURL string) []byte {
	return []byte(seenURLKeyPrefix + canonicalURL)
}

func provenanceKey(canonicalURL string) []byte {
	return []byte(provenanceKeyPrefix + canonicalURL)
}

func (s *DedupStorage) exists(key []byte) (bool, error) {
	found := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// IsGUIDSeen reports whether the guid has been processed for the source
func (s *DedupStorage) IsGUIDSeen(ctx context.Context, source models.FeedSource, guid string) (bool, error) {
	return s.exists(guidKey(source, guid))
}

// MarkGUIDSeen records the guid as processed for the source
func (s *DedupStorage) MarkGUIDSeen(ctx context.Context, source models.FeedSource, guid string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(guidKey(source, guid), []byte{})
	})
}

// IsURLSeen reports whether the canonical URL has been seen by any source
func (s *DedupStorage) IsURLSeen(ctx context.Context, canonicalURL string) (bool, error) {
	return s.exists(seenURLKey(canonicalURL))
}

// MarkURLSeen records the canonical URL globally and stores its provenance
func (s *DedupStorage) MarkURLSeen(ctx context.Context, canonicalURL string, source models.FeedSource) error {
	prov := models.URLProvenance{
		Source:      source,
		FirstSeenAt: time.Now(),
	}
	data, err := json.Marshal(prov)
	if err != nil {
		return fmt.Errorf("failed to marshal provenance: %w", err)
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(seenURLKey(canonicalURL), []byte{}); err != nil {
			return err
		}
		// First writer wins on provenance
		if _, err := txn.Get(provenanceKey(canonicalURL)); err == badgerdb.ErrKeyNotFound {
			return txn.Set(provenanceKey(canonicalURL), data)
		} else if err != nil {
			return err
		}
		return nil
	})
}

// GetProvenance returns where and when the canonical URL was first seen
func (s *DedupStorage) GetProvenance(ctx context.Context, canonicalURL string) (*models.URLProvenance, error) {
	var prov models.URLProvenance
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(provenanceKey(canonicalURL))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &prov)
		})
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provenance: %w", err)
	}
	return &prov, nil
}
