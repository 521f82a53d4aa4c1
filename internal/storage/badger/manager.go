package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
)

// Manager aggregates the storage services backed by one Badger database
type Manager struct {
	db        *BadgerDB
	kv        interfaces.KeyValueStorage
	dedup     interfaces.DedupStorage
	feedCache interfaces.FeedCacheStorage
	failures  interfaces.FailureStorage
}

// Compile-time assertion
var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager creates the storage manager and its services
func NewManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:        db,
		kv:        NewKVStorage(db, logger),
		dedup:     NewDedupStorage(db, logger),
		feedCache: NewFeedCacheStorage(db, logger),
		failures:  NewFailureStorage(db, logger),
	}
}

func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage   { return m.kv }
func (m *Manager) DedupStorage() interfaces.DedupStorage         { return m.dedup }
func (m *Manager) FeedCacheStorage() interfaces.FeedCacheStorage { return m.feedCache }
func (m *Manager) FailureStorage() interfaces.FailureStorage     { return m.failures }

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}

// DB exposes the connection for services needing raw transactions
func (m *Manager) DB() *BadgerDB {
	return m.db
}
