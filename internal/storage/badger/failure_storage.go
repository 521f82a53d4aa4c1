package badger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// FailureStorage persists terminal conversion failures via badgerhold
type FailureStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.FailureStorage = (*FailureStorage)(nil)

// NewFailureStorage creates a new FailureStorage instance
func NewFailureStorage(db *BadgerDB, logger arbor.ILogger) *FailureStorage {
	return &FailureStorage{
		db:     db,
		logger: logger,
	}
}

// SaveFailure upserts a failure record keyed by job id
func (s *FailureStorage) SaveFailure(ctx context.Context, record *models.FailureRecord) error {
	if err := s.db.Store().Upsert(record.JobID, record); err != nil {
		return fmt.Errorf("failed to save failure record: %w", err)
	}
	return nil
}

// ListFailures returns all failure records, newest first
func (s *FailureStorage) ListFailures(ctx context.Context) ([]*models.FailureRecord, error) {
	var records []*models.FailureRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list failure records: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].FailedAt.After(records[j].FailedAt)
	})
	return records, nil
}

// DeleteFailures removes the given failure records, returning how many existed
func (s *FailureStorage) DeleteFailures(ctx context.Context, jobIDs []string) (int, error) {
	deleted := 0
	for _, id := range jobIDs {
		err := s.db.Store().Delete(id, &models.FailureRecord{})
		if err == badgerhold.ErrNotFound {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to delete failure record %s: %w", id, err)
		}
		deleted++
	}
	return deleted, nil
}
