package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/recondo/internal/models"
)

// Key layout, one keyspace per named queue:
//
//	queue:{name}:job:{id}                          -> jobRecord JSON
//	queue:{name}:ready:{prio}:{runAtNanos}:{id}    -> empty (claim index)
//	queue:{name}:done:{finishedNanos}:{id}         -> empty (retention index)
//	queue:{name}:dead:{finishedNanos}:{id}         -> empty (retention index)
//	queue:job-queue:{id}                           -> queue name (id lookup)
//	queue:scheduler:{id}                           -> schedulerRecord JSON
//
// Ready keys sort by inverted priority then run time, so the first key whose
// run time has passed is the next job to claim.
type store struct {
	db *badgerdb.DB
}

func jobKey(queue, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:job:%s", queue, id))
}

func readyKey(queue string, priority int, runAt time.Time, id string) []byte {
	// Invert priority so higher priorities sort first
	return []byte(fmt.Sprintf("queue:%s:ready:%010d:%020d:%s", queue, 1<<30-priority, runAt.UnixNano(), id))
}

func readyPrefix(queue string) []byte {
	return []byte(fmt.Sprintf("queue:%s:ready:", queue))
}

func finishedKey(queue, kind string, finished time.Time, id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:%s:%020d:%s", queue, kind, finished.UnixNano(), id))
}

func finishedPrefix(queue, kind string) []byte {
	return []byte(fmt.Sprintf("queue:%s:%s:", queue, kind))
}

func jobQueueKey(id string) []byte {
	return []byte("queue:job-queue:" + id)
}

func schedulerKey(id string) []byte {
	return []byte("queue:scheduler:" + id)
}

const schedulerPrefix = "queue:scheduler:"

func parseReadyKey(key []byte) (runAt time.Time, id string, err error) {
	parts := strings.Split(string(key), ":")
	// queue:{name}:ready:{prio}:{nanos}:{id}
	if len(parts) < 6 {
		return time.Time{}, "", fmt.Errorf("invalid ready key: %s", key)
	}
	nanos, err := strconv.ParseInt(parts[len(parts)-2], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid ready key timestamp: %w", err)
	}
	return time.Unix(0, nanos), parts[len(parts)-1], nil
}

func (s *store) getRecord(txn *badgerdb.Txn, queue, id string) (*jobRecord, error) {
	item, err := txn.Get(jobKey(queue, id))
	if err == badgerdb.ErrKeyNotFound {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec jobRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *store) putRecord(txn *badgerdb.Txn, rec *jobRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(jobKey(rec.Queue, rec.ID), data)
}

// resolveQueue finds which queue owns a job id
func (s *store) resolveQueue(id string) (string, error) {
	var queue string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(jobQueueKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			queue = string(val)
			return nil
		})
	})
	if err == badgerdb.ErrKeyNotFound {
		return "", ErrJobNotFound
	}
	return queue, err
}

// insert writes a new queued job and its ready index entry
func (s *store) insert(rec *jobRecord) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if err := s.putRecord(txn, rec); err != nil {
			return err
		}
		if err := txn.Set(jobQueueKey(rec.ID), []byte(rec.Queue)); err != nil {
			return err
		}
		return txn.Set(readyKey(rec.Queue, rec.Priority, rec.RunAt, rec.ID), []byte{})
	})
}

// claimNext atomically claims the next ready job in the queue: the index
// entry is removed and the record moves to processing with the attempt
// counted. Returns ErrNoJob when nothing is ready.
func (s *store) claimNext(queue string) (*jobRecord, error) {
	var claimed *jobRecord

	err := s.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := readyPrefix(queue)
		now := time.Now()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			runAt, id, err := parseReadyKey(key)
			if err != nil {
				continue
			}
			if runAt.After(now) {
				// Keys within one priority band sort by run time, but a
				// lower-priority band may still hold a ready job.
				continue
			}

			rec, err := s.getRecord(txn, queue, id)
			if err == ErrJobNotFound {
				// Stale index entry
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}

			if err := txn.Delete(key); err != nil {
				return err
			}

			rec.State = models.JobProcessing
			rec.AttemptsMade++
			rec.Progress = 0
			if err := s.putRecord(txn, rec); err != nil {
				return err
			}

			claimed = rec
			return nil
		}

		return ErrNoJob
	})

	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// requeue schedules a failed attempt for retry after the backoff delay
func (s *store) requeue(rec *jobRecord, delay time.Duration) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		rec.State = models.JobQueued
		rec.RunAt = time.Now().Add(delay)
		if err := s.putRecord(txn, rec); err != nil {
			return err
		}
		return txn.Set(readyKey(rec.Queue, rec.Priority, rec.RunAt, rec.ID), []byte{})
	})
}

// finish moves a job to its terminal state and indexes it for retention
func (s *store) finish(rec *jobRecord, state models.JobState, failedReason string, returnValue []byte) error {
	now := time.Now()
	kind := "done"
	if state == models.JobFailed {
		kind = "dead"
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		rec.State = state
		rec.FailedReason = failedReason
		rec.ReturnValue = returnValue
		rec.FinishedOn = &now
		if state == models.JobComplete {
			rec.Progress = 100
		}
		if err := s.putRecord(txn, rec); err != nil {
			return err
		}
		return txn.Set(finishedKey(rec.Queue, kind, now, rec.ID), []byte{})
	})
}

// updateProgress persists a handler's progress report
func (s *store) updateProgress(queue, id string, pct int) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		rec, err := s.getRecord(txn, queue, id)
		if err != nil {
			return err
		}
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		rec.Progress = pct
		return s.putRecord(txn, rec)
	})
}

// remove deletes a job record and every index entry pointing at it
func (s *store) remove(queue, id string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		rec, err := s.getRecord(txn, queue, id)
		if err == ErrJobNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if err := txn.Delete(readyKey(queue, rec.Priority, rec.RunAt, id)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		if rec.FinishedOn != nil {
			for _, kind := range []string{"done", "dead"} {
				if err := txn.Delete(finishedKey(queue, kind, *rec.FinishedOn, id)); err != nil && err != badgerdb.ErrKeyNotFound {
					return err
				}
			}
		}
		if err := txn.Delete(jobQueueKey(id)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Delete(jobKey(queue, id))
	})
}

// listFinished returns finished jobs of one kind, oldest first
func (s *store) listFinished(queue, kind string) ([]*jobRecord, error) {
	var records []*jobRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := finishedPrefix(queue, kind)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			id := key[strings.LastIndex(key, ":")+1:]
			rec, err := s.getRecord(txn, queue, id)
			if err == ErrJobNotFound {
				continue
			}
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// prune enforces retention bounds on finished jobs of one kind
func (s *store) prune(queue, kind string, retention retentionBounds) error {
	if retention.never {
		return nil
	}
	records, err := s.listFinished(queue, kind)
	if err != nil {
		return err
	}

	var doomed []*jobRecord
	if retention.maxCount > 0 && len(records) > retention.maxCount {
		doomed = append(doomed, records[:len(records)-retention.maxCount]...)
	}
	if retention.maxAge > 0 {
		cutoff := time.Now().Add(-retention.maxAge)
		for _, rec := range records {
			if rec.FinishedOn != nil && rec.FinishedOn.Before(cutoff) {
				doomed = append(doomed, rec)
			}
		}
	}

	for _, rec := range doomed {
		if err := s.remove(queue, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

type retentionBounds struct {
	maxCount int
	maxAge   time.Duration
	never    bool
}

// getScheduler loads a scheduler record, nil when absent
func (s *store) getScheduler(id string) (*schedulerRecord, error) {
	var rec schedulerRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(schedulerKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// putScheduler upserts a scheduler record
func (s *store) putScheduler(rec *schedulerRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(schedulerKey(rec.ID), data)
	})
}

// listSchedulers returns all scheduler records
func (s *store) listSchedulers() ([]*schedulerRecord, error) {
	var records []*schedulerRecord
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(schedulerPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec schedulerRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, &rec)
		}
		return nil
	})
	return records, err
}
