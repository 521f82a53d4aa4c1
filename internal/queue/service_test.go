package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

func newTestService(t *testing.T, defaults map[string]interfaces.QueueOptions) *Service {
	t.Helper()
	opts := badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewService(db, defaults, 10*time.Millisecond, testLogger())
}

func TestAddAndClaim(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	id, err := svc.Add(ctx, "conversion", []byte(`{"url":"https://example.com/a"}`), nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	state, err := svc.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, state)

	rec, err := svc.store.claimNext("conversion")
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, models.JobProcessing, rec.State)
	assert.Equal(t, 1, rec.AttemptsMade)

	// Nothing else ready
	_, err = svc.store.claimNext("conversion")
	assert.Equal(t, ErrNoJob, err)
}

func TestAddDedupByJobID(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	id1, err := svc.Add(ctx, "conversion", []byte("a"), &interfaces.AddOptions{JobID: "stable-id"})
	require.NoError(t, err)

	// Same id while queued: no-op
	id2, err := svc.Add(ctx, "conversion", []byte("b"), &interfaces.AddOptions{JobID: "stable-id"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	status, err := svc.GetJob(ctx, "stable-id")
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, status.State)

	// Finish it, then the same id may be reused
	rec, err := svc.store.claimNext("conversion")
	require.NoError(t, err)
	require.NoError(t, svc.store.finish(rec, models.JobComplete, "", nil))

	_, err = svc.Add(ctx, "conversion", []byte("c"), &interfaces.AddOptions{JobID: "stable-id"})
	require.NoError(t, err)
	state, err := svc.GetState(ctx, "stable-id")
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, state)
}

func TestDelayedJobNotClaimable(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, "media", []byte("x"), &interfaces.AddOptions{Delay: time.Hour})
	require.NoError(t, err)

	_, err = svc.store.claimNext("media")
	assert.Equal(t, ErrNoJob, err)
}

func TestRetryThenTerminalFailure(t *testing.T) {
	defaults := map[string]interfaces.QueueOptions{
		"conversion": {
			Attempts: 2,
			Backoff:  interfaces.Backoff{Base: time.Millisecond},
		},
	}
	svc := newTestService(t, defaults)
	ctx := context.Background()

	id, err := svc.Add(ctx, "conversion", []byte("x"), nil)
	require.NoError(t, err)

	w := newWorker(svc, "conversion", 1, nil, testLogger())

	// First failure requeues
	rec, err := svc.store.claimNext("conversion")
	require.NoError(t, err)
	require.NoError(t, w.recordFailure(rec, errors.New("paywall: subscribe to continue reading"), 0))

	state, err := svc.GetState(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, state)

	// Wait out the backoff, second failure is terminal
	time.Sleep(5 * time.Millisecond)
	rec, err = svc.store.claimNext("conversion")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.AttemptsMade)
	require.NoError(t, w.recordFailure(rec, errors.New("paywall: subscribe to continue reading"), 0))

	status, err := svc.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, status.State)
	assert.Equal(t, "paywall: subscribe to continue reading", status.FailedReason)

	failed, err := svc.GetFailed(ctx, "conversion")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, id, failed[0].ID)
}

func TestCompletionAndRetentionPruning(t *testing.T) {
	defaults := map[string]interfaces.QueueOptions{
		"metadata": {
			Attempts:         1,
			RemoveOnComplete: interfaces.Retention{MaxCount: 2},
		},
	}
	svc := newTestService(t, defaults)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := svc.Add(ctx, "metadata", []byte("x"), nil)
		require.NoError(t, err)
		rec, err := svc.store.claimNext("metadata")
		require.NoError(t, err)
		require.NoError(t, svc.store.finish(rec, models.JobComplete, "", []byte("ok")))
		svc.pruneFinished("metadata")
		// Distinct finish timestamps keep the retention index ordered
		time.Sleep(time.Millisecond)
	}

	completed, err := svc.GetCompleted(ctx, "metadata")
	require.NoError(t, err)
	assert.Len(t, completed, 2)
}

func TestPriorityOrdering(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	lowID, err := svc.Add(ctx, "conversion", []byte("low"), nil)
	require.NoError(t, err)
	highID, err := svc.Add(ctx, "conversion", []byte("high"), &interfaces.AddOptions{Priority: 10})
	require.NoError(t, err)

	rec, err := svc.store.claimNext("conversion")
	require.NoError(t, err)
	assert.Equal(t, highID, rec.ID)

	rec, err = svc.store.claimNext("conversion")
	require.NoError(t, err)
	assert.Equal(t, lowID, rec.ID)
}

func TestProgressClamped(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	id, err := svc.Add(ctx, "conversion", []byte("x"), nil)
	require.NoError(t, err)

	rec, err := svc.store.claimNext("conversion")
	require.NoError(t, err)

	job := &liveJob{service: svc, rec: rec}
	require.NoError(t, job.Progress(ctx, 150))

	status, err := svc.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100, status.Progress)
}

func TestBackoffDelay(t *testing.T) {
	base := time.Minute
	assert.Equal(t, time.Minute, backoffDelay(base, 1))
	assert.Equal(t, 2*time.Minute, backoffDelay(base, 2))
	assert.Equal(t, 4*time.Minute, backoffDelay(base, 3))
	assert.Equal(t, 16*time.Minute, backoffDelay(base, 5))
}

func TestNextAligned(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	every := 15 * time.Minute

	now := time.Date(2024, 1, 1, 0, 7, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC), nextAligned(start, every, now))

	// Exactly on a tick advances to the next one
	now = time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC), nextAligned(start, every, now))

	// Before start returns start
	now = start.Add(-time.Hour)
	assert.Equal(t, start, nextAligned(start, every, now))
}

func TestSchedulerProducesJobs(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, svc.UpsertScheduler(ctx, "poll-rss", 50*time.Millisecond, &past, "feed-poll", []byte(`{"source":"rss"}`)))

	time.Sleep(60 * time.Millisecond)
	svc.fireDueSchedulers()

	rec, err := svc.store.claimNext("feed-poll")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"source":"rss"}`), rec.Data)
}

func TestRemove(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	id, err := svc.Add(ctx, "conversion", []byte("x"), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, id))

	_, err = svc.GetJob(ctx, id)
	assert.Equal(t, ErrJobNotFound, err)

	// Removing a missing id is a no-op
	require.NoError(t, svc.Remove(ctx, "nope"))
}
