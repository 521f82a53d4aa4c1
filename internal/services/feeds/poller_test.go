package feeds

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

// In-memory test doubles in the local-mock style

type memDedup struct {
	mu    sync.Mutex
	guids map[string]bool
	urls  map[string]bool
}

func newMemDedup() *memDedup {
	return &memDedup{guids: make(map[string]bool), urls: make(map[string]bool)}
}

func (m *memDedup) IsGUIDSeen(ctx context.Context, source models.FeedSource, guid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guids[string(source)+":"+guid], nil
}

func (m *memDedup) MarkGUIDSeen(ctx context.Context, source models.FeedSource, guid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guids[string(source)+":"+guid] = true
	return nil
}

func (m *memDedup) IsURLSeen(ctx context.Context, canonicalURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.urls[canonicalURL], nil
}

func (m *memDedup) MarkURLSeen(ctx context.Context, canonicalURL string, source models.FeedSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls[canonicalURL] = true
	return nil
}

func (m *memDedup) GetProvenance(ctx context.Context, canonicalURL string) (*models.URLProvenance, error) {
	return nil, interfaces.ErrKeyNotFound
}

type memFeedCache struct {
	caches map[string]*models.FeedCache
}

func newMemFeedCache() *memFeedCache {
	return &memFeedCache{caches: make(map[string]*models.FeedCache)}
}

func (m *memFeedCache) GetCache(ctx context.Context, source string) (*models.FeedCache, error) {
	if cache, ok := m.caches[source]; ok {
		return cache, nil
	}
	return &models.FeedCache{Source: source}, nil
}

func (m *memFeedCache) SetCache(ctx context.Context, cache *models.FeedCache) error {
	m.caches[cache.Source] = cache
	return nil
}

type memQueue struct {
	mu   sync.Mutex
	jobs map[string][][]byte
}

func newMemQueue() *memQueue {
	return &memQueue{jobs: make(map[string][][]byte)}
}

func (m *memQueue) Add(ctx context.Context, name string, data []byte, opts *interfaces.AddOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[name] = append(m.jobs[name], data)
	return "job-1", nil
}

func (m *memQueue) GetJob(ctx context.Context, id string) (*models.JobStatus, error) { return nil, nil }
func (m *memQueue) GetState(ctx context.Context, id string) (models.JobState, error) {
	return models.JobQueued, nil
}
func (m *memQueue) GetCompleted(ctx context.Context, name string) ([]*models.JobStatus, error) {
	return nil, nil
}
func (m *memQueue) GetFailed(ctx context.Context, name string) ([]*models.JobStatus, error) {
	return nil, nil
}
func (m *memQueue) UpsertScheduler(ctx context.Context, id string, every time.Duration, startAt *time.Time, name string, template []byte) error {
	return nil
}
func (m *memQueue) Remove(ctx context.Context, id string) error { return nil }
func (m *memQueue) Subscribe(name string, concurrency int, handler interfaces.Handler) error {
	return nil
}
func (m *memQueue) Start() error                  { return nil }
func (m *memQueue) Stop(ctx context.Context) error { return nil }

type staticSource struct {
	name  models.FeedSource
	items []models.BookmarkItem
}

func (s *staticSource) Name() models.FeedSource { return s.name }

func (s *staticSource) Fetch(ctx context.Context, cache *models.FeedCache) ([]models.BookmarkItem, *models.FeedCache, error) {
	return s.items, &models.FeedCache{Source: string(s.name), PolledAt: time.Now()}, nil
}

type noopEvents struct{}

func (noopEvents) Subscribe(models.EventType, interfaces.EventHandler) error { return nil }
func (noopEvents) Publish(context.Context, models.Event) error               { return nil }
func (noopEvents) PublishSync(context.Context, models.Event) error           { return nil }
func (noopEvents) Close() error                                              { return nil }

func item(source models.FeedSource, guid, url string) models.BookmarkItem {
	return models.BookmarkItem{
		OriginalURL:  url,
		CanonicalURL: Canonicalize(url),
		GUID:         guid,
		Source:       source,
	}
}

func TestPollEnqueuesNewItemsOnce(t *testing.T) {
	dedup := newMemDedup()
	queue := newMemQueue()
	source := &staticSource{
		name: models.SourceRSS,
		items: []models.BookmarkItem{
			item(models.SourceRSS, "g1", "https://example.com/a"),
			item(models.SourceRSS, "g2", "https://example.com/b"),
		},
	}

	poller := NewPoller([]Source{source}, dedup, newMemFeedCache(), queue, noopEvents{}, arbor.NewLogger())

	require.NoError(t, poller.Poll(context.Background(), source))
	assert.Len(t, queue.jobs[MetadataQueueName], 2)

	// Second poll of the same items yields nothing
	require.NoError(t, poller.Poll(context.Background(), source))
	assert.Len(t, queue.jobs[MetadataQueueName], 2)
}

func TestPollDedupsURLAcrossFeeds(t *testing.T) {
	dedup := newMemDedup()
	queue := newMemQueue()
	rss := &staticSource{
		name:  models.SourceRSS,
		items: []models.BookmarkItem{item(models.SourceRSS, "rss-1", "https://example.com/x")},
	}
	linkstash := &staticSource{
		name:  models.SourceLinkstash,
		items: []models.BookmarkItem{item(models.SourceLinkstash, "ls-1", "https://www.example.com/x")},
	}

	poller := NewPoller([]Source{rss, linkstash}, dedup, newMemFeedCache(), queue, noopEvents{}, arbor.NewLogger())
	require.NoError(t, poller.PollAll(context.Background()))

	// Both canonicalize to the same URL, so only one conversion path opens
	assert.Len(t, queue.jobs[MetadataQueueName], 1)
}

func TestPollPersistsCache(t *testing.T) {
	feedCache := newMemFeedCache()
	source := &staticSource{name: models.SourceRSS}
	poller := NewPoller([]Source{source}, newMemDedup(), feedCache, newMemQueue(), noopEvents{}, arbor.NewLogger())

	require.NoError(t, poller.Poll(context.Background(), source))
	cache, err := feedCache.GetCache(context.Background(), string(models.SourceRSS))
	require.NoError(t, err)
	assert.False(t, cache.PolledAt.IsZero())
}
