package enricher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

type recordingQueue struct {
	mu   sync.Mutex
	adds map[string][][]byte
	ids  map[string][]string
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{adds: make(map[string][][]byte), ids: make(map[string][]string)}
}

func (q *recordingQueue) Add(ctx context.Context, name string, data []byte, opts *interfaces.AddOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.adds[name] = append(q.adds[name], data)
	id := ""
	if opts != nil {
		id = opts.JobID
	}
	q.ids[name] = append(q.ids[name], id)
	return id, nil
}

func (q *recordingQueue) GetJob(context.Context, string) (*models.JobStatus, error) { return nil, nil }
func (q *recordingQueue) GetState(context.Context, string) (models.JobState, error) {
	return models.JobQueued, nil
}
func (q *recordingQueue) GetCompleted(context.Context, string) ([]*models.JobStatus, error) {
	return nil, nil
}
func (q *recordingQueue) GetFailed(context.Context, string) ([]*models.JobStatus, error) {
	return nil, nil
}
func (q *recordingQueue) UpsertScheduler(context.Context, string, time.Duration, *time.Time, string, []byte) error {
	return nil
}
func (q *recordingQueue) Remove(context.Context, string) error                     { return nil }
func (q *recordingQueue) Subscribe(string, int, interfaces.Handler) error          { return nil }
func (q *recordingQueue) Start() error                                             { return nil }
func (q *recordingQueue) Stop(context.Context) error                               { return nil }

type fakeJob struct {
	data []byte
}

func (j *fakeJob) ID() string                                { return "test-job" }
func (j *fakeJob) Queue() string                             { return "metadata" }
func (j *fakeJob) Data() []byte                              { return j.data }
func (j *fakeJob) AttemptsMade() int                         { return 1 }
func (j *fakeJob) MaxAttempts() int                          { return 1 }
func (j *fakeJob) Progress(ctx context.Context, p int) error { return nil }

func newTestRouter(t *testing.T, serverURL string) (*Router, *recordingQueue) {
	t.Helper()
	queue := newRecordingQueue()
	client := http.DefaultClient
	extractor := NewExtractor(client, "test-agent", arbor.NewLogger())
	return NewRouter(extractor, queue, arbor.NewLogger()), queue
}

func bookmarkPayload(t *testing.T, item models.BookmarkItem) []byte {
	t.Helper()
	data, err := json.Marshal(item)
	require.NoError(t, err)
	return data
}

func TestRouteConversionWithEnrichment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<meta property="og:title" content="Enriched Title"/>
			<meta property="og:site_name" content="Example Site"/>
			<title>Fallback</title>
		</head><body></body></html>`))
	}))
	defer server.Close()

	router, queue := newTestRouter(t, server.URL)

	item := models.BookmarkItem{
		OriginalURL:  server.URL + "/article",
		CanonicalURL: server.URL + "/article",
		GUID:         "g1",
		Source:       models.SourceRSS,
		Title:        "Feed Title",
	}

	_, err := router.Handle(context.Background(), &fakeJob{data: bookmarkPayload(t, item)})
	require.NoError(t, err)

	require.Len(t, queue.adds[ConversionQueueName], 1)
	var job models.ConversionJob
	require.NoError(t, json.Unmarshal(queue.adds[ConversionQueueName][0], &job))
	assert.Equal(t, "Enriched Title", job.Title, "web metadata wins over feed title")
	assert.Equal(t, item.OriginalURL, job.URL)
	require.NotNil(t, job.BookmarkedAt)
}

func TestRouteEnrichmentFailureStillConverts(t *testing.T) {
	router, queue := newTestRouter(t, "")

	item := models.BookmarkItem{
		OriginalURL:  "http://127.0.0.1:1/unreachable",
		CanonicalURL: "http://127.0.0.1:1/unreachable",
		Source:       models.SourceRSS,
		Title:        "Feed Title",
	}

	_, err := router.Handle(context.Background(), &fakeJob{data: bookmarkPayload(t, item)})
	require.NoError(t, err)

	require.Len(t, queue.adds[ConversionQueueName], 1)
	var job models.ConversionJob
	require.NoError(t, json.Unmarshal(queue.adds[ConversionQueueName][0], &job))
	assert.Equal(t, "Feed Title", job.Title, "feed title survives enrichment failure")
}

func TestRouteEnclosureToMedia(t *testing.T) {
	router, queue := newTestRouter(t, "")

	item := models.BookmarkItem{
		OriginalURL:  "https://stash.example.com/api/assets/a1",
		CanonicalURL: "https://stash.example.com/api/assets/a1",
		Source:       models.SourceLinkstash,
		Title:        "A Paper",
		MediaType:    models.MediaPDF,
		Enclosure:    &models.Enclosure{URL: "https://stash.example.com/api/assets/a1", MimeType: "application/pdf"},
	}

	_, err := router.Handle(context.Background(), &fakeJob{data: bookmarkPayload(t, item)})
	require.NoError(t, err)

	// Asset URL skips enrichment, goes to media, and stops there
	assert.Len(t, queue.adds[MediaQueueName], 1)
	assert.Empty(t, queue.adds[ConversionQueueName])
	assert.Contains(t, queue.ids[MediaQueueName][0], "media-")
}

func TestRoutePodcast(t *testing.T) {
	router, queue := newTestRouter(t, "")

	item := models.BookmarkItem{
		OriginalURL:  "https://podcasts.apple.com/us/podcast/x/id1?i=10",
		CanonicalURL: "https://podcasts.apple.com/us/podcast/x/id1?i=10",
		Source:       models.SourceRSS,
		Title:        "Episode",
	}

	_, err := router.Handle(context.Background(), &fakeJob{data: bookmarkPayload(t, item)})
	require.NoError(t, err)

	assert.Len(t, queue.adds[PodcastQueueName], 1)
	assert.Empty(t, queue.adds[ConversionQueueName])
}

func TestRouteVideoOnlyHostDropped(t *testing.T) {
	router, queue := newTestRouter(t, "")

	item := models.BookmarkItem{
		OriginalURL:  "https://www.youtube.com/watch?v=abc",
		CanonicalURL: "https://youtube.com/watch?v=abc",
		Source:       models.SourceRSS,
		Title:        "A Video",
	}

	_, err := router.Handle(context.Background(), &fakeJob{data: bookmarkPayload(t, item)})
	require.NoError(t, err)

	assert.Empty(t, queue.adds[ConversionQueueName])
	assert.Empty(t, queue.adds[MediaQueueName])
}

func TestIsVideoOnlyHost(t *testing.T) {
	assert.True(t, IsVideoOnlyHost("https://www.youtube.com/watch?v=abc"))
	assert.True(t, IsVideoOnlyHost("https://youtu.be/abc"))
	assert.False(t, IsVideoOnlyHost("https://example.com/video"))
}

func TestSanitizeJobID(t *testing.T) {
	id := sanitizeJobID("https://example.com/a?b=1")
	assert.Equal(t, "example-com-a-b-1", id)
}
