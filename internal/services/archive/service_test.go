package archive

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

type fakeQueue struct {
	mu   sync.Mutex
	adds map[string][]string // queue -> job ids
	data map[string][][]byte
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{adds: make(map[string][]string), data: make(map[string][][]byte)}
}

func (q *fakeQueue) Add(ctx context.Context, name string, data []byte, opts *interfaces.AddOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := "generated"
	if opts != nil && opts.JobID != "" {
		id = opts.JobID
	}
	q.adds[name] = append(q.adds[name], id)
	q.data[name] = append(q.data[name], data)
	return id, nil
}

func (q *fakeQueue) GetJob(ctx context.Context, id string) (*models.JobStatus, error) {
	return &models.JobStatus{ID: id, State: models.JobQueued}, nil
}
func (q *fakeQueue) GetState(context.Context, string) (models.JobState, error) {
	return models.JobQueued, nil
}
func (q *fakeQueue) GetCompleted(context.Context, string) ([]*models.JobStatus, error) {
	return nil, nil
}
func (q *fakeQueue) GetFailed(context.Context, string) ([]*models.JobStatus, error) {
	return nil, nil
}
func (q *fakeQueue) UpsertScheduler(context.Context, string, time.Duration, *time.Time, string, []byte) error {
	return nil
}
func (q *fakeQueue) Remove(context.Context, string) error            { return nil }
func (q *fakeQueue) Subscribe(string, int, interfaces.Handler) error { return nil }
func (q *fakeQueue) Start() error                                    { return nil }
func (q *fakeQueue) Stop(context.Context) error                      { return nil }

type fakeBins struct {
	files    map[string][]interfaces.FileInfo
	subjects map[string]string
}

func (b *fakeBins) BinPath(date time.Time, mediaType models.MediaType) string { return "" }
func (b *fakeBins) SavePdf([]byte, string, interfaces.SaveOptions) (string, error) {
	return "", nil
}
func (b *fakeBins) DeleteIfDifferent(string, string) error { return nil }
func (b *fakeBins) ExtractSubject(path string) (string, error) {
	if subject, ok := b.subjects[path]; ok {
		return subject, nil
	}
	return "", assert.AnError
}
func (b *fakeBins) ListWeeks() ([]interfaces.WeekInfo, error) { return nil, nil }
func (b *fakeBins) ListFiles(weekID string) ([]interfaces.FileInfo, error) {
	return b.files[weekID], nil
}

type fakeFailures struct{}

func (fakeFailures) SaveFailure(context.Context, *models.FailureRecord) error { return nil }
func (fakeFailures) ListFailures(context.Context) ([]*models.FailureRecord, error) {
	return nil, nil
}
func (fakeFailures) DeleteFailures(ctx context.Context, ids []string) (int, error) {
	return len(ids), nil
}

func newTestService(t *testing.T) (*Service, *fakeQueue, *fakeBins, string) {
	t.Helper()
	dataDir := t.TempDir()
	queue := newFakeQueue()
	bins := &fakeBins{files: make(map[string][]interfaces.FileInfo), subjects: make(map[string]string)}
	svc := NewService(queue, bins, fakeFailures{}, dataDir, filepath.Join(dataDir, "cookies.txt"), arbor.NewLogger())
	return svc, queue, bins, dataDir
}

func TestSubmitConversion(t *testing.T) {
	svc, queue, _, _ := newTestService(t)

	jobID, err := svc.SubmitConversion(context.Background(), SubmitRequest{URL: "https://example.com/a", Title: "A"})
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	require.Len(t, queue.adds["conversion"], 1)

	var job models.ConversionJob
	require.NoError(t, json.Unmarshal(queue.data["conversion"][0], &job))
	assert.Equal(t, "https://example.com/a", job.URL)
	assert.Equal(t, "A", job.Title)
}

func TestSubmitConversionRejectsVideoHosts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.SubmitConversion(context.Background(), SubmitRequest{URL: "https://www.youtube.com/watch?v=1"})
	assert.ErrorIs(t, err, ErrVideoOnlyHost)
}

func TestSubmitConversionRoutesPodcasts(t *testing.T) {
	svc, queue, _, _ := newTestService(t)
	_, err := svc.SubmitConversion(context.Background(), SubmitRequest{URL: "https://podcasts.apple.com/us/podcast/x/id1?i=10"})
	require.NoError(t, err)
	assert.Len(t, queue.adds["podcast"], 1)
	assert.Empty(t, queue.adds["conversion"])
}

func TestDeleteFilesPathTraversalRejected(t *testing.T) {
	svc, _, _, dataDir := newTestService(t)

	victim := filepath.Join(filepath.Dir(dataDir), "victim.txt")
	require.NoError(t, os.WriteFile(victim, []byte("precious"), 0644))

	inside := filepath.Join(dataDir, "media", "f.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(inside), 0755))
	require.NoError(t, os.WriteFile(inside, []byte("pdf"), 0644))

	// One bad path aborts the whole request before any deletion
	_, err := svc.DeleteFiles([]string{"media/f.pdf", "../victim.txt"})
	require.ErrorIs(t, err, ErrPathOutsideData)
	assert.FileExists(t, victim)
	assert.FileExists(t, inside)

	deleted, err := svc.DeleteFiles([]string{"media/f.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, inside)
}

func TestRerunWeekUsesEmbeddedSubjects(t *testing.T) {
	svc, queue, bins, _ := newTestService(t)

	bins.files["2025-W03"] = []interfaces.FileInfo{
		{Name: "a.pdf", Path: "/data/media/2025-W03/pdfs/a.pdf", SourceURL: "https://example.com/a"},
		{Name: "no-subject.pdf", Path: "/data/media/2025-W03/pdfs/no-subject.pdf"},
		{Name: "clip.mp4", Path: "/data/media/2025-W03/videos/clip.mp4"},
	}

	result, err := svc.RerunWeek(context.Background(), "2025-W03")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Submitted)
	require.Len(t, queue.data["conversion"], 1)

	var job models.ConversionJob
	require.NoError(t, json.Unmarshal(queue.data["conversion"][0], &job))
	assert.Equal(t, "https://example.com/a", job.URL)
	assert.Equal(t, "/data/media/2025-W03/pdfs/a.pdf", job.OldFilePath)
}

func TestRerunSelectedFilesAndURLs(t *testing.T) {
	svc, queue, bins, dataDir := newTestService(t)

	abs := filepath.Join(dataDir, "media", "2025-W03", "pdfs", "a.pdf")
	bins.subjects[abs] = "https://example.com/a"

	result, err := svc.RerunSelected(context.Background(), RerunSelection{
		Files: []string{"media/2025-W03/pdfs/a.pdf"},
		URLs:  []string{"https://example.com/b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Submitted)
	assert.Len(t, queue.adds["conversion"], 2)
}

func TestRerunSelectedRejectsTraversal(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.RerunSelected(context.Background(), RerunSelection{Files: []string{"../../etc/passwd"}})
	assert.ErrorIs(t, err, ErrPathOutsideData)
}

func TestUploadCookies(t *testing.T) {
	svc, _, _, dataDir := newTestService(t)

	valid := ".example.com\tTRUE\t/\tTRUE\t0\tname\tvalue\n"
	require.NoError(t, svc.UploadCookies(valid))
	content, err := os.ReadFile(filepath.Join(dataDir, "cookies.txt"))
	require.NoError(t, err)
	assert.Equal(t, valid, string(content))

	assert.Error(t, svc.UploadCookies("# nothing here\n"))
	assert.Error(t, svc.UploadCookies("a\tb\tc\n"))
}

func TestGetStatus(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	status, err := svc.GetStatus(context.Background(), "some-id")
	require.NoError(t, err)
	assert.Equal(t, models.JobQueued, status.State)
}
