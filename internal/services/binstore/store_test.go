package binstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), arbor.NewLogger())
}

func minimalPDF(t *testing.T) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	pdf.MultiCell(500, 14, "test document body", "", "L", false)
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestBinPathIsPureFunctionOfWeekAndType(t *testing.T) {
	store := newTestStore(t)

	monday := time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)
	friday := time.Date(2025, 1, 17, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, store.BinPath(monday, models.MediaPDF), store.BinPath(friday, models.MediaPDF))
	assert.Contains(t, store.BinPath(monday, models.MediaPDF), filepath.Join("media", "2025-W03", "pdfs"))
	assert.Contains(t, store.BinPath(monday, models.MediaPodcast), "podcasts")
}

func TestSavePdfIsDeterministic(t *testing.T) {
	store := newTestStore(t)
	when := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	opts := interfaces.SaveOptions{Title: "Hello World", BookmarkedAt: &when}

	path1, err := store.SavePdf(minimalPDF(t), "https://news.ycombinator.com/item?id=1", opts)
	require.NoError(t, err)
	path2, err := store.SavePdf(minimalPDF(t), "https://news.ycombinator.com/item?id=1", opts)
	require.NoError(t, err)

	assert.Equal(t, path1, path2)
	assert.Equal(t, "news.ycombinator.com-hello-world.pdf", filepath.Base(path1))
}

func TestSavePdfSubjectRoundTrip(t *testing.T) {
	store := newTestStore(t)
	url := "https://example.com/a"

	path, err := store.SavePdf(minimalPDF(t), url, interfaces.SaveOptions{})
	require.NoError(t, err)

	subject, err := store.ExtractSubject(path)
	require.NoError(t, err)
	assert.Equal(t, url, subject)
}

func TestDeleteIfDifferent(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()

	oldPath := filepath.Join(dir, "a.pdf")
	newPath := filepath.Join(dir, "b.pdf")
	require.NoError(t, os.WriteFile(oldPath, []byte("old"), 0644))
	require.NoError(t, os.WriteFile(newPath, []byte("new"), 0644))

	// Identical paths: no-op
	require.NoError(t, store.DeleteIfDifferent(oldPath, oldPath))
	assert.FileExists(t, oldPath)

	// Different paths: old removed
	require.NoError(t, store.DeleteIfDifferent(oldPath, newPath))
	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, newPath)

	// Already-gone old file is fine
	require.NoError(t, store.DeleteIfDifferent(oldPath, newPath))

	// Empty old path is a no-op
	require.NoError(t, store.DeleteIfDifferent("", newPath))
}

func TestListWeeksNewestFirst(t *testing.T) {
	store := newTestStore(t)

	w1 := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	w2 := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, when := range []time.Time{w1, w2} {
		bookmarked := when
		_, err := store.SavePdf(minimalPDF(t), "https://example.com/"+when.Format("2006-01-02"), interfaces.SaveOptions{BookmarkedAt: &bookmarked})
		require.NoError(t, err)
	}

	weeks, err := store.ListWeeks()
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	assert.Equal(t, 2025, weeks[0].Year)
	assert.Equal(t, 2024, weeks[1].Year)
	assert.Equal(t, 1, weeks[0].FileCount)
}

func TestListFilesReportsSourceURL(t *testing.T) {
	store := newTestStore(t)
	when := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := store.SavePdf(minimalPDF(t), "https://example.com/a", interfaces.SaveOptions{BookmarkedAt: &when})
	require.NoError(t, err)

	files, err := store.ListFiles("2025-W03")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "https://example.com/a", files[0].SourceURL)
	assert.Equal(t, "pdf", files[0].Type)
	assert.Greater(t, files[0].Size, int64(0))
}

func TestListWeeksEmptyStore(t *testing.T) {
	store := newTestStore(t)
	weeks, err := store.ListWeeks()
	require.NoError(t, err)
	assert.Empty(t, weeks)
}
