package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
	"golang.org/x/time/rate"
)

// Concurrency allows two parallel downloads; they are network-bound
const Concurrency = 2

// downloadTimeout bounds one download end to end
const downloadTimeout = 5 * time.Minute

// Worker streams media enclosures into the weekly bin. Downloads are
// idempotent: an existing non-empty destination short-circuits.
type Worker struct {
	bins       interfaces.BinStore
	events     interfaces.EventService
	httpClient *http.Client
	userAgent  string
	assetHost  string
	assetToken string
	logger     arbor.ILogger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewWorker creates the media collection worker. assetHost and assetToken
// authorize downloads from the bookmark service's asset API; the token is the
// feed URL's token query parameter.
func NewWorker(bins interfaces.BinStore, events interfaces.EventService, httpClient *http.Client, userAgent, feedURL string, logger arbor.ILogger) *Worker {
	assetHost, assetToken := assetAuthFromFeedURL(feedURL)
	return &Worker{
		bins:       bins,
		events:     events,
		httpClient: httpClient,
		userAgent:  userAgent,
		assetHost:  assetHost,
		assetToken: assetToken,
		logger:     logger,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// assetAuthFromFeedURL derives the asset host and bearer token from the
// configured feed URL
func assetAuthFromFeedURL(feedURL string) (string, string) {
	if feedURL == "" {
		return "", ""
	}
	u, err := url.Parse(feedURL)
	if err != nil {
		return "", ""
	}
	return strings.ToLower(u.Host), u.Query().Get("token")
}

// Handle is the media queue handler
func (w *Worker) Handle(ctx context.Context, job interfaces.Job) ([]byte, error) {
	var mediaJob models.MediaJob
	if err := json.Unmarshal(job.Data(), &mediaJob); err != nil {
		return nil, fmt.Errorf("invalid media payload: %w", err)
	}
	item := mediaJob.Item
	if item.Enclosure == nil {
		return nil, fmt.Errorf("media job without enclosure for %s", item.CanonicalURL)
	}

	destPath, err := w.destinationPath(&item)
	if err != nil {
		return nil, err
	}

	// Idempotency: a non-empty destination is a completed download; an empty
	// one is debris from a failed attempt.
	if info, err := os.Stat(destPath); err == nil {
		if info.Size() > 0 {
			w.logger.Debug().Str("path", destPath).Msg("Media already collected")
			return []byte(destPath), nil
		}
		os.Remove(destPath)
	}

	job.Progress(ctx, 10)

	if err := w.download(ctx, &item, destPath); err != nil {
		return nil, err
	}
	job.Progress(ctx, 100)

	w.events.Publish(ctx, models.Event{
		Type:      models.EventMediaCollected,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"url":       item.Enclosure.URL,
			"path":      destPath,
			"mediaType": string(item.MediaType),
		},
	})

	return []byte(destPath), nil
}

// destinationPath derives the bin location and filename for the item
func (w *Worker) destinationPath(item *models.BookmarkItem) (string, error) {
	mediaType := item.MediaType
	if mediaType == "" {
		mediaType = models.MediaVideo
	}

	when := time.Now()
	if item.BookmarkedAt != nil {
		when = *item.BookmarkedAt
	}
	dir := w.bins.BinPath(when, mediaType)

	name := item.Title
	if name == "" {
		if u, err := url.Parse(item.Enclosure.URL); err == nil {
			name = strings.TrimPrefix(u.Host, "www.")
		} else {
			name = "media"
		}
	}

	return filepath.Join(dir, sanitizeName(name)+extensionFor(item.Enclosure)), nil
}

// download streams the enclosure to a temp file and renames it into place
func (w *Worker) download(ctx context.Context, item *models.BookmarkItem, destPath string) error {
	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	if err := w.waitForHost(dlCtx, item.Enclosure.URL); err != nil {
		return classifyDownloadError(err)
	}

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, item.Enclosure.URL, nil)
	if err != nil {
		return models.NewFailure(models.FailureDownloadFailed, "invalid enclosure url: %v", err)
	}
	req.Header.Set("User-Agent", w.userAgent)
	if w.isAssetURL(item.Enclosure.URL) && w.assetToken != "" {
		req.Header.Set("Authorization", "Bearer "+w.assetToken)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return classifyDownloadError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && item.MediaType == models.MediaTranscript {
		// Transcript enclosures are generated asynchronously upstream; 404
		// means "not yet", and the retry budget absorbs the wait
		return models.NewFailure(models.FailureFileMissing, "transcript not yet available at %s", item.Enclosure.URL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.NewFailure(models.FailureDownloadFailed, "download of %s returned status %d", item.Enclosure.URL, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tempPath := destPath + ".part"
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	written, copyErr := io.Copy(tempFile, resp.Body)
	closeErr := tempFile.Close()
	if copyErr != nil {
		os.Remove(tempPath)
		return classifyDownloadError(copyErr)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to finalize temp file: %w", closeErr)
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		// Some servers report wrong lengths; note it and keep the file
		w.logger.Warn().
			Int64("expected", resp.ContentLength).
			Int64("written", written).
			Str("url", item.Enclosure.URL).
			Msg("Download size mismatch")
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move download into place: %w", err)
	}

	w.logger.Info().
		Str("path", destPath).
		Int64("bytes", written).
		Msg("Media collected")
	return nil
}

// waitForHost applies per-host rate limiting before opening a connection
func (w *Worker) waitForHost(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := strings.ToLower(u.Host)

	w.mu.Lock()
	limiter, ok := w.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(2*time.Second), 1)
		w.limiters[host] = limiter
	}
	w.mu.Unlock()

	return limiter.Wait(ctx)
}

func (w *Worker) isAssetURL(rawURL string) bool {
	if w.assetHost == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.ToLower(u.Host) == w.assetHost && strings.Contains(u.Path, "/api/assets/")
}

func classifyDownloadError(err error) error {
	if err == context.DeadlineExceeded || err == context.Canceled ||
		strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "context canceled") {
		return models.NewFailure(models.FailureTimeout, "download timed out: %v", err)
	}
	return models.NewFailure(models.FailureDownloadFailed, "download failed: %v", err)
}

// extensionFor infers the artifact extension from MIME type, then URL path
func extensionFor(enclosure *models.Enclosure) string {
	switch {
	case strings.Contains(enclosure.MimeType, "video/mp4"):
		return ".mp4"
	case strings.Contains(enclosure.MimeType, "video/webm"):
		return ".webm"
	case strings.Contains(enclosure.MimeType, "application/pdf"):
		return ".pdf"
	}
	if u, err := url.Parse(enclosure.URL); err == nil {
		if ext := strings.ToLower(filepath.Ext(u.Path)); ext == ".mp4" || ext == ".webm" || ext == ".pdf" {
			return ext
		}
	}
	return ".bin"
}

var unsafeNameChars = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
	"\"", "-", "<", "-", ">", "-", "|", "-",
)

func sanitizeName(name string) string {
	name = unsafeNameChars.Replace(name)
	name = strings.Trim(name, "-. ")
	if len(name) > 100 {
		name = strings.Trim(name[:100], "-. ")
	}
	if name == "" {
		name = "media"
	}
	return name
}
