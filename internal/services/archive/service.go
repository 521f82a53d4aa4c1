package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/common"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
	"github.com/ternarybob/recondo/internal/services/browser"
	"github.com/ternarybob/recondo/internal/services/enricher"
	"github.com/ternarybob/recondo/internal/services/feeds"
)

// ErrVideoOnlyHost rejects conversion submissions for hosts that cannot be
// rendered to PDF
var ErrVideoOnlyHost = fmt.Errorf("video-only host: submit the media enclosure instead")

// ErrPathOutsideData rejects any file operation that escapes the data
// directory
var ErrPathOutsideData = fmt.Errorf("path resolves outside the data directory")

// SubmitRequest is a direct conversion submission from a collaborator
type SubmitRequest struct {
	URL          string     `json:"url"`
	OriginalURL  string     `json:"original_url,omitempty"`
	Title        string     `json:"title,omitempty"`
	Priority     int        `json:"priority,omitempty"`
	BookmarkedAt *time.Time `json:"bookmarked_at,omitempty"`
	OldFilePath  string     `json:"old_file_path,omitempty"`
}

// Service is the facade external collaborators consume: job submission and
// status, weekly bin browsing, reruns, deletions, and cookie upload.
type Service struct {
	queue       interfaces.QueueService
	bins        interfaces.BinStore
	failures    interfaces.FailureStorage
	dataDir     string
	cookiesFile string
	logger      arbor.ILogger
}

// NewService creates the archive facade
func NewService(queue interfaces.QueueService, bins interfaces.BinStore, failures interfaces.FailureStorage, dataDir, cookiesFile string, logger arbor.ILogger) *Service {
	return &Service{
		queue:       queue,
		bins:        bins,
		failures:    failures,
		dataDir:     dataDir,
		cookiesFile: cookiesFile,
		logger:      logger,
	}
}

// SubmitConversion enqueues a conversion (or podcast) job for the URL.
// Video-only hosts are rejected with a typed error; podcast URLs route to the
// podcast queue.
func (s *Service) SubmitConversion(ctx context.Context, req SubmitRequest) (string, error) {
	if req.URL == "" {
		return "", fmt.Errorf("url is required")
	}
	if enricher.IsVideoOnlyHost(req.URL) {
		return "", ErrVideoOnlyHost
	}

	originalURL := req.OriginalURL
	if originalURL == "" {
		originalURL = req.URL
	}

	if enricher.IsPodcastURL(req.URL) {
		job := models.PodcastJob{
			URL:          req.URL,
			BookmarkedAt: req.BookmarkedAt,
			OldFilePath:  req.OldFilePath,
		}
		data, err := json.Marshal(job)
		if err != nil {
			return "", fmt.Errorf("failed to marshal podcast job: %w", err)
		}
		return s.queue.Add(ctx, enricher.PodcastQueueName, data, &interfaces.AddOptions{
			JobID:    "podcast-" + common.DeterministicID(req.URL),
			Priority: req.Priority,
		})
	}

	job := models.ConversionJob{
		URL:          req.URL,
		OriginalURL:  originalURL,
		Title:        req.Title,
		BookmarkedAt: req.BookmarkedAt,
		OldFilePath:  req.OldFilePath,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal conversion job: %w", err)
	}
	return s.queue.Add(ctx, enricher.ConversionQueueName, data, &interfaces.AddOptions{
		JobID:    common.DeterministicID(feeds.Canonicalize(originalURL)),
		Priority: req.Priority,
	})
}

// GetStatus returns the state of a submitted job
func (s *Service) GetStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	return s.queue.GetJob(ctx, jobID)
}

// ListWeeks enumerates the weekly bins, newest first
func (s *Service) ListWeeks() ([]interfaces.WeekInfo, error) {
	return s.bins.ListWeeks()
}

// ListFiles enumerates the artifacts of one week
func (s *Service) ListFiles(weekID string) ([]interfaces.FileInfo, error) {
	return s.bins.ListFiles(weekID)
}

// ListFailures returns the persisted terminal failures
func (s *Service) ListFailures(ctx context.Context) ([]*models.FailureRecord, error) {
	return s.failures.ListFailures(ctx)
}

// DeleteFailures removes failure records by job id
func (s *Service) DeleteFailures(ctx context.Context, jobIDs []string) (int, error) {
	return s.failures.DeleteFailures(ctx, jobIDs)
}

// DeleteFiles removes artifacts by data-dir-relative path. Any path that
// resolves outside the data directory aborts the whole request before
// anything is unlinked.
func (s *Service) DeleteFiles(relPaths []string) (int, error) {
	absPaths := make([]string, 0, len(relPaths))
	for _, relPath := range relPaths {
		abs, err := s.resolveWithinData(relPath)
		if err != nil {
			return 0, err
		}
		absPaths = append(absPaths, abs)
	}

	deleted := 0
	for _, abs := range absPaths {
		if err := os.Remove(abs); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return deleted, fmt.Errorf("failed to delete %s: %w", abs, err)
		}
		deleted++
	}

	s.logger.Info().Int("deleted", deleted).Msg("Artifacts deleted")
	return deleted, nil
}

// resolveWithinData resolves a relative path and enforces the data-dir jail
func (s *Service) resolveWithinData(relPath string) (string, error) {
	dataAbs, err := filepath.Abs(s.dataDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filepath.Join(dataAbs, relPath))
	if err != nil {
		return "", err
	}
	if abs != dataAbs && !strings.HasPrefix(abs, dataAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideData, relPath)
	}
	return abs, nil
}

// UploadCookies validates and writes new cookies.txt content. The browser's
// cookie store notices the mtime change on its next capture.
func (s *Service) UploadCookies(content string) error {
	if !browser.ValidateCookieContent(content) {
		return fmt.Errorf("cookie content must contain at least one tab-separated entry with 7 fields")
	}

	if err := os.MkdirAll(filepath.Dir(s.cookiesFile), 0755); err != nil {
		return fmt.Errorf("failed to create cookies directory: %w", err)
	}

	// Write-then-rename keeps a concurrent reload from seeing a partial file
	tempPath := s.cookiesFile + ".tmp"
	if err := os.WriteFile(tempPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write cookies: %w", err)
	}
	if err := os.Rename(tempPath, s.cookiesFile); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to install cookies: %w", err)
	}

	s.logger.Info().Str("path", s.cookiesFile).Msg("Cookies updated")
	return nil
}
