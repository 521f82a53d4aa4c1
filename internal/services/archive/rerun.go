package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// RerunResult reports what a rerun submitted
type RerunResult struct {
	Submitted int      `json:"submitted"`
	Jobs      []string `json:"jobs"`
}

// RerunSelection names the inputs of a selective rerun: archived files (by
// data-dir-relative path) and/or raw URLs.
type RerunSelection struct {
	Files []string `json:"files,omitempty"`
	URLs  []string `json:"urls,omitempty"`
}

// RerunWeek resubmits every archived PDF of a week. The source URL comes out
// of each file's embedded Subject; files without one are skipped with a
// warning.
func (s *Service) RerunWeek(ctx context.Context, weekID string) (*RerunResult, error) {
	files, err := s.bins.ListFiles(weekID)
	if err != nil {
		return nil, err
	}

	result := &RerunResult{}
	for _, file := range files {
		if !strings.EqualFold(filepath.Ext(file.Name), ".pdf") {
			continue
		}
		if file.SourceURL == "" {
			s.logger.Warn().Str("file", file.Name).Msg("No embedded source URL, skipping rerun")
			continue
		}
		jobID, err := s.SubmitConversion(ctx, SubmitRequest{
			URL:         file.SourceURL,
			OriginalURL: file.SourceURL,
			OldFilePath: file.Path,
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("url", file.SourceURL).Msg("Rerun submission failed")
			continue
		}
		result.Submitted++
		result.Jobs = append(result.Jobs, jobID)
	}

	s.logger.Info().
		Str("week", weekID).
		Int("submitted", result.Submitted).
		Msg("Week rerun submitted")
	return result, nil
}

// RerunSelected resubmits specific files and/or URLs. File paths pass through
// the data-dir jail and their Subject is extracted for the source URL.
func (s *Service) RerunSelected(ctx context.Context, selection RerunSelection) (*RerunResult, error) {
	result := &RerunResult{}

	for _, relPath := range selection.Files {
		abs, err := s.resolveWithinData(relPath)
		if err != nil {
			return nil, err
		}
		sourceURL, err := s.bins.ExtractSubject(abs)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", relPath).Msg("Cannot recover source URL, skipping rerun")
			continue
		}
		jobID, err := s.SubmitConversion(ctx, SubmitRequest{
			URL:         sourceURL,
			OriginalURL: sourceURL,
			OldFilePath: abs,
		})
		if err != nil {
			return result, fmt.Errorf("failed to resubmit %s: %w", relPath, err)
		}
		result.Submitted++
		result.Jobs = append(result.Jobs, jobID)
	}

	for _, url := range selection.URLs {
		jobID, err := s.SubmitConversion(ctx, SubmitRequest{URL: url})
		if err != nil {
			return result, fmt.Errorf("failed to resubmit %s: %w", url, err)
		}
		result.Submitted++
		result.Jobs = append(result.Jobs, jobID)
	}

	return result, nil
}
