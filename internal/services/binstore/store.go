package binstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

// Store owns the weekly bin filesystem layout under DATA_DIR/media
type Store struct {
	dataDir string
	logger  arbor.ILogger
}

// Compile-time assertion
var _ interfaces.BinStore = (*Store)(nil)

// NewStore creates a weekly bin store rooted at dataDir
func NewStore(dataDir string, logger arbor.ILogger) *Store {
	return &Store{
		dataDir: dataDir,
		logger:  logger,
	}
}

// MediaRoot returns the directory holding all weekly bins
func (s *Store) MediaRoot() string {
	return filepath.Join(s.dataDir, "media")
}

// BinPath maps a date and media type to its weekly bin directory. The mapping
// is a pure function of (ISO week of date, media type).
func (s *Store) BinPath(date time.Time, mediaType models.MediaType) string {
	week := WeekOf(date)
	return filepath.Join(s.MediaRoot(), week.String(), mediaType.Plural())
}

// SavePdf embeds metadata and writes the PDF into its weekly bin, returning
// the absolute path. Saving the same URL, title, and bookmark time twice
// resolves to the same path.
func (s *Store) SavePdf(pdf []byte, originalURL string, opts interfaces.SaveOptions) (string, error) {
	stamped, err := embedMetadata(pdf, originalURL, time.Now())
	if err != nil {
		// A malformed PDF still gets archived; the Subject is best-effort
		s.logger.Warn().Err(err).Str("url", originalURL).Msg("Failed to embed pdf metadata, saving as-is")
		stamped = pdf
	}

	when := time.Now()
	if opts.BookmarkedAt != nil {
		when = *opts.BookmarkedAt
	}

	dir := s.BinPath(when, models.MediaPDF)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create bin directory: %w", err)
	}

	base := baseNameFromURL(originalURL, opts.Title, opts.DirectArticle)
	path := filepath.Join(dir, base+".pdf")

	if err := os.WriteFile(path, stamped, 0644); err != nil {
		return "", fmt.Errorf("failed to write pdf: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}

	s.logger.Info().
		Str("path", abs).
		Int("size", len(stamped)).
		Msg("PDF archived")
	return abs, nil
}

// SaveBytes writes an arbitrary artifact into the weekly bin for its media
// type. Used by the podcast and media pipelines.
func (s *Store) SaveBytes(data []byte, baseName string, ext string, when time.Time, mediaType models.MediaType) (string, error) {
	dir := s.BinPath(when, mediaType)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create bin directory: %w", err)
	}
	path := filepath.Join(dir, sanitizeFilename(baseName)+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return filepath.Abs(path)
}

// DeleteIfDifferent removes oldPath unless it resolves to newPath. Reruns
// call this after a successful save so a renamed artifact leaves no stale
// copy behind; a missing old file is not an error.
func (s *Store) DeleteIfDifferent(oldPath, newPath string) error {
	if oldPath == "" {
		return nil
	}
	oldAbs, err := filepath.Abs(oldPath)
	if err != nil {
		return err
	}
	newAbs, err := filepath.Abs(newPath)
	if err != nil {
		return err
	}
	if oldAbs == newAbs {
		return nil
	}

	if err := os.Remove(oldAbs); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		// Permission problems should not fail the conversion that already saved
		s.logger.Warn().Err(err).Str("path", oldAbs).Msg("Failed to delete superseded file")
		return nil
	}

	s.logger.Debug().Str("path", oldAbs).Msg("Superseded file deleted")
	return nil
}

// ExtractSubject recovers the source URL embedded in an archived PDF
func (s *Store) ExtractSubject(path string) (string, error) {
	return extractSubject(path)
}

// ListWeeks enumerates weekly bins, newest first
func (s *Store) ListWeeks() ([]interfaces.WeekInfo, error) {
	entries, err := os.ReadDir(s.MediaRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read media directory: %w", err)
	}

	var weeks []interfaces.WeekInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		week, err := ParseWeekID(entry.Name())
		if err != nil {
			continue
		}
		weekPath := filepath.Join(s.MediaRoot(), entry.Name())
		weeks = append(weeks, interfaces.WeekInfo{
			Year:      week.Year,
			Week:      week.Week,
			Path:      weekPath,
			FileCount: countFiles(weekPath),
		})
	}

	sort.Slice(weeks, func(i, j int) bool {
		if weeks[i].Year != weeks[j].Year {
			return weeks[i].Year > weeks[j].Year
		}
		return weeks[i].Week > weeks[j].Week
	})
	return weeks, nil
}

// ListFiles enumerates artifacts in one weekly bin. Archived PDFs report
// their embedded source URL; podcast artifacts sharing a basename are listed
// as related files.
func (s *Store) ListFiles(weekID string) ([]interfaces.FileInfo, error) {
	week, err := ParseWeekID(weekID)
	if err != nil {
		return nil, err
	}
	weekDir := filepath.Join(s.MediaRoot(), week.String())

	var files []interfaces.FileInfo
	typeDirs, err := os.ReadDir(weekDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read week directory: %w", err)
	}

	for _, typeDir := range typeDirs {
		if !typeDir.IsDir() {
			continue
		}
		dirPath := filepath.Join(weekDir, typeDir.Name())
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}

		// Basename -> sibling files, for podcast pdf/audio pairing
		siblings := make(map[string][]string)
		for _, entry := range entries {
			base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			siblings[base] = append(siblings[base], entry.Name())
		}

		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			path := filepath.Join(dirPath, entry.Name())
			file := interfaces.FileInfo{
				Name:     entry.Name(),
				Path:     path,
				Size:     info.Size(),
				Modified: info.ModTime(),
				Type:     strings.TrimSuffix(typeDir.Name(), "s"),
			}
			if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
				if subject, err := extractSubject(path); err == nil {
					file.SourceURL = subject
				}
			}
			base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			for _, sibling := range siblings[base] {
				if sibling != entry.Name() {
					file.RelatedFiles = append(file.RelatedFiles, sibling)
				}
			}
			files = append(files, file)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func countFiles(root string) int {
	count := 0
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}
