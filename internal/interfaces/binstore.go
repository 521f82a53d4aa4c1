package interfaces

import (
	"time"

	"github.com/ternarybob/recondo/internal/models"
)

// SaveOptions carry metadata for a weekly bin save
type SaveOptions struct {
	Title         string
	BookmarkedAt  *time.Time
	DirectArticle bool
}

// WeekInfo describes one weekly bin directory
type WeekInfo struct {
	Year      int    `json:"year"`
	Week      int    `json:"week"`
	Path      string `json:"path"`
	FileCount int    `json:"file_count"`
}

// FileInfo describes one archived artifact
type FileInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	Modified     time.Time `json:"modified"`
	Type         string    `json:"type"`
	SourceURL    string    `json:"source_url,omitempty"`
	RelatedFiles []string  `json:"related_files,omitempty"`
}

// BinStore owns the weekly bin filesystem layout. Saves are idempotent:
// the same URL, title, and bookmark time resolve to the same path.
type BinStore interface {
	BinPath(date time.Time, mediaType models.MediaType) string
	SavePdf(pdf []byte, originalURL string, opts SaveOptions) (string, error)
	DeleteIfDifferent(oldPath, newPath string) error
	ExtractSubject(path string) (string, error)
	ListWeeks() ([]WeekInfo, error)
	ListFiles(weekID string) ([]FileInfo, error)
}
