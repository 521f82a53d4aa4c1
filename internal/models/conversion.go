package models

import "time"

// ConversionJob is one URL-to-PDF work unit. OldFilePath is present on reruns
// and is only deleted after a successful save that resolved to a different path.
type ConversionJob struct {
	URL          string     `json:"url"` // as received; may carry www.
	OriginalURL  string     `json:"original_url"`
	Title        string     `json:"title,omitempty"`
	BookmarkedAt *time.Time `json:"bookmarked_at,omitempty"`
	OldFilePath  string     `json:"old_file_path,omitempty"`
}

// ConversionResult is returned by the conversion worker on success
type ConversionResult struct {
	PDFPath          string    `json:"pdf_path"`
	PDFSize          int64     `json:"pdf_size"`
	CompletedAt      time.Time `json:"completed_at"`
	URL              string    `json:"url"`
	QualityScore     int       `json:"quality_score,omitempty"`
	QualityReasoning string    `json:"quality_reasoning,omitempty"`
}

// MediaJob is a media collection work unit: a bookmark with a required enclosure
type MediaJob struct {
	Item BookmarkItem `json:"item"`
}

// Capture is the raw output of one browser capture
type Capture struct {
	PDF           []byte
	Screenshot    []byte
	Title         string
	Rewritten     bool
	DirectArticle bool
}
