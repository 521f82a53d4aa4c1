package models

import "time"

// FeedSource identifies which feed produced a bookmark
type FeedSource string

const (
	SourceRSS       FeedSource = "rss"
	SourceLinkstash FeedSource = "linkstash"
	SourceManual    FeedSource = "manual"
)

// MediaType partitions artifacts into weekly bin subdirectories
type MediaType string

const (
	MediaVideo      MediaType = "video"
	MediaTranscript MediaType = "transcript"
	MediaPodcast    MediaType = "podcast"
	MediaPDF        MediaType = "pdf"
)

// Plural returns the weekly bin directory segment for the media type
func (m MediaType) Plural() string {
	return string(m) + "s"
}

// Enclosure is a downloadable attachment carried by a feed item
type Enclosure struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Length   int64  `json:"length,omitempty"`
}

// BookmarkItem is one feed entry. CanonicalURL is always the normalizer's
// output for OriginalURL; dedup uses the canonical form, external link
// generation uses the original.
type BookmarkItem struct {
	OriginalURL  string     `json:"original_url"`
	CanonicalURL string     `json:"canonical_url"`
	GUID         string     `json:"guid"`
	Source       FeedSource `json:"source"`
	Title        string     `json:"title,omitempty"`
	Creator      string     `json:"creator,omitempty"`
	BookmarkedAt *time.Time `json:"bookmarked_at,omitempty"`

	// Enrichment, filled by the metadata extractor
	Author      string     `json:"author,omitempty"`
	Description string     `json:"description,omitempty"`
	Image       string     `json:"image,omitempty"`
	Publisher   string     `json:"publisher,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	Enclosure *Enclosure `json:"enclosure,omitempty"`
	MediaType MediaType  `json:"media_type,omitempty"`
}

// FeedCache holds conditional polling state per source
type FeedCache struct {
	Source       string    `json:"source" badgerhold:"key"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	PolledAt     time.Time `json:"polled_at"`
}

// URLProvenance records where and when a canonical URL was first seen
type URLProvenance struct {
	Source      FeedSource `json:"source"`
	FirstSeenAt time.Time  `json:"first_seen_at"`
}
