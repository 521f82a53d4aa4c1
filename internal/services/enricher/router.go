package enricher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/common"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

// Queue names fed by the router
const (
	ConversionQueueName = "conversion"
	MediaQueueName      = "media"
	PodcastQueueName    = "podcast"
)

// assetURLMarker identifies API asset URLs that are not web pages
const assetURLMarker = "/api/assets/"

// videoOnlyHosts are platforms whose pages cannot be usefully rendered to
// PDF; their content arrives only through media enclosures.
var videoOnlyHosts = map[string]bool{
	"youtube.com":  true,
	"youtu.be":     true,
	"vimeo.com":    true,
	"twitch.tv":    true,
	"tiktok.com":   true,
}

// podcastHosts route to the transcription pipeline
var podcastHosts = map[string]bool{
	"podcasts.apple.com": true,
}

var nonAlnumRun = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Router enriches queued bookmarks and fans them out to the pipeline that
// owns their media type.
type Router struct {
	extractor *Extractor
	queue     interfaces.QueueService
	logger    arbor.ILogger
}

// NewRouter creates the metadata worker
func NewRouter(extractor *Extractor, queue interfaces.QueueService, logger arbor.ILogger) *Router {
	return &Router{
		extractor: extractor,
		queue:     queue,
		logger:    logger,
	}
}

// Handle is the metadata queue handler
func (r *Router) Handle(ctx context.Context, job interfaces.Job) ([]byte, error) {
	var item models.BookmarkItem
	if err := json.Unmarshal(job.Data(), &item); err != nil {
		return nil, fmt.Errorf("invalid bookmark payload: %w", err)
	}

	r.enrich(ctx, &item)

	if err := r.route(ctx, &item); err != nil {
		return nil, err
	}
	return nil, nil
}

// enrich merges web-extracted metadata over the feed-provided fields. Asset
// URLs are not web pages and skip the fetch entirely.
func (r *Router) enrich(ctx context.Context, item *models.BookmarkItem) {
	if !strings.Contains(item.OriginalURL, assetURLMarker) {
		meta := r.extractor.Extract(ctx, item.OriginalURL)
		if meta.Title != "" && (!meta.Minimal || item.Title == "") {
			item.Title = meta.Title
		}
		if meta.Author != "" {
			item.Author = meta.Author
		}
		if meta.Description != "" {
			item.Description = meta.Description
		}
		if meta.Image != "" {
			item.Image = meta.Image
		}
		if meta.Publisher != "" {
			item.Publisher = meta.Publisher
		}
		if meta.PublishedAt != nil {
			item.PublishedAt = meta.PublishedAt
		}
	}

	if item.Title == "" {
		item.Title = "Untitled"
	}
	if item.BookmarkedAt == nil {
		now := time.Now()
		item.BookmarkedAt = &now
	}
}

// route picks the downstream queue for the enriched item
func (r *Router) route(ctx context.Context, item *models.BookmarkItem) error {
	host := hostOf(item.OriginalURL)

	if item.Enclosure != nil {
		data, err := json.Marshal(models.MediaJob{Item: *item})
		if err != nil {
			return fmt.Errorf("failed to marshal media job: %w", err)
		}
		jobID := "media-" + sanitizeJobID(item.CanonicalURL)
		if _, err := r.queue.Add(ctx, MediaQueueName, data, &interfaces.AddOptions{JobID: jobID}); err != nil {
			return fmt.Errorf("failed to enqueue media job: %w", err)
		}
		r.logger.Debug().
			Str("url", item.CanonicalURL).
			Str("media_type", string(item.MediaType)).
			Msg("Routed to media collection")

		// Pre-rendered PDFs are fully handled by the media download
		if item.MediaType == models.MediaPDF {
			return nil
		}
	}

	if podcastHosts[host] {
		job := models.PodcastJob{URL: item.OriginalURL, BookmarkedAt: item.BookmarkedAt}
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal podcast job: %w", err)
		}
		if _, err := r.queue.Add(ctx, PodcastQueueName, data, &interfaces.AddOptions{
			JobID: "podcast-" + common.DeterministicID(item.CanonicalURL),
		}); err != nil {
			return fmt.Errorf("failed to enqueue podcast job: %w", err)
		}
		r.logger.Debug().Str("url", item.OriginalURL).Msg("Routed to podcast transcription")
		return nil
	}

	if videoOnlyHosts[host] {
		// Without an enclosure there is nothing to collect from a video host
		r.logger.Debug().Str("url", item.OriginalURL).Msg("Video-only host without enclosure, dropping")
		return nil
	}

	job := models.ConversionJob{
		URL:          item.OriginalURL,
		OriginalURL:  item.OriginalURL,
		Title:        item.Title,
		BookmarkedAt: item.BookmarkedAt,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal conversion job: %w", err)
	}
	if _, err := r.queue.Add(ctx, ConversionQueueName, data, &interfaces.AddOptions{
		JobID: common.DeterministicID(item.CanonicalURL),
	}); err != nil {
		return fmt.Errorf("failed to enqueue conversion job: %w", err)
	}
	r.logger.Debug().Str("url", item.OriginalURL).Msg("Routed to conversion")
	return nil
}

// IsVideoOnlyHost reports whether direct submissions for the URL should be
// rejected
func IsVideoOnlyHost(rawURL string) bool {
	return videoOnlyHosts[hostOf(rawURL)]
}

// IsPodcastURL reports whether the URL belongs to the podcast pipeline
func IsPodcastURL(rawURL string) bool {
	return podcastHosts[hostOf(rawURL)]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// sanitizeJobID flattens a canonical URL into a queue-safe dedup key
func sanitizeJobID(canonicalURL string) string {
	s := strings.ToLower(canonicalURL)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = nonAlnumRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
