package feeds

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/models"
)

// RSSSource polls an RSS feed of bookmarks. Items carrying a PDF enclosure
// are routed to the transcript bin.
type RSSSource struct {
	feedURL    string
	httpClient *http.Client
	parser     *gofeed.Parser
	logger     arbor.ILogger
}

// Compile-time assertion
var _ Source = (*RSSSource)(nil)

// NewRSSSource creates an RSS feed source
func NewRSSSource(feedURL string, httpClient *http.Client, logger arbor.ILogger) *RSSSource {
	return &RSSSource{
		feedURL:    feedURL,
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		logger:     logger,
	}
}

// Name returns the source identifier
func (s *RSSSource) Name() models.FeedSource {
	return models.SourceRSS
}

// Fetch performs a conditional GET and parses new items
func (s *RSSSource) Fetch(ctx context.Context, cache *models.FeedCache) ([]models.BookmarkItem, *models.FeedCache, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, cache, fmt.Errorf("failed to build feed request: %w", err)
	}
	if cache.ETag != "" {
		req.Header.Set("If-None-Match", cache.ETag)
	}
	if cache.LastModified != "" {
		req.Header.Set("If-Modified-Since", cache.LastModified)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, cache, fmt.Errorf("feed fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		s.logger.Debug().Str("source", string(s.Name())).Msg("Feed not modified")
		return nil, cache, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, cache, fmt.Errorf("feed fetch returned status %d", resp.StatusCode)
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, cache, fmt.Errorf("feed parse failed: %w", err)
	}

	newCache := &models.FeedCache{
		Source:       string(s.Name()),
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		PolledAt:     time.Now(),
	}

	items := make([]models.BookmarkItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.Link == "" {
			continue
		}
		item := models.BookmarkItem{
			OriginalURL:  entry.Link,
			CanonicalURL: Canonicalize(entry.Link),
			GUID:         entry.GUID,
			Source:       s.Name(),
			Title:        entry.Title,
		}
		if item.GUID == "" {
			item.GUID = item.CanonicalURL
		}
		if len(entry.Authors) > 0 {
			item.Creator = entry.Authors[0].Name
		}
		if entry.PublishedParsed != nil {
			bookmarked := *entry.PublishedParsed
			item.BookmarkedAt = &bookmarked
		}
		for _, enc := range entry.Enclosures {
			if enc.Type == "application/pdf" {
				length, _ := strconv.ParseInt(enc.Length, 10, 64)
				item.Enclosure = &models.Enclosure{
					URL:      enc.URL,
					MimeType: enc.Type,
					Length:   length,
				}
				item.MediaType = models.MediaTranscript
				break
			}
		}
		items = append(items, item)
	}

	return items, newCache, nil
}
