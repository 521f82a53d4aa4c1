package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/models"
)

const (
	linkstashPageSize = 50
	linkstashMaxPages = 20
)

// LinkstashSource polls a paginated JSON bookmark API. The bearer token
// travels as a "token" query parameter on the configured feed URL; pagination
// walks nextCursor until a page contains an already-seen guid (catchup
// complete) or the page cap is reached.
type LinkstashSource struct {
	feedURL    string
	httpClient *http.Client
	guids      GUIDChecker
	logger     arbor.ILogger
}

// Compile-time assertion
var _ Source = (*LinkstashSource)(nil)

// NewLinkstashSource creates a linkstash feed source
func NewLinkstashSource(feedURL string, httpClient *http.Client, guids GUIDChecker, logger arbor.ILogger) *LinkstashSource {
	return &LinkstashSource{
		feedURL:    feedURL,
		httpClient: httpClient,
		guids:      guids,
		logger:     logger,
	}
}

// Name returns the source identifier
func (s *LinkstashSource) Name() models.FeedSource {
	return models.SourceLinkstash
}

// linkstashItem is one API entry
type linkstashItem struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	Content   struct {
		Type   string `json:"type"` // "link" or "asset"
		URL    string `json:"url"`
		Title  string `json:"title"`
		Author string `json:"author"`
	} `json:"content"`
	Asset *struct {
		ID        string `json:"id"`
		AssetType string `json:"assetType"` // "pdf" or "video"
		URL       string `json:"url"`
		MimeType  string `json:"mimeType"`
	} `json:"asset,omitempty"`
}

type linkstashPage struct {
	Items      []linkstashItem `json:"items"`
	NextCursor string          `json:"nextCursor"`
}

// Token extracts the bearer token from the configured feed URL
func (s *LinkstashSource) Token() string {
	u, err := url.Parse(s.feedURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("token")
}

// Fetch walks the paginated API until catchup completes
func (s *LinkstashSource) Fetch(ctx context.Context, cache *models.FeedCache) ([]models.BookmarkItem, *models.FeedCache, error) {
	token := s.Token()
	base, err := url.Parse(s.feedURL)
	if err != nil {
		return nil, cache, fmt.Errorf("invalid feed URL: %w", err)
	}

	var items []models.BookmarkItem
	cursor := ""

	for page := 0; page < linkstashMaxPages; page++ {
		pageItems, nextCursor, err := s.fetchPage(ctx, base, token, cursor)
		if err != nil {
			return nil, cache, err
		}

		caughtUp := false
		for _, raw := range pageItems {
			seen, err := s.guids.IsGUIDSeen(ctx, s.Name(), raw.ID)
			if err != nil {
				return nil, cache, fmt.Errorf("guid lookup failed: %w", err)
			}
			if seen {
				caughtUp = true
				break
			}
			if item, ok := s.mapItem(raw); ok {
				items = append(items, item)
			}
		}

		if caughtUp || nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	newCache := &models.FeedCache{
		Source:   string(s.Name()),
		PolledAt: time.Now(),
	}
	return items, newCache, nil
}

func (s *LinkstashSource) fetchPage(ctx context.Context, base *url.URL, token, cursor string) ([]linkstashItem, string, error) {
	pageURL := *base
	query := pageURL.Query()
	query.Del("token")
	query.Set("limit", fmt.Sprintf("%d", linkstashPageSize))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	pageURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build page request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("page fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("page fetch returned status %d", resp.StatusCode)
	}

	var page linkstashPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, "", fmt.Errorf("page decode failed: %w", err)
	}
	return page.Items, page.NextCursor, nil
}

// mapItem converts an API entry to a bookmark. Link items become web
// bookmarks; pdf assets are pre-rendered PDFs fetched verbatim by the media
// pipeline; video assets become video downloads.
func (s *LinkstashSource) mapItem(raw linkstashItem) (models.BookmarkItem, bool) {
	item := models.BookmarkItem{
		GUID:   raw.ID,
		Source: s.Name(),
		Title:  raw.Content.Title,
	}
	if raw.Content.Author != "" {
		item.Creator = raw.Content.Author
	}
	if ts, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
		item.BookmarkedAt = &ts
	}

	switch {
	// A video asset wins over the page link: the platform page cannot be
	// rendered, only the enclosure can be collected
	case raw.Asset != nil && strings.EqualFold(raw.Asset.AssetType, "video"):
		item.OriginalURL = raw.Content.URL
		if item.OriginalURL == "" {
			item.OriginalURL = raw.Asset.URL
		}
		item.CanonicalURL = Canonicalize(item.OriginalURL)
		item.MediaType = models.MediaVideo
		mimeType := raw.Asset.MimeType
		if mimeType == "" {
			mimeType = "video/mp4"
		}
		item.Enclosure = &models.Enclosure{
			URL:      raw.Asset.URL,
			MimeType: mimeType,
		}
		return item, true

	case raw.Content.Type == "asset" && raw.Asset != nil && strings.EqualFold(raw.Asset.AssetType, "pdf"):
		item.OriginalURL = raw.Asset.URL
		item.CanonicalURL = raw.Asset.URL // asset URLs are their own identity
		item.MediaType = models.MediaPDF
		item.Enclosure = &models.Enclosure{
			URL:      raw.Asset.URL,
			MimeType: "application/pdf",
		}
		return item, true

	case raw.Content.Type == "link" && raw.Content.URL != "":
		item.OriginalURL = raw.Content.URL
		item.CanonicalURL = Canonicalize(raw.Content.URL)
		return item, true
	}

	s.logger.Debug().
		Str("guid", raw.ID).
		Str("content_type", raw.Content.Type).
		Msg("Skipping unsupported feed item")
	return item, false
}
