package enricher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

const fetchTimeout = 15 * time.Second

// PageMetadata is what the extractor recovers from a web page
type PageMetadata struct {
	// Minimal marks a degraded result from a failed fetch; only the
	// hostname title is populated and feed-provided fields keep precedence
	Minimal     bool
	Title       string
	Author      string
	Description string
	Image       string
	Publisher   string
	PublishedAt *time.Time
}

// Extractor fetches pages and pulls metadata from Open Graph, Twitter Card,
// and JSON-LD sources.
type Extractor struct {
	httpClient *http.Client
	userAgent  string
	logger     arbor.ILogger
}

// NewExtractor creates a metadata extractor
func NewExtractor(httpClient *http.Client, userAgent string, logger arbor.ILogger) *Extractor {
	return &Extractor{
		httpClient: httpClient,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Extract fetches the URL and parses metadata. Failures degrade to a minimal
// result carrying the hostname as title; enrichment is never load-bearing.
func (e *Extractor) Extract(ctx context.Context, rawURL string) *PageMetadata {
	minimal := &PageMetadata{Minimal: true, Title: hostnameOf(rawURL)}

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return minimal
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Debug().Err(err).Str("url", rawURL).Msg("Metadata fetch failed")
		return minimal
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Debug().Int("status", resp.StatusCode).Str("url", rawURL).Msg("Metadata fetch rejected")
		return minimal
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return minimal
	}

	meta := e.parse(doc)
	if meta.Title == "" {
		meta.Title = minimal.Title
	}
	return meta
}

func (e *Extractor) parse(doc *goquery.Document) *PageMetadata {
	meta := &PageMetadata{}

	metaContent := func(selector string) string {
		content, _ := doc.Find(selector).First().Attr("content")
		return strings.TrimSpace(content)
	}

	// Open Graph first, Twitter Card as fallback
	meta.Title = firstNonEmpty(
		metaContent(`meta[property="og:title"]`),
		metaContent(`meta[name="twitter:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	meta.Description = firstNonEmpty(
		metaContent(`meta[property="og:description"]`),
		metaContent(`meta[name="twitter:description"]`),
		metaContent(`meta[name="description"]`),
	)
	meta.Image = firstNonEmpty(
		metaContent(`meta[property="og:image"]`),
		metaContent(`meta[name="twitter:image"]`),
	)
	meta.Publisher = firstNonEmpty(
		metaContent(`meta[property="og:site_name"]`),
	)
	meta.Author = firstNonEmpty(
		metaContent(`meta[name="author"]`),
		metaContent(`meta[property="article:author"]`),
	)

	if published := metaContent(`meta[property="article:published_time"]`); published != "" {
		if ts, err := time.Parse(time.RFC3339, published); err == nil {
			meta.PublishedAt = &ts
		}
	}

	// JSON-LD fills any remaining gaps
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var ld struct {
			Headline      string `json:"headline"`
			DatePublished string `json:"datePublished"`
			Author        json.RawMessage `json:"author"`
			Publisher     struct {
				Name string `json:"name"`
			} `json:"publisher"`
		}
		if err := json.Unmarshal([]byte(sel.Text()), &ld); err != nil {
			return true
		}
		if meta.Title == "" {
			meta.Title = ld.Headline
		}
		if meta.Publisher == "" {
			meta.Publisher = ld.Publisher.Name
		}
		if meta.Author == "" {
			meta.Author = ldAuthorName(ld.Author)
		}
		if meta.PublishedAt == nil && ld.DatePublished != "" {
			if ts, err := time.Parse(time.RFC3339, ld.DatePublished); err == nil {
				meta.PublishedAt = &ts
			}
		}
		return false
	})

	return meta
}

// ldAuthorName handles the author field's three common JSON-LD shapes:
// a string, an object with name, or an array of either.
func ldAuthorName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var name string
	if json.Unmarshal(raw, &name) == nil {
		return name
	}
	var obj struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Name != "" {
		return obj.Name
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return ldAuthorName(list[0])
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(u.Host, "www.")
}
