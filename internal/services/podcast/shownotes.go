package podcast

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/models"
)

// showNotesParser resolves an episode's show notes from the podcast's RSS feed
type showNotesParser struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	logger     arbor.ILogger
}

func newShowNotesParser(httpClient *http.Client, logger arbor.ILogger) *showNotesParser {
	return &showNotesParser{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		logger:     logger,
	}
}

// FetchShowNotes parses the podcast feed and matches the episode by GUID or
// title. Missing show notes are not an error; the transcript stands alone.
func (p *showNotesParser) FetchShowNotes(ctx context.Context, meta *models.PodcastMetadata) *models.ShowNotes {
	if meta.FeedURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.FeedURL, nil)
	if err != nil {
		return nil
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn().Err(err).Str("feed", meta.FeedURL).Msg("Podcast feed fetch failed")
		return nil
	}
	defer resp.Body.Close()

	feed, err := p.parser.Parse(resp.Body)
	if err != nil {
		p.logger.Warn().Err(err).Str("feed", meta.FeedURL).Msg("Podcast feed parse failed")
		return nil
	}

	entry := matchEpisode(feed, meta)
	if entry == nil {
		p.logger.Debug().
			Str("episode", meta.EpisodeTitle).
			Msg("Episode not found in podcast feed")
		return nil
	}

	description := entry.Description
	if description == "" && entry.Content != "" {
		description = entry.Content
	}
	return ParseShowNotes(description)
}

// matchEpisode finds the feed item for the episode, by GUID first, then by
// trimmed case-insensitive title.
func matchEpisode(feed *gofeed.Feed, meta *models.PodcastMetadata) *gofeed.Item {
	wantTitle := strings.ToLower(strings.TrimSpace(meta.EpisodeTitle))
	for _, item := range feed.Items {
		if meta.EpisodeGUID != "" && item.GUID == meta.EpisodeGUID {
			return item
		}
	}
	for _, item := range feed.Items {
		if strings.ToLower(strings.TrimSpace(item.Title)) == wantTitle {
			return item
		}
	}
	return nil
}

// ParseShowNotes splits an episode description into a summary, its links, and
// a trailing footer. The description is HTML in nearly every feed.
func ParseShowNotes(description string) *models.ShowNotes {
	if strings.TrimSpace(description) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return &models.ShowNotes{Summary: strings.TrimSpace(description)}
	}

	notes := &models.ShowNotes{}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
			return
		}
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			text = href
		}
		notes.Links = append(notes.Links, models.ShowNoteLink{
			Text:   text,
			URL:    href,
			Source: sourceOfLink(href),
		})
	})

	// Summary: the first three non-empty lines of the text content
	text := strings.TrimSpace(doc.Text())
	paragraphs := strings.Split(text, "\n")
	var summary []string
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		summary = append(summary, para)
		if len(summary) >= 3 {
			break
		}
	}
	notes.Summary = strings.Join(summary, " ")

	if len(paragraphs) > 3 {
		footer := strings.TrimSpace(paragraphs[len(paragraphs)-1])
		if footer != "" && footer != notes.Summary {
			notes.Footer = footer
		}
	}

	if notes.Summary == "" && len(notes.Links) == 0 {
		return nil
	}
	return notes
}

// sourceOfLink labels links from recognizable platforms
func sourceOfLink(href string) string {
	switch {
	case strings.Contains(href, "youtube.com"), strings.Contains(href, "youtu.be"):
		return "youtube"
	case strings.Contains(href, "twitter.com"), strings.Contains(href, "x.com"):
		return "twitter"
	case strings.Contains(href, "amazon."):
		return "amazon"
	default:
		return ""
	}
}

// brandNames extracts capitalized names from show-notes links for use as
// spelling hints during transcript reformatting
func brandNames(notes *models.ShowNotes) []string {
	if notes == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, link := range notes.Links {
		for _, word := range strings.Fields(link.Text) {
			trimmed := strings.Trim(word, ".,:;!?\"'()")
			if len(trimmed) < 3 || !isCapitalized(trimmed) || seen[trimmed] {
				continue
			}
			seen[trimmed] = true
			names = append(names, trimmed)
		}
	}
	return names
}

func isCapitalized(word string) bool {
	return word[0] >= 'A' && word[0] <= 'Z'
}
