package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/models"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Bookmarks</title>
    <item>
      <title>An Article</title>
      <link>https://www.example.com/article?utm_source=feed</link>
      <guid>article-guid-1</guid>
      <pubDate>Mon, 06 Jan 2025 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>A Transcript</title>
      <link>https://example.com/episode</link>
      <guid>episode-guid-2</guid>
      <enclosure url="https://cdn.example.com/episode.pdf" type="application/pdf" length="12345"/>
    </item>
  </channel>
</rss>`

func TestRSSSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Mon, 06 Jan 2025 10:00:00 GMT")
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	source := NewRSSSource(server.URL, server.Client(), arbor.NewLogger())
	cache := &models.FeedCache{Source: string(models.SourceRSS)}

	items, newCache, err := source.Fetch(context.Background(), cache)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "https://www.example.com/article?utm_source=feed", items[0].OriginalURL)
	assert.Equal(t, "https://example.com/article", items[0].CanonicalURL)
	assert.Equal(t, "article-guid-1", items[0].GUID)
	require.NotNil(t, items[0].BookmarkedAt)

	require.NotNil(t, items[1].Enclosure)
	assert.Equal(t, models.MediaTranscript, items[1].MediaType)
	assert.Equal(t, "https://cdn.example.com/episode.pdf", items[1].Enclosure.URL)
	assert.Equal(t, int64(12345), items[1].Enclosure.Length)

	assert.Equal(t, `"v1"`, newCache.ETag)

	// Conditional poll returns no items and the cache unchanged
	items, sameCache, err := source.Fetch(context.Background(), newCache)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, newCache, sameCache)
}
