package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/models"
)

func linkstashPageJSON(ids []string, nextCursor string) []byte {
	page := map[string]interface{}{"nextCursor": nextCursor}
	items := []map[string]interface{}{}
	for _, id := range ids {
		items = append(items, map[string]interface{}{
			"id":        id,
			"createdAt": "2025-01-06T10:00:00Z",
			"content": map[string]interface{}{
				"type":  "link",
				"url":   "https://example.com/" + id,
				"title": "Item " + id,
			},
		})
	}
	page["items"] = items
	data, _ := json.Marshal(page)
	return data
}

func TestLinkstashPaginationStopsAtSeenGUID(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("token"), "token must not leak into page requests")

		switch r.URL.Query().Get("cursor") {
		case "":
			w.Write(linkstashPageJSON([]string{"n1", "n2"}, "c2"))
		case "c2":
			w.Write(linkstashPageJSON([]string{"n3", "old-1"}, "c3"))
		default:
			t.Fatalf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))
	defer server.Close()

	dedup := newMemDedup()
	require.NoError(t, dedup.MarkGUIDSeen(context.Background(), models.SourceLinkstash, "old-1"))

	source := NewLinkstashSource(server.URL+"?token=secret-token", server.Client(), dedup, arbor.NewLogger())
	items, _, err := source.Fetch(context.Background(), &models.FeedCache{})
	require.NoError(t, err)

	// Catchup stops at old-1; pages beyond it are never fetched
	assert.Equal(t, 2, requests)
	require.Len(t, items, 3)
	assert.Equal(t, "n1", items[0].GUID)
	assert.Equal(t, "https://example.com/n3", items[2].CanonicalURL)
}

func TestLinkstashAssetMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := map[string]interface{}{
			"items": []map[string]interface{}{
				{
					"id":        "pdf-1",
					"createdAt": "2025-01-06T10:00:00Z",
					"content":   map[string]interface{}{"type": "asset", "title": "A Paper"},
					"asset": map[string]interface{}{
						"id":        "a1",
						"assetType": "pdf",
						"url":       "https://stash.example.com/api/assets/a1",
					},
				},
				{
					"id":        "vid-1",
					"createdAt": "2025-01-06T10:00:00Z",
					"content":   map[string]interface{}{"type": "link", "url": "https://videos.example.com/v/1", "title": "A Video"},
					"asset": map[string]interface{}{
						"id":        "a2",
						"assetType": "video",
						"url":       "https://stash.example.com/api/assets/a2",
						"mimeType":  "video/mp4",
					},
				},
			},
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	source := NewLinkstashSource(fmt.Sprintf("%s?token=t", server.URL), server.Client(), newMemDedup(), arbor.NewLogger())
	items, _, err := source.Fetch(context.Background(), &models.FeedCache{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	pdf := items[0]
	assert.Equal(t, models.MediaPDF, pdf.MediaType)
	assert.Equal(t, "https://stash.example.com/api/assets/a1", pdf.CanonicalURL)
	require.NotNil(t, pdf.Enclosure)
	assert.Equal(t, "application/pdf", pdf.Enclosure.MimeType)

	video := items[1]
	assert.Equal(t, models.MediaVideo, video.MediaType)
	require.NotNil(t, video.Enclosure)
	assert.Equal(t, "https://stash.example.com/api/assets/a2", video.Enclosure.URL)
	assert.Equal(t, "https://videos.example.com/v/1", video.CanonicalURL)
}
