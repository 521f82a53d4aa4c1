package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteSubstackTracking(t *testing.T) {
	rw := rewriter{}
	result := rw.apply("https://newsletter.substack.com/p/article?publication_id=1&post_id=2&utm_campaign=email&keep=1")
	assert.True(t, result.Rewritten)
	assert.Equal(t, "https://newsletter.substack.com/p/article?keep=1", result.URL)
	assert.False(t, result.IsSocial)
}

func TestRewriteChartEmbed(t *testing.T) {
	rw := rewriter{}
	result := rw.apply("https://www.datawrapper.de/abc123/some-chart")
	assert.True(t, result.Rewritten)
	assert.Equal(t, "https://datawrapper.dwcdn.net/abc123/full.png", result.URL)
}

func TestRewriteSocialMirror(t *testing.T) {
	rw := rewriter{socialMirrorHost: "mirror.example.com"}
	result := rw.apply("https://x.com/someone/status/123")
	assert.True(t, result.Rewritten)
	assert.True(t, result.IsSocial)
	assert.Equal(t, "https://mirror.example.com/someone/status/123", result.URL)
}

func TestRewriteSocialWithoutMirror(t *testing.T) {
	rw := rewriter{}
	result := rw.apply("https://twitter.com/someone/status/123")
	assert.False(t, result.Rewritten)
	assert.True(t, result.IsSocial)
	assert.Equal(t, "https://twitter.com/someone/status/123", result.URL)
}

func TestRewritePassthrough(t *testing.T) {
	rw := rewriter{socialMirrorHost: "mirror.example.com"}
	result := rw.apply("https://example.com/article")
	assert.False(t, result.Rewritten)
	assert.False(t, result.IsSocial)
	assert.Equal(t, "https://example.com/article", result.URL)
}
