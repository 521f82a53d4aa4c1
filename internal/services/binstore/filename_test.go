package binstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseNameFromURL(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		title         string
		directArticle bool
		expected      string
	}{
		{
			name:     "path-based name",
			url:      "https://example.com/a",
			expected: "example.com-a",
		},
		{
			name:     "strips www and joins path with dashes",
			url:      "https://www.example.com/2024/01/some-article",
			expected: "example.com-2024-01-some-article",
		},
		{
			name:     "non-descriptive path uses slugified title",
			url:      "https://news.ycombinator.com/item?id=1",
			title:    "Hello World",
			expected: "news.ycombinator.com-hello-world",
		},
		{
			name:     "empty path with title",
			url:      "https://example.com/",
			title:    "The Year's Best Writing",
			expected: "example.com-the-years-best-writing",
		},
		{
			name:     "non-descriptive path without title keeps path",
			url:      "https://example.com/post",
			expected: "example.com-post",
		},
		{
			name:          "social status becomes article on direct capture",
			url:           "https://x.com/someone/status/12345",
			directArticle: true,
			expected:      "x.com-someone-article-12345",
		},
		{
			name:     "social status becomes post otherwise",
			url:      "https://twitter.com/someone/status/12345",
			expected: "twitter.com-someone-post-12345",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, baseNameFromURL(tt.url, tt.title, tt.directArticle))
		})
	}
}

func TestSlugifyTitleTruncates(t *testing.T) {
	long := strings.Repeat("word ", 30)
	s := slugifyTitle(long)
	assert.LessOrEqual(t, len(s), 50)
	assert.NotEmpty(t, s)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a-b", sanitizeFilename(`a/b`))
	assert.Equal(t, "unnamed", sanitizeFilename("///"))
	assert.LessOrEqual(t, len(sanitizeFilename(strings.Repeat("x", 300))), 100)
}
