package verifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeTextErrorPage(t *testing.T) {
	analysis := analyzeText("404 not found. The page you are looking for has moved.", 10*1024, 1)
	assert.False(t, analysis.Passed)
	assert.Contains(t, analysis.Reason, "error_page")
}

func TestAnalyzeTextErrorPatternsIgnoredOnLongDocuments(t *testing.T) {
	// A long article that merely mentions 404 errors is not an error page
	body := strings.Repeat("This is a long discussion of HTTP status codes. ", 100) + "404 error handling is subtle."
	analysis := analyzeText(body, 50*1024, 3)
	assert.True(t, analysis.Passed)
}

func TestAnalyzeTextPaywall(t *testing.T) {
	body := strings.Repeat("Interesting opening paragraphs. ", 40) + "Subscribe to continue reading."
	analysis := analyzeText(body, 100*1024, 2)
	assert.False(t, analysis.Passed)
	assert.Contains(t, analysis.Reason, "paywall")
}

func TestAnalyzeTextPaywallPricePhrase(t *testing.T) {
	body := strings.Repeat("Lead-in text. ", 50) + "Get full access for $4.99 a month today."
	analysis := analyzeText(body, 100*1024, 2)
	assert.False(t, analysis.Passed)
	assert.Contains(t, analysis.Reason, "paywall")
}

func TestAnalyzeTextCharCountBoundary(t *testing.T) {
	// 499 characters fails, 500 proceeds
	at499 := strings.Repeat("x", 499)
	analysis := analyzeText(at499, 50*1024, 1)
	assert.False(t, analysis.Passed)
	assert.Contains(t, analysis.Reason, "truncated")

	at500 := strings.Repeat("x", 500)
	analysis = analyzeText(at500, 50*1024, 1)
	assert.True(t, analysis.Passed)
}

func TestAnalyzeTextLargePDFLittleText(t *testing.T) {
	analysis := analyzeText(strings.Repeat("x", 800), 600*1024, 4)
	assert.False(t, analysis.Passed)
	assert.Contains(t, analysis.Reason, "truncated")
}

func TestAnalyzeTextLowDensityBypass(t *testing.T) {
	// Image-heavy but text-dense-per-page documents pass
	text := strings.Repeat("y", 2500)
	analysis := analyzeText(text, 600*1024, 2)
	assert.True(t, analysis.Passed, "1250 chars per page clears the per-page floor")

	// Thin text spread across many pages fails
	text = strings.Repeat("y", 1500)
	analysis = analyzeText(text, 400*1024, 5)
	assert.False(t, analysis.Passed)
	assert.Contains(t, analysis.Reason, "truncated")
}

func TestAnalyzeTextCollapsesWhitespace(t *testing.T) {
	text := strings.Repeat("word \n\t  ", 200)
	analysis := analyzeText(text, 50*1024, 1)
	assert.True(t, analysis.Passed)
	assert.Equal(t, len("word ")*200-1, analysis.CharCount)
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte(`BT /F1 12 Tf (Hello) Tj (World \(escaped\)) Tj ET`)
	text := textFromContentStream(stream)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "World (escaped)")
}
