package verifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
)

// Detection pattern tables. These are part of the public data surface:
// heuristic by nature, so they stay in one place and are versioned with the
// code rather than scattered through the analyzer.
var errorPagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)page (can'?t|cannot) be found`),
	regexp.MustCompile(`(?i)404 (error|not found)?`),
	regexp.MustCompile(`(?i)this page (doesn'?t|does not) exist`),
	regexp.MustCompile(`(?i)we couldn'?t find (that|the) page`),
	regexp.MustCompile(`(?i)the page you('re| are) looking for`),
	regexp.MustCompile(`(?i)sorry, something went wrong`),
	regexp.MustCompile(`(?i)access denied`),
}

var paywallPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)get unlimited access`),
	regexp.MustCompile(`(?i)subscribe to continue reading`),
	regexp.MustCompile(`(?i)subscribe to read`),
	regexp.MustCompile(`(?i)already a subscriber\?`),
	regexp.MustCompile(`(?i)\$\d+(\.\d{2})? (?:a|per|your first) month`),
	regexp.MustCompile(`(?i)create a free account to continue`),
	regexp.MustCompile(`(?i)this article is for subscribers`),
	regexp.MustCompile(`(?i)become a member to keep reading`),
}

// Content thresholds
const (
	errorPageMaxChars    = 2000
	minCharCount         = 500
	largePDFBytes        = 500 * 1024
	largePDFMinChars     = 1000
	lowDensityCharsPerKB = 5.0
	lowDensityMaxChars   = 3000
	lowDensityCharsPage  = 400
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// analyzeText applies the density and pattern heuristics to extracted text.
// Split out from PDF parsing so the rules are testable on plain strings.
func analyzeText(text string, pdfSize int, pageCount int) *interfaces.ContentAnalysis {
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	charCount := len(text)

	charsPerKB := 0.0
	if pdfSize > 0 {
		charsPerKB = float64(charCount) / (float64(pdfSize) / 1024.0)
	}

	analysis := &interfaces.ContentAnalysis{
		PageCount:  pageCount,
		CharCount:  charCount,
		CharsPerKB: charsPerKB,
	}

	if charCount < errorPageMaxChars {
		for _, pattern := range errorPagePatterns {
			if pattern.MatchString(text) {
				analysis.Reason = fmt.Sprintf("error_page: matched %q", pattern.String())
				return analysis
			}
		}
	}

	for _, pattern := range paywallPatterns {
		if pattern.MatchString(text) {
			analysis.Reason = fmt.Sprintf("paywall: matched %q", pattern.String())
			return analysis
		}
	}

	if charCount < minCharCount {
		analysis.Reason = fmt.Sprintf("truncated: only %d characters of text", charCount)
		return analysis
	}

	if pdfSize > largePDFBytes && charCount < largePDFMinChars {
		analysis.Reason = fmt.Sprintf("truncated: %d KB pdf with only %d characters", pdfSize/1024, charCount)
		return analysis
	}

	// Low density is only damning when the page count, density, total text,
	// and per-page text all point the same way; image-heavy legitimate pages
	// and short announcements pass through.
	if pageCount > 1 && charsPerKB < lowDensityCharsPerKB && charCount < lowDensityMaxChars {
		charsPerPage := charCount / pageCount
		if charsPerPage < lowDensityCharsPage {
			analysis.Reason = fmt.Sprintf("truncated: %.1f chars/KB across %d pages", charsPerKB, pageCount)
			return analysis
		}
	}

	analysis.Passed = true
	return analysis
}

// contentAnalyzer extracts PDF text via pdfcpu and applies analyzeText
type contentAnalyzer struct {
	logger  arbor.ILogger
	tempDir string
}

func newContentAnalyzer(logger arbor.ILogger) *contentAnalyzer {
	tempDir := filepath.Join(os.TempDir(), "recondo-verify")
	os.MkdirAll(tempDir, 0755)
	return &contentAnalyzer{logger: logger, tempDir: tempDir}
}

// AnalyzePDF parses text out of the PDF and scores its density. A parser
// exception passes the document: the analyzer must never block an otherwise
// good capture on its own limitations.
func (a *contentAnalyzer) AnalyzePDF(ctx context.Context, pdf []byte) (*interfaces.ContentAnalysis, error) {
	text, pageCount, err := a.extractText(pdf)
	if err != nil {
		a.logger.Warn().Err(err).Msg("PDF text extraction failed, passing content check")
		return &interfaces.ContentAnalysis{
			Passed: true,
			Reason: fmt.Sprintf("parser failure: %v", err),
		}, nil
	}
	return analyzeText(text, len(pdf), pageCount), nil
}

// extractText pulls text out of every page's content streams
func (a *contentAnalyzer) extractText(pdf []byte) (string, int, error) {
	tempFile := filepath.Join(a.tempDir, fmt.Sprintf("analyze_%d.pdf", os.Getpid()))
	if err := os.WriteFile(tempFile, pdf, 0644); err != nil {
		return "", 0, fmt.Errorf("failed to write temp pdf: %w", err)
	}
	defer os.Remove(tempFile)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read pdf context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(a.tempDir, fmt.Sprintf("content_%d", os.Getpid()))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", 0, err
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", 0, fmt.Errorf("failed to extract pdf content: %w", err)
	}

	var builder strings.Builder
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", 0, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			continue
		}
		builder.WriteString(textFromContentStream(content))
		builder.WriteByte(' ')
	}

	return builder.String(), pageCount, nil
}

// textFromContentStream pulls string literals shown by Tj/TJ operators out of
// a decoded PDF content stream. Escapes for parens and backslashes are
// honored; everything else is taken literally.
func textFromContentStream(stream []byte) string {
	var builder strings.Builder
	inLiteral := false
	escaped := false

	for i := 0; i < len(stream); i++ {
		c := stream[i]
		if !inLiteral {
			if c == '(' {
				inLiteral = true
			}
			continue
		}
		if escaped {
			switch c {
			case 'n':
				builder.WriteByte('\n')
			case 't':
				builder.WriteByte('\t')
			default:
				builder.WriteByte(c)
			}
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case ')':
			inLiteral = false
			builder.WriteByte(' ')
		default:
			builder.WriteByte(c)
		}
	}

	return builder.String()
}
