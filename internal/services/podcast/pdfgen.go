package podcast

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/recondo/internal/models"
)

// Letter-page layout constants, all in points
const (
	pageMargin     = 50.0
	bodyFontSize   = 11.0
	bodyLineHeight = 16.0
	letterWidth    = 612.0
	letterHeight   = 792.0
)

// transcriptPDF renders the podcast transcript document: header, show notes
// with clickable links, a rule, then the formatted transcript body with
// manual wrapping and pagination.
func transcriptPDF(meta *models.PodcastMetadata, transcript string, sourceURL string) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)

	pdf.SetTitle(sanitizeText(meta.EpisodeTitle), false)
	pdf.SetAuthor(sanitizeText(meta.PodcastName), false)
	pdf.SetSubject(sourceURL, false)
	pdf.SetCreator("recondo", false)
	pdf.SetProducer("recondo podcast archiver", false)

	pdf.AddPage()
	contentWidth := letterWidth - 2*pageMargin

	// Header
	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(contentWidth, 22, sanitizeText(meta.PodcastName), "", "L", false)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(contentWidth, 18, sanitizeText(meta.EpisodeTitle), "", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	for _, line := range metadataLines(meta, sourceURL) {
		pdf.MultiCell(contentWidth, 13, sanitizeText(line), "", "L", false)
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(8)

	// Show notes
	if meta.ShowNotes != nil {
		if meta.ShowNotes.Summary != "" {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.MultiCell(contentWidth, 14, sanitizeText(meta.ShowNotes.Summary), "", "L", false)
			pdf.Ln(6)
		}
		if len(meta.ShowNotes.Links) > 0 {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.MultiCell(contentWidth, 14, "Links", "", "L", false)
			pdf.SetFont("Helvetica", "", 10)
			pdf.SetTextColor(0, 0, 200)
			for _, link := range meta.ShowNotes.Links {
				label := sanitizeText("  \x95 " + link.Text)
				pdf.CellFormat(contentWidth, 14, label, "", 1, "L", false, 0, link.URL)
			}
			pdf.SetTextColor(0, 0, 0)
			pdf.Ln(6)
		}
	}

	// Rule between front matter and transcript
	y := pdf.GetY() + 4
	pdf.SetDrawColor(150, 150, 150)
	pdf.Line(pageMargin, y, letterWidth-pageMargin, y)
	pdf.SetY(y + 12)

	// Body with manual wrap and pagination
	pdf.SetFont("Helvetica", "", bodyFontSize)
	for _, paragraph := range strings.Split(transcript, "\n\n") {
		paragraph = strings.TrimSpace(sanitizeText(paragraph))
		if paragraph == "" {
			continue
		}
		lines := pdf.SplitText(paragraph, contentWidth)
		for _, line := range lines {
			if pdf.GetY()+bodyLineHeight > letterHeight-pageMargin {
				pdf.AddPage()
				pdf.SetFont("Helvetica", "", bodyFontSize)
			}
			pdf.CellFormat(contentWidth, bodyLineHeight, line, "", 1, "L", false, 0, "")
		}
		pdf.Ln(bodyLineHeight / 2)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render transcript pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func metadataLines(meta *models.PodcastMetadata, sourceURL string) []string {
	var lines []string
	if meta.Artist != "" {
		lines = append(lines, "Host: "+meta.Artist)
	}
	if meta.Genre != "" {
		lines = append(lines, "Genre: "+meta.Genre)
	}
	if meta.DurationMs > 0 {
		lines = append(lines, "Duration: "+formatDuration(meta.DurationMs))
	}
	if meta.ReleaseDate != nil {
		lines = append(lines, "Released: "+meta.ReleaseDate.Format("January 2, 2006"))
	}
	lines = append(lines, "Source: "+sourceURL)
	return lines
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// latin1Replacements maps common typographic characters onto the PDF font's
// encodable subset
var latin1Replacements = map[rune]string{
	'\u2018': "'", '\u2019': "'", '\u201a': "'", '\u201b': "'",
	'\u201c': `"`, '\u201d': `"`, '\u201e': `"`,
	'\u2013': "-", '\u2014': "-", '\u2015': "-",
	'\u2026': "...",
	'\u00a0': " ",
}

// zeroWidthRunes are stripped outright: they render as garbage in the
// standard fonts and break copy-paste from the PDF
var zeroWidthRunes = map[rune]bool{
	'\u200b': true, '\u200c': true, '\u200d': true,
	'\u2060': true, '\ufeff': true, '\u00ad': true,
}

// sanitizeText reduces text to what the built-in PDF fonts can encode:
// zero-width characters dropped, smart punctuation mapped to ASCII, anything
// outside Latin-1 removed.
func sanitizeText(text string) string {
	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range text {
		if zeroWidthRunes[r] {
			continue
		}
		if replacement, ok := latin1Replacements[r]; ok {
			builder.WriteString(replacement)
			continue
		}
		if r == '\n' || r == '\t' {
			builder.WriteRune(r)
			continue
		}
		if r < 0x20 {
			continue
		}
		if r <= 0xFF {
			builder.WriteRune(r)
		}
		// Runes beyond Latin-1 are dropped
	}
	return builder.String()
}
