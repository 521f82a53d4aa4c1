package podcast

import (
	"regexp"
	"strings"
)

// srtTimestampLine matches "HH:MM:SS,mmm --> HH:MM:SS,mmm" with the
// separator variants different generators emit.
var srtTimestampLine = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}[,.:]\d{3}\s+-->\s+\d{2}:\d{2}:\d{2}[,.:]\d{3}`)

var srtSequenceLine = regexp.MustCompile(`^\d+$`)

var sentenceEnd = regexp.MustCompile(`[.!?]["')\]]?(\s|$)`)

// sentencesPerParagraph soft-breaks flowing SRT text into paragraphs
const sentencesPerParagraph = 5

// IsSRT reports whether the text looks like SubRip output
func IsSRT(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if srtTimestampLine.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// CleanSRT strips sequence numbers and timestamps and joins the cue text into
// paragraphs, breaking roughly every few sentences.
func CleanSRT(text string) string {
	var words []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || srtSequenceLine.MatchString(trimmed) || srtTimestampLine.MatchString(trimmed) {
			continue
		}
		words = append(words, trimmed)
	}

	joined := strings.Join(words, " ")
	return paragraphize(joined)
}

// paragraphize inserts paragraph breaks after every few sentence-ending
// punctuation marks
func paragraphize(text string) string {
	var builder strings.Builder
	sentences := 0
	remaining := text

	for {
		loc := sentenceEnd.FindStringIndex(remaining)
		if loc == nil {
			builder.WriteString(remaining)
			break
		}
		builder.WriteString(remaining[:loc[1]])
		remaining = remaining[loc[1]:]
		sentences++
		if sentences >= sentencesPerParagraph && strings.TrimSpace(remaining) != "" {
			trimmedSoFar := strings.TrimRight(builder.String(), " ")
			builder.Reset()
			builder.WriteString(trimmedSoFar)
			builder.WriteString("\n\n")
			sentences = 0
		}
	}

	return strings.TrimSpace(builder.String())
}
