package podcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

const (
	// reformatMinChars skips the LLM for trivially short transcripts
	reformatMinChars = 500
	// chunkMaxChars bounds one LLM call's input
	chunkMaxChars = 15000
	// reformatTemperature keeps the model close to the source text
	reformatTemperature = 0.3
)

// reformatter turns raw ASR output into readable prose via the text LLM
type reformatter struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

func newReformatter(llm interfaces.LLMService, logger arbor.ILogger) *reformatter {
	return &reformatter{llm: llm, logger: logger}
}

// Reformat cleans the transcript chunk by chunk. A failing chunk passes
// through unchanged; a degraded transcript beats a lost one.
func (r *reformatter) Reformat(ctx context.Context, text string, meta *models.PodcastMetadata) string {
	if len(text) < reformatMinChars {
		return text
	}

	hints := spellingHints(meta)
	chunks := chunkText(text, chunkMaxChars)

	var out []string
	for i, chunk := range chunks {
		cleaned, err := r.reformatChunk(ctx, chunk, hints)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Int("chunk", i+1).
				Int("chunks", len(chunks)).
				Msg("Chunk reformat failed, keeping raw text")
			cleaned = chunk
		}
		out = append(out, cleaned)
	}

	return strings.Join(out, "\n\n")
}

func (r *reformatter) reformatChunk(ctx context.Context, chunk string, hints []string) (string, error) {
	prompt := buildReformatPrompt(chunk, hints)
	result, err := r.llm.Chat(ctx, []interfaces.Message{
		{Role: "user", Content: prompt},
	}, &interfaces.ChatOptions{Temperature: reformatTemperature})
	if err != nil {
		return "", err
	}
	cleaned := strings.TrimSpace(result)
	if cleaned == "" {
		return "", fmt.Errorf("model returned empty reformat")
	}
	return cleaned, nil
}

func buildReformatPrompt(chunk string, hints []string) string {
	var builder strings.Builder
	builder.WriteString(`Reformat this podcast transcript excerpt into flowing paragraphs of 4-6 sentences.
Remove filler words (um, uh, you know, like) and false starts, but change nothing else:
keep every statement, keep sponsor reads, keep the speaker's voice. Do not summarize,
do not add commentary, and do not invent text.`)
	if len(hints) > 0 {
		builder.WriteString("\n\nNames and brands mentioned in this episode (use these spellings): ")
		builder.WriteString(strings.Join(hints, ", "))
	}
	builder.WriteString("\n\nTranscript:\n")
	builder.WriteString(chunk)
	return builder.String()
}

// spellingHints combines the episode title's proper nouns with show-notes
// brand names
func spellingHints(meta *models.PodcastMetadata) []string {
	if meta == nil {
		return nil
	}
	seen := make(map[string]bool)
	var hints []string
	add := func(word string) {
		trimmed := strings.Trim(word, ".,:;!?\"'()")
		if len(trimmed) < 3 || !isCapitalized(trimmed) || seen[trimmed] {
			return
		}
		seen[trimmed] = true
		hints = append(hints, trimmed)
	}
	for _, word := range strings.Fields(meta.EpisodeTitle) {
		add(word)
	}
	for _, name := range brandNames(meta.ShowNotes) {
		add(name)
	}
	return hints
}

// chunkText splits text on paragraph boundaries, falling back to sentence
// boundaries inside oversized paragraphs, keeping every chunk under the cap.
func chunkText(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		if len(paragraph) > maxChars {
			flush()
			for _, piece := range splitSentences(paragraph, maxChars) {
				chunks = append(chunks, piece)
			}
			continue
		}
		if current.Len()+len(paragraph)+2 > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	flush()

	return chunks
}

// splitSentences cuts an oversized paragraph at sentence ends, hard-splitting
// only when a single sentence exceeds the cap
func splitSentences(paragraph string, maxChars int) []string {
	var chunks []string
	var current strings.Builder

	remaining := paragraph
	for remaining != "" {
		loc := sentenceEnd.FindStringIndex(remaining)
		var sentence string
		if loc == nil {
			sentence = remaining
			remaining = ""
		} else {
			sentence = remaining[:loc[1]]
			remaining = remaining[loc[1]:]
		}

		if len(sentence) > maxChars {
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			for len(sentence) > maxChars {
				chunks = append(chunks, strings.TrimSpace(sentence[:maxChars]))
				sentence = sentence[maxChars:]
			}
		}

		if current.Len()+len(sentence) > maxChars {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}
