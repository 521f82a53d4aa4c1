package verifier

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
)

// visualPrompt tells the model the screenshot is only the top viewport so a
// legitimate article is not flagged as truncated for ending mid-scroll.
const visualPrompt = `You are scoring a screenshot of a rendered web page for archival quality.
The screenshot shows only the top viewport (about 800px) of the page; do NOT
flag the page as truncated or incomplete just because it cuts off at the
bottom.

Look for: blank or near-blank pages, paywall overlays, bot-detection
challenges, login walls, and error pages.

Respond with a single JSON object and nothing else:
{"score": <0-100>, "issue": <"blank_page"|"paywall"|"bot_detected"|"login_required"|"error_page"|null>, "reasoning": "<one sentence>"}`

// visualScorer submits screenshots to the vision model and recovers a score
type visualScorer struct {
	vision interfaces.VisionService
	logger arbor.ILogger
}

func newVisualScorer(vision interfaces.VisionService, logger arbor.ILogger) *visualScorer {
	return &visualScorer{vision: vision, logger: logger}
}

type visualResponse struct {
	Score     int    `json:"score"`
	Issue     string `json:"issue"`
	Reasoning string `json:"reasoning"`
}

// ScoreScreenshot asks the vision model to judge the screenshot. An
// unreachable model is reported as an error; the caller decides whether that
// blocks the pipeline. Output with no recoverable JSON scores 0 with issue
// "unknown".
func (s *visualScorer) ScoreScreenshot(ctx context.Context, screenshot []byte) (*interfaces.VisualScore, error) {
	raw, err := s.vision.ChatWithImages(ctx, visualPrompt, [][]byte{screenshot})
	if err != nil {
		return nil, fmt.Errorf("vision model call failed: %w", err)
	}

	var resp visualResponse
	if !extractLenientJSON(raw, "score", &resp) {
		s.logger.Warn().Str("raw", truncateForLog(raw)).Msg("Vision model returned unparseable output")
		resp = visualResponse{Score: 0, Issue: "unknown"}
	}

	if resp.Score < 0 {
		resp.Score = 0
	}
	if resp.Score > 100 {
		resp.Score = 100
	}

	return &interfaces.VisualScore{
		Score:     resp.Score,
		Issue:     resp.Issue,
		Reasoning: resp.Reasoning,
	}, nil
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
