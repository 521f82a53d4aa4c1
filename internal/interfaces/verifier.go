package interfaces

import "context"

// VisualScore is the vision model's judgement of a screenshot
type VisualScore struct {
	Score     int    `json:"score"`
	Issue     string `json:"issue,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

// ContentAnalysis is the text-density judgement of a rendered PDF
type ContentAnalysis struct {
	Passed     bool    `json:"passed"`
	PageCount  int     `json:"page_count"`
	CharCount  int     `json:"char_count"`
	CharsPerKB float64 `json:"chars_per_kb"`
	Reason     string  `json:"reason,omitempty"`
}

// VerifierService runs the staged quality checks on a capture. Each stage
// returns a classified *models.Failure on rejection, nil error on pass.
type VerifierService interface {
	CheckBlankPage(pdf, screenshot []byte) error
	ScoreScreenshot(ctx context.Context, screenshot []byte) (*VisualScore, error)
	AnalyzePDF(ctx context.Context, pdf []byte) (*ContentAnalysis, error)
	Verify(ctx context.Context, pdf, screenshot []byte) (*VisualScore, error)
}
