package verifier

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

// Blank-page heuristic thresholds: below both, the page is declared blank
// without spending a vision model call.
const (
	minScreenshotBytes = 15000
	minPDFBytes        = 5000
)

// Service composes the staged quality checks: cheap blank-page heuristic,
// then visual scoring, then content analysis.
type Service struct {
	visual    *visualScorer
	content   *contentAnalyzer
	threshold int
	logger    arbor.ILogger
}

// Compile-time assertion
var _ interfaces.VerifierService = (*Service)(nil)

// NewService creates the verifier. Scores at or above threshold pass the
// visual stage.
func NewService(vision interfaces.VisionService, threshold int, logger arbor.ILogger) *Service {
	return &Service{
		visual:    newVisualScorer(vision, logger),
		content:   newContentAnalyzer(logger),
		threshold: threshold,
		logger:    logger,
	}
}

// CheckBlankPage applies the size heuristic. A failed screenshot capture
// (zero bytes) shifts the burden entirely onto the PDF size.
func (s *Service) CheckBlankPage(pdf, screenshot []byte) error {
	if len(screenshot) == 0 {
		if len(pdf) < minPDFBytes {
			return models.NewFailure(models.FailureBlankPage, "no screenshot and pdf is only %d bytes", len(pdf))
		}
		return nil
	}
	if len(screenshot) < minScreenshotBytes && len(pdf) < minPDFBytes {
		return models.NewFailure(models.FailureBlankPage, "screenshot %d bytes, pdf %d bytes", len(screenshot), len(pdf))
	}
	return nil
}

// ScoreScreenshot runs the visual stage alone
func (s *Service) ScoreScreenshot(ctx context.Context, screenshot []byte) (*interfaces.VisualScore, error) {
	return s.visual.ScoreScreenshot(ctx, screenshot)
}

// AnalyzePDF runs the content stage alone
func (s *Service) AnalyzePDF(ctx context.Context, pdf []byte) (*interfaces.ContentAnalysis, error) {
	return s.content.AnalyzePDF(ctx, pdf)
}

// Verify runs all stages in order and returns the visual score on success.
// Rejections surface as classified *models.Failure errors. An unreachable
// vision model yields a synthetic pass with score -1: verifier availability
// must never block the pipeline.
func (s *Service) Verify(ctx context.Context, pdf, screenshot []byte) (*interfaces.VisualScore, error) {
	if err := s.CheckBlankPage(pdf, screenshot); err != nil {
		return nil, err
	}

	score, err := s.visual.ScoreScreenshot(ctx, screenshot)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Vision model unavailable, passing visual check")
		score = &interfaces.VisualScore{Score: -1, Reasoning: "vision model unavailable"}
	} else if score.Score < s.threshold {
		kind := issueToFailureKind(score.Issue)
		return nil, models.NewFailure(kind, "visual score %d below threshold %d (%s)", score.Score, s.threshold, score.Reasoning)
	}

	analysis, err := s.content.AnalyzePDF(ctx, pdf)
	if err != nil {
		return nil, err
	}
	if !analysis.Passed {
		failure := models.ParseFailure(analysis.Reason)
		return nil, failure
	}

	return score, nil
}

// issueToFailureKind maps the vision model's issue labels onto the failure
// taxonomy
func issueToFailureKind(issue string) models.FailureKind {
	switch issue {
	case "blank_page":
		return models.FailureBlankPage
	case "paywall", "login_required":
		return models.FailurePaywall
	case "bot_detected":
		return models.FailureBotDetected
	case "error_page":
		return models.FailureMissingContent
	default:
		return models.FailureQualityFailed
	}
}
