package verifier

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/models"
)

type fakeVision struct {
	response string
	err      error
	called   bool
}

func (f *fakeVision) ChatWithImages(ctx context.Context, prompt string, images [][]byte) (string, error) {
	f.called = true
	return f.response, f.err
}

func TestCheckBlankPageBoundaries(t *testing.T) {
	svc := NewService(&fakeVision{}, 50, arbor.NewLogger())

	// Below both thresholds: blank
	err := svc.CheckBlankPage(make([]byte, 4999), make([]byte, 14999))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blank_page: ")

	// At the screenshot threshold: proceeds
	assert.NoError(t, svc.CheckBlankPage(make([]byte, 5000), make([]byte, 15000)))

	// Large screenshot rescues a tiny pdf
	assert.NoError(t, svc.CheckBlankPage(make([]byte, 100), make([]byte, 15000)))

	// No screenshot at all: only the pdf size counts
	require.Error(t, svc.CheckBlankPage(make([]byte, 4999), nil))
	assert.NoError(t, svc.CheckBlankPage(make([]byte, 5000), nil))
}

func TestVerifyVisualRejection(t *testing.T) {
	vision := &fakeVision{response: `{"score": 20, "issue": "paywall", "reasoning": "overlay visible"}`}
	svc := NewService(vision, 50, arbor.NewLogger())

	_, err := svc.Verify(context.Background(), make([]byte, 10000), make([]byte, 20000))
	require.Error(t, err)
	failure := models.ParseFailure(err.Error())
	assert.Equal(t, models.FailurePaywall, failure.Kind)
}

func TestVerifyVisionUnavailableIsSyntheticPass(t *testing.T) {
	vision := &fakeVision{err: fmt.Errorf("connection refused")}
	svc := NewService(vision, 50, arbor.NewLogger())

	// Content analysis also fails open on unparseable bytes, so the capture
	// passes end to end with the synthetic score
	score, err := svc.Verify(context.Background(), make([]byte, 10000), make([]byte, 20000))
	require.NoError(t, err)
	assert.Equal(t, -1, score.Score)
}

func TestVerifyUnparseableVisionOutputScoresZero(t *testing.T) {
	vision := &fakeVision{response: "I cannot help with that."}
	svc := NewService(vision, 50, arbor.NewLogger())

	score, err := svc.ScoreScreenshot(context.Background(), make([]byte, 20000))
	require.NoError(t, err)
	assert.Equal(t, 0, score.Score)
	assert.Equal(t, "unknown", score.Issue)
}

func TestVerifyScoreClamped(t *testing.T) {
	vision := &fakeVision{response: `{"score": 250}`}
	svc := NewService(vision, 50, arbor.NewLogger())
	score, err := svc.ScoreScreenshot(context.Background(), make([]byte, 20000))
	require.NoError(t, err)
	assert.Equal(t, 100, score.Score)
}

func TestIssueToFailureKind(t *testing.T) {
	assert.Equal(t, models.FailureBlankPage, issueToFailureKind("blank_page"))
	assert.Equal(t, models.FailurePaywall, issueToFailureKind("login_required"))
	assert.Equal(t, models.FailureBotDetected, issueToFailureKind("bot_detected"))
	assert.Equal(t, models.FailureQualityFailed, issueToFailureKind(""))
}
