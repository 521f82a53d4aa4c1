package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
)

// Concurrency is 1: the browser and the vision model are both too heavy to
// share between parallel captures.
const Concurrency = 1

// Worker converts URLs to archived PDFs: capture, staged verification, weekly
// bin save, and typed failure classification.
type Worker struct {
	browser    interfaces.BrowserService
	verifier   interfaces.VerifierService
	bins       interfaces.BinStore
	events     interfaces.EventService
	failures   interfaces.FailureStorage
	httpClient *http.Client
	userAgent  string
	debugDir   string
	logger     arbor.ILogger
}

// NewWorker creates the conversion worker. httpClient serves the direct-PDF
// download path and must be context-bounded without a client-level Timeout
// (httpclient.NewDownloadHTTPClient): an overall Timeout would override the
// download deadline and fail large PDFs on slow links.
func NewWorker(
	browser interfaces.BrowserService,
	verifier interfaces.VerifierService,
	bins interfaces.BinStore,
	events interfaces.EventService,
	failures interfaces.FailureStorage,
	httpClient *http.Client,
	userAgent string,
	dataDir string,
	logger arbor.ILogger,
) *Worker {
	return &Worker{
		browser:    browser,
		verifier:   verifier,
		bins:       bins,
		events:     events,
		failures:   failures,
		httpClient: httpClient,
		userAgent:  userAgent,
		debugDir:   filepath.Join(dataDir, "debug"),
		logger:     logger,
	}
}

// Handle is the conversion queue handler
func (w *Worker) Handle(ctx context.Context, job interfaces.Job) ([]byte, error) {
	var conv models.ConversionJob
	if err := json.Unmarshal(job.Data(), &conv); err != nil {
		return nil, fmt.Errorf("invalid conversion payload: %w", err)
	}

	start := time.Now()
	w.publish(ctx, models.EventConversionStarted, map[string]interface{}{
		"jobId": job.ID(),
		"url":   conv.URL,
	})

	result, err := w.convert(ctx, job, &conv)
	if err != nil {
		w.recordFailure(ctx, job, &conv, err)
		return nil, err
	}

	w.publish(ctx, models.EventConversionCompleted, models.ConversionCompletedPayload(
		job.ID(), conv.URL, result.PDFPath, result.PDFSize,
		result.QualityScore, result.QualityReasoning, time.Since(start),
	))

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return data, nil
}

func (w *Worker) convert(ctx context.Context, job interfaces.Job, conv *models.ConversionJob) (*models.ConversionResult, error) {
	if isDirectPDFURL(conv.URL) {
		return w.convertDirect(ctx, job, conv)
	}
	return w.convertRendered(ctx, job, conv)
}

// convertDirect fetches a PDF payload without rendering. Quality checks are
// skipped: the document arrived as its final form.
func (w *Worker) convertDirect(ctx context.Context, job interfaces.Job, conv *models.ConversionJob) (*models.ConversionResult, error) {
	job.Progress(ctx, 10)

	pdf, filename, err := w.downloadPDF(ctx, conv.URL)
	if err != nil {
		return nil, err
	}
	job.Progress(ctx, 90)

	title := conv.Title
	if title == "" {
		title = filename
	}

	return w.save(ctx, job, conv, pdf, title, false, nil)
}

// convertRendered runs the full capture and verification pipeline
func (w *Worker) convertRendered(ctx context.Context, job interfaces.Job, conv *models.ConversionJob) (*models.ConversionResult, error) {
	job.Progress(ctx, 10)

	capture, err := w.browser.Capture(ctx, conv.URL)
	if err != nil {
		return nil, err
	}
	job.Progress(ctx, 50)

	if err := w.verifier.CheckBlankPage(capture.PDF, capture.Screenshot); err != nil {
		w.saveDebugArtifact(job.ID(), capture.PDF)
		return nil, err
	}

	score, err := w.verifier.Verify(ctx, capture.PDF, capture.Screenshot)
	if err != nil {
		w.saveDebugArtifact(job.ID(), capture.PDF)
		return nil, err
	}
	job.Progress(ctx, 90)

	title := conv.Title
	if title == "" {
		title = capture.Title
	}

	return w.save(ctx, job, conv, capture.PDF, title, capture.DirectArticle, score)
}

// save writes the PDF into its weekly bin and honors the rerun protocol: the
// old file is deleted only after a successful save to a different path.
func (w *Worker) save(ctx context.Context, job interfaces.Job, conv *models.ConversionJob, pdf []byte, title string, directArticle bool, score *interfaces.VisualScore) (*models.ConversionResult, error) {
	saveURL := conv.OriginalURL
	if saveURL == "" {
		saveURL = conv.URL
	}

	path, err := w.bins.SavePdf(pdf, saveURL, interfaces.SaveOptions{
		Title:         title,
		BookmarkedAt:  conv.BookmarkedAt,
		DirectArticle: directArticle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to archive pdf: %w", err)
	}

	if conv.OldFilePath != "" {
		if err := w.bins.DeleteIfDifferent(conv.OldFilePath, path); err != nil {
			w.logger.Warn().Err(err).Str("old_path", conv.OldFilePath).Msg("Failed to delete superseded file")
		}
	}
	job.Progress(ctx, 100)

	result := &models.ConversionResult{
		PDFPath:     path,
		PDFSize:     int64(len(pdf)),
		CompletedAt: time.Now(),
		URL:         conv.URL,
	}
	if score != nil {
		result.QualityScore = score.Score
		result.QualityReasoning = score.Reasoning
	}
	return result, nil
}

// saveDebugArtifact keeps the rejected PDF for post-mortem inspection
func (w *Worker) saveDebugArtifact(jobID string, pdf []byte) {
	if len(pdf) == 0 {
		return
	}
	if err := os.MkdirAll(w.debugDir, 0755); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to create debug directory")
		return
	}
	path := filepath.Join(w.debugDir, jobID+".pdf")
	if err := os.WriteFile(path, pdf, 0644); err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("Failed to save debug artifact")
		return
	}
	w.logger.Debug().Str("path", path).Msg("Debug artifact saved")
}

// recordFailure persists and publishes a terminal failure; intermediate
// retries stay quiet.
func (w *Worker) recordFailure(ctx context.Context, job interfaces.Job, conv *models.ConversionJob, convErr error) {
	if job.AttemptsMade() < job.MaxAttempts() {
		return
	}

	failure := models.ParseFailure(convErr.Error())
	record := &models.FailureRecord{
		JobID:         job.ID(),
		URL:           conv.URL,
		OriginalURL:   conv.OriginalURL,
		FailureReason: convErr.Error(),
		FailedAt:      time.Now(),
		IsBotDetected: failure.Kind == models.FailureBotDetected,
	}
	if err := w.failures.SaveFailure(ctx, record); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID()).Msg("Failed to persist failure record")
	}

	w.publish(ctx, models.EventConversionFailed, models.ConversionFailedPayload(
		job.ID(), conv.URL, convErr.Error(), job.AttemptsMade(), job.MaxAttempts(),
	))
}

func (w *Worker) publish(ctx context.Context, eventType models.EventType, payload map[string]interface{}) {
	w.events.Publish(ctx, models.Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
