package podcast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/httpclient"
	"github.com/ternarybob/recondo/internal/interfaces"
	"github.com/ternarybob/recondo/internal/models"
	"github.com/ternarybob/recondo/internal/services/binstore"
)

// Concurrency is 1: a single transcription saturates the ASR service
const Concurrency = 1

// audioDownloadTimeout bounds fetching the episode audio (not the ASR call)
const audioDownloadTimeout = 10 * time.Minute

// Worker archives podcast episodes: metadata lookup, audio download,
// transcription, LLM cleanup, PDF synthesis, and weekly bin archival of both
// the transcript and the audio.
type Worker struct {
	lookup      *lookupClient
	showNotes   *showNotesParser
	asr         *asrClient
	reformatter *reformatter
	bins        *binstore.Store
	events      interfaces.EventService
	audioClient *http.Client
	logger      arbor.ILogger
}

// NewWorker creates the podcast worker. asrHTTPClient must allow multi-hour
// responses (httpclient.NewASRHTTPClient); metaHTTPClient is an ordinary
// short-timeout client for the lookup and feed calls. Audio downloads get
// their own context-bounded client: a client-level Timeout would override
// the download deadline and cut long episodes off mid-transfer.
func NewWorker(
	asrHost string,
	llm interfaces.LLMService,
	bins *binstore.Store,
	events interfaces.EventService,
	metaHTTPClient *http.Client,
	asrHTTPClient *http.Client,
	logger arbor.ILogger,
) *Worker {
	return &Worker{
		lookup:      newLookupClient(metaHTTPClient),
		showNotes:   newShowNotesParser(metaHTTPClient, logger),
		asr:         newASRClient(asrHost, asrHTTPClient, logger),
		reformatter: newReformatter(llm, logger),
		bins:        bins,
		events:      events,
		audioClient: httpclient.NewDownloadHTTPClient(),
		logger:      logger,
	}
}

// Handle is the podcast queue handler. A retry re-executes every stage,
// including the audio download; stage outputs are not cached between
// attempts.
func (w *Worker) Handle(ctx context.Context, job interfaces.Job) ([]byte, error) {
	var podJob models.PodcastJob
	if err := json.Unmarshal(job.Data(), &podJob); err != nil {
		return nil, fmt.Errorf("invalid podcast payload: %w", err)
	}

	// Stage 1: URL parse
	ref, err := ParseEpisodeURL(podJob.URL)
	if err != nil {
		return nil, err
	}
	job.Progress(ctx, 10)

	// Stage 2: metadata lookup + show notes
	meta, err := w.lookup.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	meta.ShowNotes = w.showNotes.FetchShowNotes(ctx, meta)
	job.Progress(ctx, 20)

	w.logger.Info().
		Str("podcast", meta.PodcastName).
		Str("episode", meta.EpisodeTitle).
		Msg("Transcribing episode")

	// Stage 3: audio download + ASR
	audioPath, err := w.downloadAudio(ctx, meta.AudioURL)
	if err != nil {
		return nil, err
	}
	defer os.Remove(audioPath)

	transcript, err := w.asr.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	job.Progress(ctx, 60)

	// Stage 4: LLM reformatting
	formatted := w.reformatter.Reformat(ctx, transcript.Text, meta)
	job.Progress(ctx, 85)

	// Stage 5: PDF synthesis
	pdf, err := transcriptPDF(meta, formatted, podJob.URL)
	if err != nil {
		return nil, err
	}
	job.Progress(ctx, 90)

	// Stage 6: archive transcript and audio under a shared basename
	pdfPath, audioDest, err := w.archive(ref, meta, pdf, audioPath, podJob.BookmarkedAt)
	if err != nil {
		return nil, err
	}
	if podJob.OldFilePath != "" {
		if err := w.bins.DeleteIfDifferent(podJob.OldFilePath, pdfPath); err != nil {
			w.logger.Warn().Err(err).Str("old_path", podJob.OldFilePath).Msg("Failed to delete superseded transcript")
		}
	}
	job.Progress(ctx, 100)

	w.events.Publish(ctx, models.Event{
		Type:      models.EventPodcastArchived,
		Timestamp: time.Now(),
		Payload: map[string]interface{}{
			"jobId":   job.ID(),
			"url":     podJob.URL,
			"pdfPath": pdfPath,
			"audio":   audioDest,
		},
	})

	result := models.ConversionResult{
		PDFPath:     pdfPath,
		PDFSize:     int64(len(pdf)),
		CompletedAt: time.Now(),
		URL:         podJob.URL,
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return data, nil
}

// downloadAudio buffers the episode audio to a temp file. Episodes are tens
// of megabytes; buffering is acceptable and keeps the multipart upload simple.
func (w *Worker) downloadAudio(ctx context.Context, audioURL string) (string, error) {
	dlCtx, cancel := context.WithTimeout(ctx, audioDownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dlCtx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", models.NewFailure(models.FailureDownloadFailed, "invalid audio url: %v", err)
	}

	resp, err := w.audioClient.Do(req)
	if err != nil {
		return "", models.NewFailure(models.FailureDownloadFailed, "audio fetch failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", models.NewFailure(models.FailureDownloadFailed, "audio fetch returned status %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", models.NewFailure(models.FailureDownloadFailed, "audio read failed: %v", err)
	}

	tempFile, err := os.CreateTemp("", "recondo-audio-*"+audioExtension(audioURL))
	if err != nil {
		return "", fmt.Errorf("failed to create temp audio file: %w", err)
	}
	if _, err := tempFile.Write(audio); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("failed to write temp audio file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("failed to close temp audio file: %w", err)
	}

	w.logger.Debug().
		Str("url", audioURL).
		Int("bytes", len(audio)).
		Msg("Episode audio downloaded")
	return tempFile.Name(), nil
}

// archive writes the transcript PDF and moves the audio into the podcasts bin
func (w *Worker) archive(ref *models.PodcastEpisodeRef, meta *models.PodcastMetadata, pdf []byte, audioPath string, bookmarkedAt *time.Time) (string, string, error) {
	when := time.Now()
	if bookmarkedAt != nil {
		when = *bookmarkedAt
	}

	base := sharedBasename(ref, meta)

	pdfPath, err := w.bins.SaveBytes(pdf, base, ".pdf", when, models.MediaPodcast)
	if err != nil {
		return "", "", fmt.Errorf("failed to archive transcript: %w", err)
	}

	audioDest := filepath.Join(w.bins.BinPath(when, models.MediaPodcast), base+audioExtension(audioPath))
	if err := moveFile(audioPath, audioDest); err != nil {
		return "", "", fmt.Errorf("failed to archive audio: %w", err)
	}

	return pdfPath, audioDest, nil
}

// sharedBasename pairs the transcript and audio: {podcast-slug}-{episode-slug}
func sharedBasename(ref *models.PodcastEpisodeRef, meta *models.PodcastMetadata) string {
	podcastSlug := ref.Slug
	if podcastSlug == "" {
		podcastSlug = slug.Make(meta.PodcastName)
	}
	episodeSlug := slug.Make(meta.EpisodeTitle)
	if len(episodeSlug) > 60 {
		episodeSlug = strings.Trim(episodeSlug[:60], "-")
	}
	if episodeSlug == "" {
		episodeSlug = fmt.Sprintf("episode-%d", ref.EpisodeID)
	}
	return podcastSlug + "-" + episodeSlug
}

// audioExtension infers the audio extension from the URL or temp path
func audioExtension(audioURL string) string {
	cleaned := audioURL
	if u, err := url.Parse(audioURL); err == nil && u.Path != "" {
		cleaned = u.Path
	}
	ext := strings.ToLower(filepath.Ext(cleaned))
	switch ext {
	case ".mp3", ".m4a", ".aac", ".ogg", ".wav":
		return ext
	}
	return ".mp3"
}

// moveFile renames, falling back to copy+delete across filesystems
func moveFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
