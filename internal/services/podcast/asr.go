package podcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/models"
)

// asrClient submits audio to the speech recognition service. The HTTP client
// must come from httpclient.NewASRHTTPClient: transcription holds the
// response open for as long as the episode takes to process, far beyond any
// default client timeout.
type asrClient struct {
	host       string
	httpClient *http.Client
	logger     arbor.ILogger
}

func newASRClient(host string, httpClient *http.Client, logger arbor.ILogger) *asrClient {
	return &asrClient{
		host:       host,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Transcribe uploads the audio file and parses the service's response, which
// may be JSON with a text field or plain text (possibly SRT).
func (c *asrClient) Transcribe(ctx context.Context, audioPath string) (*models.Transcript, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio_file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio into form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/asr?output=txt", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build asr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.Info().
		Str("audio", filepath.Base(audioPath)).
		Int("bytes", len(audio)).
		Msg("Submitting audio for transcription")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asr request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asr service returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	return parseTranscript(raw), nil
}

// parseTranscript accepts JSON `{"text": ...}` responses, raw SRT, or plain
// text, normalizing all three into a Transcript.
func parseTranscript(raw []byte) *models.Transcript {
	var jsonResp struct {
		Text     string `json:"text"`
		Language string `json:"language"`
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(raw, &jsonResp); err == nil && jsonResp.Text != "" {
		transcript := &models.Transcript{
			Text:     normalizeTranscriptText(jsonResp.Text),
			Language: jsonResp.Language,
		}
		for _, seg := range jsonResp.Segments {
			transcript.Segments = append(transcript.Segments, models.TranscriptSegment{
				Start: seg.Start,
				End:   seg.End,
				Text:  strings.TrimSpace(seg.Text),
			})
		}
		return transcript
	}

	return &models.Transcript{Text: normalizeTranscriptText(string(raw))}
}

func normalizeTranscriptText(text string) string {
	if IsSRT(text) {
		return CleanSRT(text)
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
