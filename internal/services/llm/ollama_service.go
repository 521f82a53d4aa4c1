package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/httpclient"
	"github.com/ternarybob/recondo/internal/interfaces"
)

// OllamaService talks to an Ollama-compatible chat endpoint. It serves both
// text completions and vision scoring; images travel base64-encoded on the
// message.
type OllamaService struct {
	host        string
	textModel   string
	visionModel string
	client      *http.Client
	logger      arbor.ILogger
}

// Compile-time assertions
var (
	_ interfaces.LLMService    = (*OllamaService)(nil)
	_ interfaces.VisionService = (*OllamaService)(nil)
)

// NewOllamaService creates an Ollama chat client
func NewOllamaService(host, textModel, visionModel string, logger arbor.ILogger) *OllamaService {
	return &OllamaService{
		host:        host,
		textModel:   textModel,
		visionModel: visionModel,
		client:      httpclient.NewDefaultHTTPClient(5 * time.Minute),
		logger:      logger,
	}
}

// GetProvider returns the provider name
func (s *OllamaService) GetProvider() string {
	return "ollama"
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error,omitempty"`
}

// Chat sends a text completion request
func (s *OllamaService) Chat(ctx context.Context, messages []interfaces.Message, opts *interfaces.ChatOptions) (string, error) {
	return s.chat(ctx, s.textModel, messages, opts)
}

// ChatWithImages sends a vision request against the vision model
func (s *OllamaService) ChatWithImages(ctx context.Context, prompt string, images [][]byte) (string, error) {
	messages := []interfaces.Message{{Role: "user", Content: prompt, Images: images}}
	return s.chat(ctx, s.visionModel, messages, nil)
}

func (s *OllamaService) chat(ctx context.Context, model string, messages []interfaces.Message, opts *interfaces.ChatOptions) (string, error) {
	reqMessages := make([]ollamaMessage, 0, len(messages))
	for _, msg := range messages {
		m := ollamaMessage{Role: msg.Role, Content: msg.Content}
		for _, img := range msg.Images {
			m.Images = append(m.Images, base64.StdEncoding.EncodeToString(img))
		}
		reqMessages = append(reqMessages, m)
	}

	reqBody := ollamaRequest{
		Model:    model,
		Messages: reqMessages,
		Stream:   false,
	}
	if opts != nil {
		reqBody.Options = map[string]interface{}{}
		if opts.Temperature > 0 {
			reqBody.Options["temperature"] = opts.Temperature
		}
		if opts.NumPredict > 0 {
			reqBody.Options["num_predict"] = opts.NumPredict
		}
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat endpoint returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("chat endpoint error: %s", parsed.Error)
	}

	return parsed.Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
