package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/common"
	"github.com/ternarybob/recondo/internal/interfaces"
)

// ClaudeService implements text completions against the Anthropic API. Used
// as an alternate transcript reformatting provider.
type ClaudeService struct {
	client    anthropic.Client
	model     string
	maxTokens int
	logger    arbor.ILogger
}

// Compile-time assertion
var _ interfaces.LLMService = (*ClaudeService)(nil)

// NewClaudeService creates a Claude text provider
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required (set ANTHROPIC_API_KEY or llm.claude.api_key)")
	}

	model := config.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(option.WithAPIKey(config.APIKey))

	return &ClaudeService{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

// GetProvider returns the provider name
func (s *ClaudeService) GetProvider() string {
	return "claude"
}

// Chat sends a text completion request. System messages map to the System
// parameter; image content is not supported on this provider.
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message, opts *interfaces.ChatOptions) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty")
	}

	var system string
	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if system == "" {
				system = msg.Content
			}
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}
	if len(claudeMessages) == 0 {
		return "", fmt.Errorf("at least one non-system message is required")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts != nil && opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude request failed: %w", err)
	}

	var out string
	for _, block := range resp.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}
