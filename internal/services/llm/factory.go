package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/recondo/internal/common"
	"github.com/ternarybob/recondo/internal/interfaces"
)

// NewTextService builds the configured text completion provider. Vision
// always goes through the Ollama-compatible endpoint regardless of the text
// provider choice.
func NewTextService(config *common.LLMConfig, logger arbor.ILogger) (interfaces.LLMService, error) {
	switch config.Provider {
	case "", "ollama":
		return NewOllamaService(config.VisionHost, config.TextModel, config.VisionModel, logger), nil
	case "claude":
		return NewClaudeService(&config.Claude, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", config.Provider)
	}
}

// NewVisionService builds the vision scoring provider
func NewVisionService(config *common.LLMConfig, logger arbor.ILogger) interfaces.VisionService {
	return NewOllamaService(config.VisionHost, config.TextModel, config.VisionModel, logger)
}
