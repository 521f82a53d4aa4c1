package interfaces

import "context"

// Message is one chat turn sent to an LLM provider
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  [][]byte `json:"images,omitempty"`
}

// ChatOptions tune a single completion call
type ChatOptions struct {
	Temperature float64
	NumPredict  int
}

// LLMService is a text completion provider
type LLMService interface {
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (string, error)
	GetProvider() string
}

// VisionService scores images through a vision-capable model
type VisionService interface {
	ChatWithImages(ctx context.Context, prompt string, images [][]byte) (string, error)
}
