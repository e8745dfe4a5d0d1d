package llm

import (
	"context"

	"github.com/ollama/ollama/api"
	"github.com/tmc/langchaingo/llms"
)

// Transcript is exported for testing
var Transcript = transcript

// ImageMarker is exported for testing
const ImageMarker = imageMarker

// ContentGeneratorFunc adapts a function to the langchaingo surface used by LangChain
type ContentGeneratorFunc func(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)

func (f ContentGeneratorFunc) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return f(ctx, messages, options...)
}

// NewLangChainForTest creates a LangChain adapter over gen
func NewLangChainForTest(gen ContentGeneratorFunc) *LangChain {
	return &LangChain{llm: gen}
}

// ChatFunc adapts a function to the Ollama client surface used by Ollama
type ChatFunc func(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error

func (f ChatFunc) Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	return f(ctx, req, fn)
}

// NewOllamaForTest creates an Ollama adapter over chat
func NewOllamaForTest(chat ChatFunc, modelName string) *Ollama {
	return &Ollama{client: chat, model: modelName}
}
