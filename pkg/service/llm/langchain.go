package llm

import (
	"context"
	"iter"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// contentGenerator is the part of llms.Model the adapter uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LangChain is a CompletionClient for OpenAI-compatible chat endpoints through langchaingo
type LangChain struct {
	llm contentGenerator
}

var _ interfaces.CompletionClient = &LangChain{}

// NewOpenAI creates a LangChain adapter for an OpenAI-compatible endpoint. baseURL may be empty for api.openai.com.
func NewOpenAI(baseURL, token, modelName string) (*LangChain, error) {
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(modelName),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create OpenAI client", goerr.V("base_url", baseURL), goerr.V("model", modelName))
	}
	return &LangChain{llm: llm}, nil
}

func toMessageContents(turns []model.Turn) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(turns))
	for _, t := range turns {
		var role llms.ChatMessageType
		switch t.Role {
		case types.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case types.RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}

		parts := []llms.ContentPart{llms.TextPart(t.Content)}
		if !t.Image.IsEmpty() {
			parts = append(parts, llms.BinaryPart(t.Image.MIMEType, t.Image.Data))
		}
		msgs = append(msgs, llms.MessageContent{Role: role, Parts: parts})
	}
	return msgs
}

// Stream implements interfaces.CompletionClient
func (l *LangChain) Stream(ctx context.Context, turns []model.Turn, opts model.StreamOptions) iter.Seq2[string, error] {
	msgs := toMessageContents(turns)
	return callbackStream(func(emit func(string) error) error {
		_, err := l.llm.GenerateContent(ctx, msgs,
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				return emit(string(chunk))
			}),
		)
		return err
	}, "langchain stream failed")
}

// Complete implements interfaces.CompletionClient
func (l *LangChain) Complete(ctx context.Context, turns []model.Turn) (string, error) {
	resp, err := l.llm.GenerateContent(ctx, toMessageContents(turns))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}
	if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", goerr.Wrap(ErrEmptyResponse, "langchain returned no choices")
	}
	return resp.Choices[0].Content, nil
}
