package llm

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ollama/ollama/api"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
)

// chatter is the part of *api.Client the adapter uses
type chatter interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// Ollama is a CompletionClient for a local Ollama server
type Ollama struct {
	client chatter
	model  string
}

var _ interfaces.CompletionClient = &Ollama{}

// NewOllama connects to the Ollama server at rawURL
func NewOllama(rawURL, modelName string) (*Ollama, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid Ollama URL", goerr.V("url", rawURL))
	}
	return &Ollama{
		client: api.NewClient(u, http.DefaultClient),
		model:  modelName,
	}, nil
}

func (o *Ollama) request(turns []model.Turn, stream bool) *api.ChatRequest {
	msgs := make([]api.Message, 0, len(turns))
	for _, t := range turns {
		msg := api.Message{Role: t.Role.String(), Content: t.Content}
		if !t.Image.IsEmpty() {
			msg.Images = []api.ImageData{t.Image.Data}
		}
		msgs = append(msgs, msg)
	}
	return &api.ChatRequest{
		Model:    o.model,
		Messages: msgs,
		Stream:   &stream,
	}
}

// Stream implements interfaces.CompletionClient
func (o *Ollama) Stream(ctx context.Context, turns []model.Turn, opts model.StreamOptions) iter.Seq2[string, error] {
	req := o.request(turns, true)
	return callbackStream(func(emit func(string) error) error {
		return o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			return emit(resp.Message.Content)
		})
	}, "ollama stream failed")
}

// Complete implements interfaces.CompletionClient
func (o *Ollama) Complete(ctx context.Context, turns []model.Turn) (string, error) {
	var b strings.Builder
	err := o.client.Chat(ctx, o.request(turns, false), func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to chat", goerr.V("model", o.model))
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", goerr.Wrap(ErrEmptyResponse, "ollama returned no text", goerr.V("model", o.model))
	}
	return b.String(), nil
}
