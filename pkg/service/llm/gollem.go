package llm

import (
	"context"
	"iter"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/utils/logging"
)

// Gollem is a CompletionClient backed by a gollem LLMClient (Gemini on Vertex AI by default).
// Images are not forwarded; the transcript notes them instead.
type Gollem struct {
	client gollem.LLMClient
}

var _ interfaces.CompletionClient = &Gollem{}

// NewGollem wraps client
func NewGollem(client gollem.LLMClient) *Gollem {
	return &Gollem{client: client}
}

// newSession starts a fresh session carrying the system turns and returns the single text input
func (g *Gollem) newSession(ctx context.Context, turns []model.Turn) (gollem.Session, gollem.Input, error) {
	system, rest := splitSystem(turns)

	var opts []gollem.SessionOption
	input := transcript(rest)
	if input == "" {
		// a system-only request is sent as the user input
		input = system
	} else if system != "" {
		opts = append(opts, gollem.WithSessionSystemPrompt(system))
	}

	session, err := g.client.NewSession(ctx, opts...)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create LLM session")
	}
	return session, gollem.Text(input), nil
}

// Stream implements interfaces.CompletionClient
func (g *Gollem) Stream(ctx context.Context, turns []model.Turn, opts model.StreamOptions) iter.Seq2[string, error] {
	return once(func(yield func(string, error) bool) {
		if opts.HasImage {
			logging.From(ctx).Debug("image is not forwarded to gollem provider")
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		session, input, err := g.newSession(ctx, turns)
		if err != nil {
			yield("", err)
			return
		}

		ch, err := session.Stream(ctx, []gollem.Input{input})
		if err != nil {
			yield("", goerr.Wrap(err, "failed to start stream"))
			return
		}

		for resp := range ch {
			if resp == nil {
				continue
			}
			if resp.Error != nil {
				yield("", goerr.Wrap(resp.Error, "stream failed"))
				return
			}
			for _, text := range resp.Texts {
				if text == "" {
					continue
				}
				if !yield(text, nil) {
					return
				}
			}
		}
	})
}

// Complete implements interfaces.CompletionClient
func (g *Gollem) Complete(ctx context.Context, turns []model.Turn) (string, error) {
	session, input, err := g.newSession(ctx, turns)
	if err != nil {
		return "", err
	}

	resp, err := session.Generate(ctx, []gollem.Input{input})
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content")
	}

	text := strings.Join(resp.Texts, "")
	if strings.TrimSpace(text) == "" {
		return "", goerr.Wrap(ErrEmptyResponse, "gollem returned no text")
	}
	return text, nil
}
