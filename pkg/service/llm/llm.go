// Package llm adapts LLM provider SDKs to interfaces.CompletionClient.
package llm

import (
	"errors"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
)

// errConsumerStopped aborts a provider callback after the consumer broke out of the loop
var errConsumerStopped = errors.New("stream consumer stopped")

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = goerr.New("empty response from LLM")

// once makes seq single-use. A second iteration yields interfaces.ErrStreamConsumed.
func once(seq iter.Seq2[string, error]) iter.Seq2[string, error] {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", interfaces.ErrStreamConsumed)
			return
		}
		seq(yield)
	}
}

// callbackStream bridges a provider API that pushes chunks into a callback.
// call must invoke emit synchronously and return emit's error.
func callbackStream(call func(emit func(chunk string) error) error, msg string) iter.Seq2[string, error] {
	return once(func(yield func(string, error) bool) {
		stopped := false
		err := call(func(chunk string) error {
			if stopped {
				return errConsumerStopped
			}
			if chunk == "" {
				return nil
			}
			if !yield(chunk, nil) {
				stopped = true
				return errConsumerStopped
			}
			return nil
		})
		if stopped {
			return
		}
		if err != nil {
			yield("", goerr.Wrap(err, msg))
		}
	})
}

// splitSystem separates system turns from the conversation
func splitSystem(turns []model.Turn) (string, []model.Turn) {
	var system []string
	var rest []model.Turn
	for _, t := range turns {
		if t.Role == types.RoleSystem {
			system = append(system, t.Content)
			continue
		}
		rest = append(rest, t)
	}
	return strings.Join(system, "\n\n"), rest
}

// imageMarker stands in for an image the provider cannot receive
const imageMarker = "[The user attached an image that you cannot see.]"

// transcript renders conversation turns as plain text for providers that take a single input
func transcript(turns []model.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch t.Role {
		case types.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(t.Content)
		if !t.Image.IsEmpty() {
			if t.Content != "" {
				b.WriteString(" ")
			}
			b.WriteString(imageMarker)
		}
	}
	return b.String()
}
