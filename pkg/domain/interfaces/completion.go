package interfaces

import (
	"context"
	"iter"

	"github.com/secmon-lab/companion/pkg/domain/model"
)

// CompletionClient generates assistant text from prompt turns
type CompletionClient interface {
	// Stream returns a lazy, finite sequence of text fragments. The sequence can
	// be iterated only once; a second iteration yields ErrStreamConsumed.
	Stream(ctx context.Context, turns []model.Turn, opts model.StreamOptions) iter.Seq2[string, error]

	// Complete returns the whole generated text in one call
	Complete(ctx context.Context, turns []model.Turn) (string, error)
}
