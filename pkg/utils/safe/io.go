package safe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/utils/logging"
)

// Close closes closer and logs the error. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Warn("failed to close", logging.ErrAttr(err))
	}
}

// Write writes data to w and logs the error. A nil writer is ignored.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Warn("failed to write", logging.ErrAttr(err))
	}
}

// Copy copies src into dst and logs the error.
func Copy(ctx context.Context, dst io.Writer, src io.Reader) {
	if _, err := io.Copy(dst, src); err != nil {
		logging.From(ctx).Warn("failed to copy", logging.ErrAttr(err))
	}
}

// WriteJSON writes v as a JSON response with the given status code. The
// header is already sent when encoding fails, so the error is only logged.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Warn("failed to encode JSON response",
			logging.ErrAttr(goerr.Wrap(err, "failed to encode response", goerr.V("status", status))))
	}
}
