package gcs

import (
	"context"
	"io"
)

// WriterFunc opens an object writer in tests
type WriterFunc func(ctx context.Context, object, contentType string) io.WriteCloser

// NewArchiveForTest creates an Archive that writes through open
func NewArchiveForTest(bucket string, open WriterFunc) *Archive {
	return &Archive{bucket: bucket, open: objectWriter(open)}
}
