package gcs

import (
	"context"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/utils/logging"
	"github.com/secmon-lab/companion/pkg/utils/safe"
)

const objectPrefix = "images"

// objectWriter opens a writer for a new object with the given content type
type objectWriter func(ctx context.Context, object, contentType string) io.WriteCloser

// Archive stores uploaded images in a Cloud Storage bucket
type Archive struct {
	bucket string
	client *storage.Client
	open   objectWriter
}

var _ interfaces.ImageArchive = &Archive{}

// New creates an Archive for bucket using application default credentials
func New(ctx context.Context, bucket string) (*Archive, error) {
	if bucket == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	a := &Archive{bucket: bucket, client: client}
	a.open = func(ctx context.Context, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}
	return a, nil
}

// ObjectName returns the object path of an archived image
func ObjectName(owner string, characterID types.CharacterID, messageID model.MessageID) string {
	return path.Join(objectPrefix, owner, characterID.String(), messageID.String())
}

// PutImage implements interfaces.ImageArchive
func (a *Archive) PutImage(ctx context.Context, owner string, characterID types.CharacterID, messageID model.MessageID, image *model.Image) error {
	if image.IsEmpty() {
		return nil
	}

	object := ObjectName(owner, characterID, messageID)
	w := a.open(ctx, object, image.MIMEType)
	if _, err := w.Write(image.Data); err != nil {
		safe.Close(ctx, w)
		return goerr.Wrap(err, "failed to write image", goerr.V("bucket", a.bucket), goerr.V("object", object))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize image", goerr.V("bucket", a.bucket), goerr.V("object", object))
	}

	logging.From(ctx).Debug("image archived",
		"bucket", a.bucket,
		"object", object,
		"bytes", len(image.Data))
	return nil
}

// Close releases the storage client
func (a *Archive) Close() error {
	if a.client == nil {
		return nil
	}
	if err := a.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage client")
	}
	return nil
}
