package config

import (
	"context"
	"log/slog"

	"github.com/secmon-lab/companion/pkg/service/gcs"
	"github.com/urfave/cli/v3"
)

// Attachment holds CLI flags for archiving uploaded images
type Attachment struct {
	bucket string
}

// Flags returns CLI flags for attachment configuration
func (a *Attachment) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "attachment-bucket",
			Usage:       "Cloud Storage bucket that archives uploaded images (disabled when empty)",
			Category:    "Attachment",
			Sources:     cli.EnvVars("COMPANION_ATTACHMENT_BUCKET"),
			Destination: &a.bucket,
		},
	}
}

// LogAttrs returns log attributes for the attachment configuration
func (a *Attachment) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("bucket", a.bucket)}
}

// Configure creates the image archive. Returns nil if no bucket is configured.
func (a *Attachment) Configure(ctx context.Context) (*gcs.Archive, error) {
	if a.bucket == "" {
		return nil, nil
	}
	return gcs.New(ctx, a.bucket)
}
