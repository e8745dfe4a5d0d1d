package cli

import (
	"context"
	"io"

	"github.com/secmon-lab/companion/pkg/usecase"
)

// Console is exported for testing
type Console = console

// NewConsoleForTest creates a console reading in and writing out
func NewConsoleForTest(uc *usecase.UseCases, in io.Reader, out io.Writer) *Console {
	return newConsole(uc, in, out)
}

// LoadEnvFile is exported for testing
var LoadEnvFile = loadEnvFile

// Navigate is exported for testing
func (c *console) Navigate(ctx context.Context, pageID string) error {
	return c.navigate(ctx, pageID)
}

// GetIndexConfig is exported for testing
var GetIndexConfig = getIndexConfig
