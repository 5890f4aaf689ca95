package ports

import (
	"context"

	"github.com/mikey/phish-scorer/internal/core"
)

// MessageFilter defines the interface for the inbound message filters
type MessageFilter interface {
	// ProcessMessage analyzes a message and returns the full analysis
	ProcessMessage(ctx context.Context, msg *core.Message) (*core.Analysis, error)

	// Start starts the filter service
	Start() error

	// Stop stops the filter service
	Stop() error
}
