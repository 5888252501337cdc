package llm

import (
	"context"
	"time"
)

// ContentResponse contains the generated text and call metadata.
type ContentResponse struct {
	Content  string
	Model    string
	Attempts int
	Latency  time.Duration
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
