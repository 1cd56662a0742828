package embedding

import "context"

// Provider turns text into a vector for semantic message search.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}
