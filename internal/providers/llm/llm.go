package llm

import "context"

type Request struct {
	Model        string
	Instructions string
	Input        string

	// VectorStoreID enables the retrieval tool for bots with an
	// external file index; empty means no tools.
	VectorStoreID string
}

type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

type Provider interface {
	Generate(ctx context.Context, req Request) (Result, error)
	Close() error
}
