package services

import (
	"context"

	"github.com/soriai/sori/internal/providers/llm"
)

const summaryInstructions = "You are a summarization assistant.\n" +
	"Summarize the following chat history between a user and an assistant.\n" +
	"Return only the summary, written in the dominant language of the conversation.\n" +
	"Make it about 30 sentences, capturing important facts, requests, and decisions."

// HistorySummarizer drains a session's history transcript into one
// bounded synopsis via the generation backend.
type HistorySummarizer struct {
	llm   llm.Provider
	model string
}

func NewHistorySummarizer(p llm.Provider, model string) *HistorySummarizer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &HistorySummarizer{llm: p, model: model}
}

func (s *HistorySummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	res, err := s.llm.Generate(ctx, llm.Request{
		Model:        s.model,
		Instructions: summaryInstructions,
		Input:        transcript,
	})
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
