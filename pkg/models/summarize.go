package models

import "context"

// Summarizer condenses a finished transcript into a short plain-language
// meeting summary. Never call a concrete provider directly — always inject
// this interface.
type Summarizer interface {
	// Summarize produces a summary of the given protocol. llmModel may be
	// empty, in which case the provider falls back to its configured model.
	Summarize(ctx context.Context, protocol []Segment, llmModel string) (string, error)
	// Name returns the provider identifier (e.g., "openai", "huggingface").
	Name() string
}
