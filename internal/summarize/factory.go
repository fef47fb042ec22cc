// Package summarize selects and wraps the LLM provider that condenses a
// finished protocol into a meeting summary.
package summarize

import (
	"fmt"

	"github.com/avoss/meetscribe/internal/config"
	"github.com/avoss/meetscribe/internal/summarize/huggingface"
	"github.com/avoss/meetscribe/internal/summarize/mock"
	"github.com/avoss/meetscribe/internal/summarize/openai"
	"github.com/avoss/meetscribe/pkg/models"
)

// NewProvider constructs the configured summarization provider.
// Called once at server startup.
func NewProvider(cfg config.SummarizeConfig) (models.Summarizer, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "huggingface":
		return huggingface.NewProvider(cfg.HuggingFace), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown summarization provider %q: must be one of openai, huggingface, mock", cfg.Provider)
	}
}
