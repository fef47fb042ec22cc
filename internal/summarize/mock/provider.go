// Package mock provides a models.Summarizer double for tests and local
// development.
package mock

import (
	"context"
	"fmt"

	"github.com/avoss/meetscribe/pkg/models"
)

// Provider satisfies models.Summarizer for testing.
type Provider struct {
	Name_         string
	SummarizeFunc func(ctx context.Context, protocol []models.Segment, llmModel string) (string, error)
}

func (m *Provider) Name() string { return m.Name_ }

func (m *Provider) Summarize(ctx context.Context, protocol []models.Segment, llmModel string) (string, error) {
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, protocol, llmModel)
	}
	return "", nil
}

// NewProvider returns a Provider with a sensible default response.
func NewProvider() *Provider {
	return &Provider{
		Name_: "mock",
		SummarizeFunc: func(_ context.Context, protocol []models.Segment, _ string) (string, error) {
			return fmt.Sprintf("Mock summary of %d segments", len(protocol)), nil
		},
	}
}

// NewFailingProvider returns a Provider that always returns the given error.
func NewFailingProvider(err error) *Provider {
	return &Provider{
		Name_: "mock-failing",
		SummarizeFunc: func(_ context.Context, _ []models.Segment, _ string) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a Provider that blocks until context is cancelled.
func NewTimeoutProvider() *Provider {
	return &Provider{
		Name_: "mock-timeout",
		SummarizeFunc: func(ctx context.Context, _ []models.Segment, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
}

var _ models.Summarizer = (*Provider)(nil)
