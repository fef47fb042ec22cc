package summarize

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/avoss/meetscribe/pkg/models"
)

// Service wraps the configured provider with a timeout and error
// classification. Handlers depend on this type, not on a provider directly.
type Service struct {
	provider models.Summarizer
	timeout  time.Duration
}

// NewService creates a summarization service.
func NewService(provider models.Summarizer, timeout time.Duration) *Service {
	return &Service{provider: provider, timeout: timeout}
}

// Name returns the underlying provider identifier.
func (s *Service) Name() string {
	return s.provider.Name()
}

// Summarize calls the provider with a bounded context. Connection failures
// and deadline overruns surface as the package sentinels so the API layer
// can map them to distinct responses.
func (s *Service) Summarize(ctx context.Context, protocol []models.Segment, llmModel string) (string, error) {
	if len(protocol) == 0 {
		return "", ErrEmptyProtocol
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary, err := s.provider.Summarize(ctx, protocol, llmModel)
	if err != nil {
		return "", classifyError(err)
	}
	if summary == "" {
		return "", ErrInvalidResponse
	}
	return summary, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return err
}
