package summarize

import "errors"

var (
	ErrProviderUnavailable = errors.New("summarization provider unavailable")
	ErrTimeout             = errors.New("summarization timeout")
	ErrInvalidResponse     = errors.New("summarization provider returned invalid response")
	ErrEmptyProtocol       = errors.New("nothing to summarize")
)
