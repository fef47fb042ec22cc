// Package handler contains the HTTP handlers for the job API.
package handler

import (
	"context"
	"io"

	"github.com/avoss/meetscribe/internal/pipeline"
	"github.com/avoss/meetscribe/pkg/models"
)

// JobService is the orchestration interface the handlers depend on.
type JobService interface {
	Submit(ctx context.Context, file io.Reader, filename string, opts pipeline.Options) (string, error)
	Status(ctx context.Context, jobID string) (*models.JobStatus, error)
	Results(ctx context.Context, jobID string) (*models.JobResult, error)
	Summarize(ctx context.Context, jobID, llmModel string) (string, error)
}
