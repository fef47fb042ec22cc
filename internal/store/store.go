package store

import (
	"context"
	"errors"

	"github.com/avoss/meetscribe/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the durable mapping from job ID to its status and result records.
// All writes must be atomic: a concurrent reader never observes a partial
// record. Reads after a successful write observe that write.
type Store interface {
	Ping(ctx context.Context) error

	PutStatus(ctx context.Context, id string, rec *models.JobStatus) error
	GetStatus(ctx context.Context, id string) (*models.JobStatus, error)

	PutResult(ctx context.Context, id string, rec *models.JobResult) error
	GetResult(ctx context.Context, id string) (*models.JobResult, error)
}
