package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avoss/meetscribe/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5. Each Put is a
// single-statement upsert, so record writes are transactional by
// construction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) PutStatus(ctx context.Context, id string, rec *models.JobStatus) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_status (job_id, status, message, progress, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (job_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   message = EXCLUDED.message,
		   progress = EXCLUDED.progress,
		   updated_at = EXCLUDED.updated_at`,
		id, rec.Status, rec.Message, rec.Progress, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put job status: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetStatus(ctx context.Context, id string) (*models.JobStatus, error) {
	var rec models.JobStatus
	err := s.pool.QueryRow(ctx,
		`SELECT job_id, status, message, progress, updated_at
		 FROM job_status WHERE job_id = $1`, id,
	).Scan(&rec.JobID, &rec.Status, &rec.Message, &rec.Progress, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job status: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) PutResult(ctx context.Context, id string, rec *models.JobResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_results (job_id, status, protocol, summary, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (job_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   protocol = EXCLUDED.protocol,
		   summary = EXCLUDED.summary,
		   completed_at = EXCLUDED.completed_at`,
		id, rec.Status, rec.Protocol, rec.Summary, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("put job result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResult(ctx context.Context, id string) (*models.JobResult, error) {
	var rec models.JobResult
	err := s.pool.QueryRow(ctx,
		`SELECT job_id, status, protocol, summary, completed_at
		 FROM job_results WHERE job_id = $1`, id,
	).Scan(&rec.JobID, &rec.Status, &rec.Protocol, &rec.Summary, &rec.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job result: %w", err)
	}
	return &rec, nil
}

var _ Store = (*PostgresStore)(nil)
