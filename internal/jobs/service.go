// Package jobs owns the asynchronous job lifecycle: submission, the runner
// state machine, and the summary read-modify-write on completed jobs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avoss/meetscribe/internal/cache"
	"github.com/avoss/meetscribe/internal/pipeline"
	"github.com/avoss/meetscribe/internal/store"
	"github.com/avoss/meetscribe/internal/summarize"
	"github.com/avoss/meetscribe/pkg/models"
)

const statusCacheTTL = 30 * time.Minute

// NotCompletedError reports an operation attempted on a job that has not
// reached the completed state. The API layer maps it to a conflict response
// echoing the job's current status.
type NotCompletedError struct {
	Status string
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("job is %s, not completed", e.Status)
}

// Service orchestrates job submission, background processing, and reads of
// job state. One runner goroutine per job is the sole writer of that job's
// status until a terminal state; the per-job summary lock serializes the one
// post-completion mutation.
type Service struct {
	store      store.Store
	cache      cache.Cache
	pipe       pipeline.Pipeline
	summarizer *summarize.Service

	uploadDir string
	timeout   time.Duration
	sem       chan struct{}
	locks     keyedMutex
}

// NewService creates a job service. maxConcurrent bounds the number of
// pipeline invocations running at once; submissions beyond the bound queue
// behind the semaphore without blocking Submit.
func NewService(st store.Store, ca cache.Cache, pipe pipeline.Pipeline, summarizer *summarize.Service, uploadDir string, pipelineTimeout time.Duration, maxConcurrent int) (*Service, error) {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Service{
		store:      st,
		cache:      ca,
		pipe:       pipe,
		summarizer: summarizer,
		uploadDir:  uploadDir,
		timeout:    pipelineTimeout,
		sem:        make(chan struct{}, maxConcurrent),
	}, nil
}

// Submit stores the upload, allocates a fresh job ID, persists the initial
// status, and dispatches a runner goroutine. It returns as soon as dispatch
// is initiated; the runner owns the stored file from that point on.
func (s *Service) Submit(ctx context.Context, file io.Reader, filename string, opts pipeline.Options) (string, error) {
	jobID := uuid.New().String()

	audioPath := filepath.Join(s.uploadDir, jobID+"_"+sanitizeFilename(filename))
	if err := saveUpload(audioPath, file); err != nil {
		return "", err
	}

	rec := &models.JobStatus{
		JobID:     jobID,
		Status:    models.JobStatusProcessing,
		Message:   "Audio file received, starting processing",
		Progress:  0,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.PutStatus(ctx, jobID, rec); err != nil {
		os.Remove(audioPath)
		return "", fmt.Errorf("persist initial status: %w", err)
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusProcessing, statusCacheTTL)

	go s.process(jobID, audioPath, opts)

	return jobID, nil
}

// process is the runner state machine. It recovers from panics, always
// attempts a terminal state, and always releases the uploaded audio file.
// A failed status write aborts the run before the pipeline is invoked.
func (s *Service) process(jobID, audioPath string, opts pipeline.Options) {
	ctx := context.Background()

	// Registered first so the upload is released even if a status write
	// below panics.
	defer func() {
		if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
			slog.Error("failed to remove audio file", "job_id", jobID, "error", err)
		}
	}()

	// Last progress value successfully written; carried onto a failed record.
	progress := 0

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job runner", "job_id", jobID, "error", r)
			s.setFailed(ctx, jobID, fmt.Sprintf("internal error: %v", r), progress)
		}
	}()

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	slog.Info("job processing started", "job_id", jobID)
	if err := s.setStatus(ctx, jobID, "Processing started", 5); err != nil {
		s.setFailed(ctx, jobID, fmt.Sprintf("Error: %v", err), progress)
		return
	}
	progress = 5
	if err := s.setStatus(ctx, jobID, "Running processing pipeline", 30); err != nil {
		s.setFailed(ctx, jobID, fmt.Sprintf("Error: %v", err), progress)
		return
	}
	progress = 30

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	protocol, err := s.pipe.Run(runCtx, audioPath, opts)
	if err != nil {
		msg := fmt.Sprintf("Error: %v", err)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("Error: pipeline timed out after %s", s.timeout)
		}
		slog.Error("pipeline failed", "job_id", jobID, "error", err)
		s.setFailed(ctx, jobID, msg, progress)
		return
	}

	if err := s.setStatus(ctx, jobID, "Finalizing results", 90); err != nil {
		s.setFailed(ctx, jobID, fmt.Sprintf("Error: %v", err), progress)
		return
	}
	progress = 90

	result := &models.JobResult{
		JobID:       jobID,
		Status:      models.JobStatusCompleted,
		Protocol:    protocol,
		CompletedAt: time.Now().UTC(),
	}
	if err := s.store.PutResult(ctx, jobID, result); err != nil {
		slog.Error("storing result failed", "job_id", jobID, "error", err)
		s.setFailed(ctx, jobID, fmt.Sprintf("Error: storing results: %v", err), progress)
		return
	}

	if err := s.store.PutStatus(ctx, jobID, &models.JobStatus{
		JobID:     jobID,
		Status:    models.JobStatusCompleted,
		Message:   "Processing finished successfully",
		Progress:  100,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		slog.Error("writing completed status failed", "job_id", jobID, "error", err)
		s.setFailed(ctx, jobID, fmt.Sprintf("Error: %v", err), progress)
		return
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, statusCacheTTL)

	slog.Info("job processing completed", "job_id", jobID)
}

func (s *Service) setStatus(ctx context.Context, jobID, message string, progress int) error {
	err := s.store.PutStatus(ctx, jobID, &models.JobStatus{
		JobID:     jobID,
		Status:    models.JobStatusProcessing,
		Message:   message,
		Progress:  progress,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("status write failed", "job_id", jobID, "error", err)
		return fmt.Errorf("updating job status: %w", err)
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusProcessing, statusCacheTTL)
	return nil
}

// setFailed records the terminal failed status, keeping the last progress
// value that was successfully written. No result record is written for a
// failed job. Best effort: if the write itself fails there is nothing left
// to do but log.
func (s *Service) setFailed(ctx context.Context, jobID, message string, progress int) {
	err := s.store.PutStatus(ctx, jobID, &models.JobStatus{
		JobID:     jobID,
		Status:    models.JobStatusFailed,
		Message:   message,
		Progress:  progress,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("failed-status write failed", "job_id", jobID, "error", err)
	}
	_ = s.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, statusCacheTTL)
}

// Status returns the status record for a job, or store.ErrNotFound.
func (s *Service) Status(ctx context.Context, jobID string) (*models.JobStatus, error) {
	return s.store.GetStatus(ctx, jobID)
}

// Results returns the result record for a completed job. It returns
// store.ErrNotFound for unknown jobs and *NotCompletedError while the job
// has not completed.
func (s *Service) Results(ctx context.Context, jobID string) (*models.JobResult, error) {
	if err := s.ensureCompleted(ctx, jobID); err != nil {
		return nil, err
	}
	return s.store.GetResult(ctx, jobID)
}

// ensureCompleted verifies the job exists and has reached the completed
// state. A cached completed status short-circuits the store read; completed
// is terminal, so a cache hit on it is never stale.
func (s *Service) ensureCompleted(ctx context.Context, jobID string) error {
	if status, ok, err := s.cache.GetJobStatus(ctx, jobID); err == nil && ok && status == models.JobStatusCompleted {
		return nil
	}
	rec, err := s.store.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if rec.Status != models.JobStatusCompleted {
		return &NotCompletedError{Status: rec.Status}
	}
	return nil
}

// Summarize produces a summary for a completed job and attaches it to the
// stored result record. The read-modify-write runs under a per-job lock so
// two concurrent calls cannot interleave; the last writer's summary wins.
func (s *Service) Summarize(ctx context.Context, jobID, llmModel string) (string, error) {
	if err := s.ensureCompleted(ctx, jobID); err != nil {
		return "", err
	}

	mu := s.locks.get(jobID)
	mu.Lock()
	defer mu.Unlock()

	result, err := s.store.GetResult(ctx, jobID)
	if err != nil {
		return "", err
	}

	summary, err := s.summarizer.Summarize(ctx, result.Protocol, llmModel)
	if err != nil {
		return "", err
	}

	result.Summary = &summary
	if err := s.store.PutResult(ctx, jobID, result); err != nil {
		return "", fmt.Errorf("storing summary: %w", err)
	}

	return summary, nil
}

func saveUpload(path string, file io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("write upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close upload file: %w", err)
	}
	return nil
}

// sanitizeFilename keeps only the base name and replaces characters that
// have no business in a path component.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
