package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoss/meetscribe/internal/cache"
	"github.com/avoss/meetscribe/internal/jobs"
	"github.com/avoss/meetscribe/internal/pipeline"
	"github.com/avoss/meetscribe/internal/store"
	"github.com/avoss/meetscribe/internal/summarize"
	"github.com/avoss/meetscribe/internal/summarize/mock"
	"github.com/avoss/meetscribe/pkg/models"
)

var testProtocol = []models.Segment{
	{Speaker: "SPEAKER_00", StartTime: 0.5, EndTime: 4.2, Text: "Hallo, willkommen zum Meeting."},
	{Speaker: "SPEAKER_01", StartTime: 4.5, EndTime: 7.1, Text: "Hallo zusammen."},
}

// stubPipeline runs a configurable function in place of the real pipeline.
type stubPipeline struct {
	runFunc func(ctx context.Context, audioPath string, opts pipeline.Options) ([]models.Segment, error)
}

func (p *stubPipeline) Run(ctx context.Context, audioPath string, opts pipeline.Options) ([]models.Segment, error) {
	if p.runFunc != nil {
		return p.runFunc(ctx, audioPath, opts)
	}
	return testProtocol, nil
}

// recordingStore wraps a Store and records every status write.
type recordingStore struct {
	store.Store
	mu       sync.Mutex
	statuses []models.JobStatus
}

func (s *recordingStore) PutStatus(ctx context.Context, id string, rec *models.JobStatus) error {
	s.mu.Lock()
	s.statuses = append(s.statuses, *rec)
	s.mu.Unlock()
	return s.Store.PutStatus(ctx, id, rec)
}

func (s *recordingStore) recorded() []models.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.JobStatus, len(s.statuses))
	copy(out, s.statuses)
	return out
}

type serviceOpts struct {
	store         store.Store
	pipe          pipeline.Pipeline
	summarizer    *summarize.Service
	timeout       time.Duration
	maxConcurrent int
}

func newTestService(t *testing.T, o serviceOpts) (*jobs.Service, store.Store, string) {
	t.Helper()

	st := o.store
	if st == nil {
		fs, err := store.NewFileStore(t.TempDir())
		require.NoError(t, err)
		st = fs
	}
	pipe := o.pipe
	if pipe == nil {
		pipe = &stubPipeline{}
	}
	summarizer := o.summarizer
	if summarizer == nil {
		summarizer = summarize.NewService(mock.NewProvider(), time.Second)
	}
	timeout := o.timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	maxConcurrent := o.maxConcurrent
	if maxConcurrent == 0 {
		maxConcurrent = 2
	}

	uploadDir := t.TempDir()
	svc, err := jobs.NewService(st, cache.Nop{}, pipe, summarizer, uploadDir, timeout, maxConcurrent)
	require.NoError(t, err)
	return svc, st, uploadDir
}

func submit(t *testing.T, svc *jobs.Service) string {
	t.Helper()
	jobID, err := svc.Submit(context.Background(), strings.NewReader("audio-bytes"), "meeting.wav", pipeline.Options{})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	return jobID
}

func waitForStatus(t *testing.T, st store.Store, jobID, want string) *models.JobStatus {
	t.Helper()
	var rec *models.JobStatus
	require.Eventually(t, func() bool {
		got, err := st.GetStatus(context.Background(), jobID)
		if err != nil {
			return false
		}
		rec = got
		return got.Status == want
	}, 3*time.Second, 10*time.Millisecond)
	return rec
}

func uploadCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestSubmit_InitialStatusBeforeRunnerStarts(t *testing.T) {
	release := make(chan struct{})
	blocking := &stubPipeline{
		runFunc: func(_ context.Context, _ string, _ pipeline.Options) ([]models.Segment, error) {
			<-release
			return testProtocol, nil
		},
	}
	svc, st, _ := newTestService(t, serviceOpts{pipe: blocking, maxConcurrent: 1})
	defer close(release)

	// The first job occupies the single runner slot inside the pipeline.
	first := submit(t, svc)
	require.Eventually(t, func() bool {
		rec, err := st.GetStatus(context.Background(), first)
		return err == nil && rec.Progress >= 30
	}, 3*time.Second, 10*time.Millisecond)

	// The second runner is queued behind the semaphore and has written
	// nothing yet; its status is exactly the one Submit persisted.
	second := submit(t, svc)
	rec, err := st.GetStatus(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, rec.Status)
	assert.Equal(t, 0, rec.Progress)
	assert.Equal(t, second, rec.JobID)
	assert.NotEqual(t, first, second)
}

func TestJob_CompletesWithResult(t *testing.T) {
	svc, st, uploadDir := newTestService(t, serviceOpts{})

	jobID := submit(t, svc)
	rec := waitForStatus(t, st, jobID, models.JobStatusCompleted)
	assert.Equal(t, 100, rec.Progress)
	assert.Equal(t, "Processing finished successfully", rec.Message)

	result, err := st.GetResult(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, testProtocol, result.Protocol)
	assert.Nil(t, result.Summary)

	// The uploaded audio is released on the terminal path.
	require.Eventually(t, func() bool {
		return uploadCount(t, uploadDir) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestJob_PipelineFailure(t *testing.T) {
	failing := &stubPipeline{
		runFunc: func(_ context.Context, _ string, _ pipeline.Options) ([]models.Segment, error) {
			return nil, errors.New("diarization blew up")
		},
	}
	svc, st, uploadDir := newTestService(t, serviceOpts{pipe: failing})

	jobID := submit(t, svc)
	rec := waitForStatus(t, st, jobID, models.JobStatusFailed)
	assert.Contains(t, rec.Message, "diarization blew up")
	assert.Equal(t, 30, rec.Progress)

	// No result record for a failed job.
	_, err := st.GetResult(context.Background(), jobID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.Eventually(t, func() bool {
		return uploadCount(t, uploadDir) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestJob_PipelinePanic(t *testing.T) {
	panicking := &stubPipeline{
		runFunc: func(_ context.Context, _ string, _ pipeline.Options) ([]models.Segment, error) {
			panic("model loader lost its mind")
		},
	}
	svc, st, uploadDir := newTestService(t, serviceOpts{pipe: panicking})

	jobID := submit(t, svc)
	rec := waitForStatus(t, st, jobID, models.JobStatusFailed)
	assert.Contains(t, rec.Message, "model loader lost its mind")

	require.Eventually(t, func() bool {
		return uploadCount(t, uploadDir) == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestJob_PipelineTimeout(t *testing.T) {
	hanging := &stubPipeline{
		runFunc: func(ctx context.Context, _ string, _ pipeline.Options) ([]models.Segment, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc, st, _ := newTestService(t, serviceOpts{pipe: hanging, timeout: 50 * time.Millisecond})

	jobID := submit(t, svc)
	rec := waitForStatus(t, st, jobID, models.JobStatusFailed)
	assert.Contains(t, rec.Message, "timed out")
}

func TestJob_ProgressIsMonotonic(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	recording := &recordingStore{Store: fs}

	svc, _, _ := newTestService(t, serviceOpts{store: recording})

	jobID := submit(t, svc)
	waitForStatus(t, recording, jobID, models.JobStatusCompleted)

	statuses := recording.recorded()
	require.NotEmpty(t, statuses)
	last := -1
	for _, rec := range statuses {
		assert.GreaterOrEqual(t, rec.Progress, last, "progress went backwards: %+v", statuses)
		last = rec.Progress
	}
	assert.Equal(t, models.JobStatusCompleted, statuses[len(statuses)-1].Status)
	assert.Equal(t, 100, statuses[len(statuses)-1].Progress)
}

func TestStatus_UnknownJob(t *testing.T) {
	svc, _, _ := newTestService(t, serviceOpts{})

	_, err := svc.Status(context.Background(), "never-submitted")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResults_UnknownJob(t *testing.T) {
	svc, _, _ := newTestService(t, serviceOpts{})

	_, err := svc.Results(context.Background(), "never-submitted")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResults_ConflictWhileProcessing(t *testing.T) {
	release := make(chan struct{})
	blocking := &stubPipeline{
		runFunc: func(_ context.Context, _ string, _ pipeline.Options) ([]models.Segment, error) {
			<-release
			return testProtocol, nil
		},
	}
	svc, _, _ := newTestService(t, serviceOpts{pipe: blocking})
	defer close(release)

	jobID := submit(t, svc)

	_, err := svc.Results(context.Background(), jobID)
	var notCompleted *jobs.NotCompletedError
	require.ErrorAs(t, err, &notCompleted)
	assert.Equal(t, models.JobStatusProcessing, notCompleted.Status)
}

func TestResults_StableAcrossReads(t *testing.T) {
	svc, st, _ := newTestService(t, serviceOpts{})

	jobID := submit(t, svc)
	waitForStatus(t, st, jobID, models.JobStatusCompleted)

	first, err := svc.Results(context.Background(), jobID)
	require.NoError(t, err)
	second, err := svc.Results(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, first.Protocol, second.Protocol)
}

func TestSummarize_AttachesSummary(t *testing.T) {
	svc, st, _ := newTestService(t, serviceOpts{})

	jobID := submit(t, svc)
	waitForStatus(t, st, jobID, models.JobStatusCompleted)

	summary, err := svc.Summarize(context.Background(), jobID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, summary)

	result, err := st.GetResult(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, result.Summary)
	assert.Equal(t, summary, *result.Summary)
	assert.Equal(t, testProtocol, result.Protocol)
}

func TestSummarize_SecondCallOverwrites(t *testing.T) {
	var calls int
	var mu sync.Mutex
	provider := &mock.Provider{
		Name_: "mock",
		SummarizeFunc: func(_ context.Context, _ []models.Segment, _ string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			return fmt.Sprintf("summary %d", calls), nil
		},
	}
	svc, st, _ := newTestService(t, serviceOpts{
		summarizer: summarize.NewService(provider, time.Second),
	})

	jobID := submit(t, svc)
	waitForStatus(t, st, jobID, models.JobStatusCompleted)

	_, err := svc.Summarize(context.Background(), jobID, "")
	require.NoError(t, err)
	second, err := svc.Summarize(context.Background(), jobID, "")
	require.NoError(t, err)

	result, err := st.GetResult(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, result.Summary)
	assert.Equal(t, second, *result.Summary)
}

func TestSummarize_ConcurrentCallsDoNotCorrupt(t *testing.T) {
	svc, st, _ := newTestService(t, serviceOpts{})

	jobID := submit(t, svc)
	waitForStatus(t, st, jobID, models.JobStatusCompleted)

	var wg sync.WaitGroup
	summaries := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := svc.Summarize(context.Background(), jobID, "")
			assert.NoError(t, err)
			summaries[i] = s
		}(i)
	}
	wg.Wait()

	result, err := st.GetResult(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, result.Summary)
	assert.Contains(t, summaries, *result.Summary)
	assert.Equal(t, testProtocol, result.Protocol)
}

func TestSummarize_UnknownJob(t *testing.T) {
	svc, _, _ := newTestService(t, serviceOpts{})

	_, err := svc.Summarize(context.Background(), "never-submitted", "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSummarize_ConflictWhileProcessing(t *testing.T) {
	release := make(chan struct{})
	blocking := &stubPipeline{
		runFunc: func(_ context.Context, _ string, _ pipeline.Options) ([]models.Segment, error) {
			<-release
			return testProtocol, nil
		},
	}
	svc, _, _ := newTestService(t, serviceOpts{pipe: blocking})
	defer close(release)

	jobID := submit(t, svc)

	_, err := svc.Summarize(context.Background(), jobID, "")
	var notCompleted *jobs.NotCompletedError
	assert.ErrorAs(t, err, &notCompleted)
}

// faultyStatusStore records every status write attempt and rejects the ones
// rejectFn selects.
type faultyStatusStore struct {
	store.Store
	rejectFn func(rec *models.JobStatus) bool

	mu       sync.Mutex
	attempts []models.JobStatus
}

func (s *faultyStatusStore) PutStatus(ctx context.Context, id string, rec *models.JobStatus) error {
	s.mu.Lock()
	s.attempts = append(s.attempts, *rec)
	s.mu.Unlock()
	if s.rejectFn(rec) {
		return errors.New("disk full")
	}
	return s.Store.PutStatus(ctx, id, rec)
}

func (s *faultyStatusStore) attempted() []models.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.JobStatus, len(s.attempts))
	copy(out, s.attempts)
	return out
}

func TestJob_StatusWriteFailureAbortsBeforePipeline(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	// Everything after the submit-time write fails, the failed write included.
	faulty := &faultyStatusStore{
		Store: fs,
		rejectFn: func(rec *models.JobStatus) bool {
			return rec.Progress > 0 || rec.Status != models.JobStatusProcessing
		},
	}

	var runs int32
	counting := &stubPipeline{
		runFunc: func(_ context.Context, _ string, _ pipeline.Options) ([]models.Segment, error) {
			atomic.AddInt32(&runs, 1)
			return testProtocol, nil
		},
	}
	svc, _, _ := newTestService(t, serviceOpts{store: faulty, pipe: counting})

	jobID := submit(t, svc)

	// The runner must still try to translate the broken store into a
	// terminal failed status.
	require.Eventually(t, func() bool {
		attempts := faulty.attempted()
		return len(attempts) > 0 && attempts[len(attempts)-1].Status == models.JobStatusFailed
	}, 3*time.Second, 10*time.Millisecond)

	assert.Zero(t, atomic.LoadInt32(&runs))
	_, err = fs.GetResult(context.Background(), jobID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_CompletedWriteFailureTranslatesToFailed(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	faulty := &faultyStatusStore{
		Store: fs,
		rejectFn: func(rec *models.JobStatus) bool {
			return rec.Status == models.JobStatusCompleted
		},
	}
	svc, _, _ := newTestService(t, serviceOpts{store: faulty})

	jobID := submit(t, svc)
	rec := waitForStatus(t, faulty, jobID, models.JobStatusFailed)
	assert.Contains(t, rec.Message, "Error:")
	assert.Equal(t, 90, rec.Progress)

	// The result record was written before the completed-status write failed.
	_, err = fs.GetResult(context.Background(), jobID)
	assert.NoError(t, err)
}

// failingStore rejects every status write.
type failingStore struct {
	store.Store
}

func (failingStore) PutStatus(_ context.Context, _ string, _ *models.JobStatus) error {
	return errors.New("disk full")
}

func TestSubmit_StoreFailureRemovesUpload(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	svc, _, uploadDir := newTestService(t, serviceOpts{store: failingStore{Store: fs}})

	_, err = svc.Submit(context.Background(), strings.NewReader("audio-bytes"), "meeting.wav", pipeline.Options{})
	require.Error(t, err)
	assert.Equal(t, 0, uploadCount(t, uploadDir))
}

func TestSubmit_SanitizesUploadName(t *testing.T) {
	release := make(chan struct{})
	blocking := &stubPipeline{
		runFunc: func(_ context.Context, _ string, _ pipeline.Options) ([]models.Segment, error) {
			<-release
			return testProtocol, nil
		},
	}
	svc, _, uploadDir := newTestService(t, serviceOpts{pipe: blocking})
	defer close(release)

	jobID, err := svc.Submit(context.Background(),
		strings.NewReader("audio-bytes"), "../../etc/pass wd.wav", pipeline.Options{})
	require.NoError(t, err)

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	name := entries[0].Name()
	assert.True(t, strings.HasPrefix(name, jobID+"_"))
	assert.NotContains(t, name, "/")
	assert.NotContains(t, name, " ")
	assert.Equal(t, filepath.Base(name), name)
}
