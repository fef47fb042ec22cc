package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avoss/meetscribe/pkg/models"
)

// FileStore persists one status file and one result file per job ID under a
// single directory. Writes go to a temporary file in the same directory and
// are atomically renamed into place, so readers see either the previous
// record or the new one, never a torn write.
type FileStore struct {
	dir string
}

// NewFileStore creates the job directory if needed and returns a FileStore.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

func (s *FileStore) PutStatus(_ context.Context, id string, rec *models.JobStatus) error {
	return s.writeJSON(s.statusPath(id), rec)
}

func (s *FileStore) GetStatus(_ context.Context, id string) (*models.JobStatus, error) {
	var rec models.JobStatus
	if err := s.readJSON(s.statusPath(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *FileStore) PutResult(_ context.Context, id string, rec *models.JobResult) error {
	return s.writeJSON(s.resultPath(id), rec)
}

func (s *FileStore) GetResult(_ context.Context, id string) (*models.JobResult, error) {
	var rec models.JobResult
	if err := s.readJSON(s.resultPath(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *FileStore) statusPath(id string) string {
	return filepath.Join(s.dir, id+"_status.json")
}

func (s *FileStore) resultPath(id string) string {
	return filepath.Join(s.dir, id+"_results.json")
}

func (s *FileStore) writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (s *FileStore) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read record: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		// A corrupt record is indistinguishable from a missing one at the
		// API boundary.
		return ErrNotFound
	}
	return nil
}

var _ Store = (*FileStore)(nil)
