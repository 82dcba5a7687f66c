package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"basegraph.app/storepilot/internal/model"
)

const (
	jobsFileName    = "jobs.json"
	reportsFileName = "cycle-reports.json"
)

// FileStore keeps jobs and reports as JSON arrays under a data directory.
// Every write goes to a temp file that is renamed over the target.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) SaveJob(_ context.Context, job model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := readRecords[model.Job](s.path(jobsFileName))
	if err != nil {
		return err
	}
	jobs = slices.DeleteFunc(jobs, func(j model.Job) bool { return j.JobID == job.JobID })
	jobs = append(jobs, job)
	return writeRecords(s.path(jobsFileName), jobs)
}

func (s *FileStore) UpdateJob(_ context.Context, jobID string, u model.JobUpdate) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := readRecords[model.Job](s.path(jobsFileName))
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(jobs, func(j model.Job) bool { return j.JobID == jobID })
	if idx < 0 {
		return nil, ErrNotFound
	}
	jobs[idx].Merge(u)
	if err := writeRecords(s.path(jobsFileName), jobs); err != nil {
		return nil, err
	}
	job := jobs[idx]
	return &job, nil
}

func (s *FileStore) GetJob(_ context.Context, jobID string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs, err := readRecords[model.Job](s.path(jobsFileName))
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(jobs, func(j model.Job) bool { return j.JobID == jobID })
	if idx < 0 {
		return nil, ErrNotFound
	}
	return &jobs[idx], nil
}

func (s *FileStore) SaveReport(_ context.Context, report model.CycleReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := readRecords[model.CycleReport](s.path(reportsFileName))
	if err != nil {
		return err
	}
	reports = slices.DeleteFunc(reports, func(r model.CycleReport) bool { return r.CycleID == report.CycleID })
	reports = append(reports, report)
	return writeRecords(s.path(reportsFileName), reports)
}

func (s *FileStore) GetReport(_ context.Context, cycleID string) (*model.CycleReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports, err := readRecords[model.CycleReport](s.path(reportsFileName))
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(reports, func(r model.CycleReport) bool { return r.CycleID == cycleID })
	if idx < 0 {
		return nil, ErrNotFound
	}
	return &reports[idx], nil
}

func (s *FileStore) GetRecentReports(_ context.Context, limit int) ([]model.CycleReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports, err := readRecords[model.CycleReport](s.path(reportsFileName))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(reports, func(a, b model.CycleReport) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// readRecords loads a JSON array. A missing file is empty; a corrupt file
// is logged and treated as empty so the next write replaces it.
func readRecords[T any](path string) ([]T, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if len(raw) == 0 {
		return []T{}, nil
	}

	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		slog.Warn("unreadable store file, starting empty", "file", path, "error", err)
		return []T{}, nil
	}
	return records, nil
}

func writeRecords[T any](path string, records []T) error {
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close() //nolint:errcheck
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
