package store

import (
	"context"
	"errors"

	"basegraph.app/storepilot/internal/model"
)

// ErrNotFound is returned when a requested job or report does not exist
var ErrNotFound = errors.New("not found")

// CycleStore persists jobs and cycle reports. Implementations are safe for
// concurrent use and replace whole records.
type CycleStore interface {
	SaveJob(ctx context.Context, job model.Job) error
	// UpdateJob merges u into the stored job and returns the result.
	UpdateJob(ctx context.Context, jobID string, u model.JobUpdate) (*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)

	SaveReport(ctx context.Context, report model.CycleReport) error
	GetReport(ctx context.Context, cycleID string) (*model.CycleReport, error)
	// GetRecentReports returns up to limit reports, newest first.
	GetRecentReports(ctx context.Context, limit int) ([]model.CycleReport, error)

	Close() error
}
