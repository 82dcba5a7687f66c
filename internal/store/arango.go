package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"basegraph.app/storepilot/common/arangodb"
	"basegraph.app/storepilot/internal/model"
)

const (
	jobsCollection    = "cycle_jobs"
	reportsCollection = "cycle_reports"

	// RFC3339Nano trims trailing zeros, so createdAt strings do not sort.
	// Microseconds stay below 2^53 and survive Arango's doubles.
	reportSortField = "createdAtUnixMicro"
)

type reportDocument struct {
	model.CycleReport
	CreatedAtUnixMicro int64 `json:"createdAtUnixMicro"`
}

// ArangoStore keeps jobs and reports as documents keyed by their ids.
type ArangoStore struct {
	client arangodb.Client
}

// NewArangoStore prepares the database and collections.
func NewArangoStore(ctx context.Context, client arangodb.Client) (*ArangoStore, error) {
	if err := client.EnsureDatabase(ctx); err != nil {
		return nil, err
	}
	if err := client.EnsureCollections(ctx, jobsCollection, reportsCollection); err != nil {
		return nil, err
	}
	return &ArangoStore{client: client}, nil
}

func (s *ArangoStore) Close() error {
	return s.client.Close()
}

func (s *ArangoStore) SaveJob(ctx context.Context, job model.Job) error {
	return s.client.UpsertDocument(ctx, jobsCollection, job.JobID, job)
}

// UpdateJob is a read-modify-write. The engine is the only writer of a
// job, so concurrent updates to the same job do not occur.
func (s *ArangoStore) UpdateJob(ctx context.Context, jobID string, u model.JobUpdate) (*model.Job, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	job.Merge(u)
	if err := s.client.UpsertDocument(ctx, jobsCollection, jobID, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *ArangoStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	if err := s.client.GetDocument(ctx, jobsCollection, jobID, &job); err != nil {
		if errors.Is(err, arangodb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *ArangoStore) SaveReport(ctx context.Context, report model.CycleReport) error {
	doc := reportDocument{CycleReport: report, CreatedAtUnixMicro: report.CreatedAt.UnixMicro()}
	return s.client.UpsertDocument(ctx, reportsCollection, report.CycleID, doc)
}

func (s *ArangoStore) GetReport(ctx context.Context, cycleID string) (*model.CycleReport, error) {
	var report model.CycleReport
	if err := s.client.GetDocument(ctx, reportsCollection, cycleID, &report); err != nil {
		if errors.Is(err, arangodb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &report, nil
}

func (s *ArangoStore) GetRecentReports(ctx context.Context, limit int) ([]model.CycleReport, error) {
	docs, err := s.client.ListDocuments(ctx, reportsCollection, arangodb.ListOptions{
		SortField:  reportSortField,
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	reports := make([]model.CycleReport, 0, len(docs))
	for _, doc := range docs {
		var r model.CycleReport
		if err := json.Unmarshal(doc, &r); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}
