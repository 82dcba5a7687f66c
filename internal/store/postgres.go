package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"basegraph.app/storepilot/core/db"
	"basegraph.app/storepilot/internal/model"
)

// PostgresStore keeps jobs and reports as JSONB rows.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) SaveJob(ctx context.Context, job model.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	_, err = s.db.Pool().Exec(ctx, `
		INSERT INTO cycle_jobs (job_id, cycle_id, status, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (job_id) DO UPDATE
		SET cycle_id = EXCLUDED.cycle_id,
		    status = EXCLUDED.status,
		    payload = EXCLUDED.payload,
		    updated_at = now()`,
		job.JobID, job.CycleID, string(job.Status), payload, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, jobID string, u model.JobUpdate) (*model.Job, error) {
	var job model.Job
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var payload []byte
		err := tx.QueryRow(ctx, `SELECT payload FROM cycle_jobs WHERE job_id = $1 FOR UPDATE`, jobID).Scan(&payload)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("loading job: %w", err)
		}
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("decoding job: %w", err)
		}

		job.Merge(u)

		updated, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encoding job: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE cycle_jobs SET status = $2, payload = $3, updated_at = now()
			WHERE job_id = $1`,
			jobID, string(job.Status), updated); err != nil {
			return fmt.Errorf("updating job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	var payload []byte
	err := s.db.Pool().QueryRow(ctx, `SELECT payload FROM cycle_jobs WHERE job_id = $1`, jobID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading job: %w", err)
	}
	var job model.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}
	return &job, nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, report model.CycleReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	_, err = s.db.Pool().Exec(ctx, `
		INSERT INTO cycle_reports (cycle_id, job_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cycle_id) DO UPDATE
		SET job_id = EXCLUDED.job_id, payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`,
		report.CycleID, report.JobID, payload, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, cycleID string) (*model.CycleReport, error) {
	var payload []byte
	err := s.db.Pool().QueryRow(ctx, `SELECT payload FROM cycle_reports WHERE cycle_id = $1`, cycleID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading report: %w", err)
	}
	var report model.CycleReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &report, nil
}

func (s *PostgresStore) GetRecentReports(ctx context.Context, limit int) ([]model.CycleReport, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Pool().Query(ctx, `
		SELECT payload FROM cycle_reports
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := make([]model.CycleReport, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		var r model.CycleReport
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("decoding report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
