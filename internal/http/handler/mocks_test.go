package handler_test

import (
	"context"

	"basegraph.app/storepilot/internal/model"
	"basegraph.app/storepilot/internal/planner"
)

type mockCycleService struct {
	enqueueFn func(ctx context.Context, req model.CycleRequest) (*model.Job, error)
	getJobFn  func(ctx context.Context, jobID string) (*model.Job, error)
	reportFn  func(ctx context.Context, cycleID string) (*model.CycleReport, error)
	recentFn  func(ctx context.Context, limit int) ([]model.CycleReport, error)

	lastRequest model.CycleRequest
	lastLimit   int
}

func (m *mockCycleService) Enqueue(ctx context.Context, req model.CycleRequest) (*model.Job, error) {
	m.lastRequest = req
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, req)
	}
	return &model.Job{JobID: "job-1", CycleID: "cycle-1", Status: model.JobStatusQueued}, nil
}

func (m *mockCycleService) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	if m.getJobFn != nil {
		return m.getJobFn(ctx, jobID)
	}
	return nil, nil
}

func (m *mockCycleService) FetchReport(ctx context.Context, cycleID string) (*model.CycleReport, error) {
	if m.reportFn != nil {
		return m.reportFn(ctx, cycleID)
	}
	return nil, nil
}

func (m *mockCycleService) RecentReports(ctx context.Context, limit int) ([]model.CycleReport, error) {
	m.lastLimit = limit
	if m.recentFn != nil {
		return m.recentFn(ctx, limit)
	}
	return nil, nil
}

type mockPlannerService struct {
	health     planner.Health
	resetCalls int
}

func (m *mockPlannerService) HealthCheck(context.Context) planner.Health {
	return m.health
}

func (m *mockPlannerService) ResetProvider(context.Context) {
	m.resetCalls++
}
