package engine_test

import (
	"context"
	"errors"
	"sync"

	"basegraph.app/storepilot/internal/events"
	"basegraph.app/storepilot/internal/model"
	"basegraph.app/storepilot/internal/store"
)

type mockSnapshotter struct {
	gatherFn func(ctx context.Context, windowHours int) (model.Snapshot, error)
}

func (m *mockSnapshotter) Gather(ctx context.Context, windowHours int) (model.Snapshot, error) {
	if m.gatherFn != nil {
		return m.gatherFn(ctx, windowHours)
	}
	return model.Snapshot{SnapshotID: "snap-1", WindowHours: windowHours}, nil
}

type mockProposer struct {
	proposeFn func(ctx context.Context, snap model.Snapshot, recent []model.CycleReport) model.Plan
}

func (m *mockProposer) Propose(ctx context.Context, snap model.Snapshot, recent []model.CycleReport) model.Plan {
	return m.proposeFn(ctx, snap, recent)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) progressFor(jobID string) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []int
	for _, e := range p.events {
		if e.JobID == jobID && e.Type == events.TypeJobProgress {
			out = append(out, e.Progress)
		}
	}
	return out
}

// flakyDoneStore fails the first update that would mark a job done.
type flakyDoneStore struct {
	store.CycleStore

	mu        sync.Mutex
	doneFails int
}

func (s *flakyDoneStore) UpdateJob(ctx context.Context, jobID string, u model.JobUpdate) (*model.Job, error) {
	s.mu.Lock()
	if u.Status != nil && *u.Status == model.JobStatusDone && s.doneFails == 0 {
		s.doneFails++
		s.mu.Unlock()
		return nil, errors.New("disk full")
	}
	s.mu.Unlock()
	return s.CycleStore.UpdateJob(ctx, jobID, u)
}

func (s *flakyDoneStore) failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doneFails
}
