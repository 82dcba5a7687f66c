package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"basegraph.app/storepilot/common/logger"
	"basegraph.app/storepilot/internal/events"
	"basegraph.app/storepilot/internal/executor"
	"basegraph.app/storepilot/internal/model"
	"basegraph.app/storepilot/internal/store"
)

var (
	ErrQueueFull = errors.New("cycle queue is full")
	ErrStopped   = errors.New("cycle engine stopped")
)

const (
	jobTypeCycle = "cycle"

	progressStarted  = 5
	progressSnapshot = 20
	progressPlanned  = 40
	progressGoverned = 60
	progressExecuted = 85
	progressDone     = 100

	defaultWindowHours = 24

	failWriteAttempts = 2
)

// Stage interfaces, satisfied by snapshot.Provider, planner.Proposer,
// governor.Governor and executor.Executor.
type (
	Snapshotter interface {
		Gather(ctx context.Context, windowHours int) (model.Snapshot, error)
	}
	Proposer interface {
		Propose(ctx context.Context, snap model.Snapshot, recent []model.CycleReport) model.Plan
	}
	Governor interface {
		Apply(plan model.Plan, snap model.Snapshot) model.GovernorDecision
	}
	Executor interface {
		Execute(ctx context.Context, actions []model.Action, opts executor.Options) []model.ExecutionResult
	}
)

type Config struct {
	QueueSize     int
	CycleTimeout  time.Duration // 0 = unbounded
	RecentReports int
}

type Deps struct {
	Store       store.CycleStore
	Snapshotter Snapshotter
	Proposer    Proposer
	Governor    Governor
	Executor    Executor
	Events      events.Publisher
}

type task struct {
	job model.Job
}

// Engine runs decision cycles one at a time, in enqueue order.
type Engine struct {
	deps Deps
	cfg  Config
	now  func() time.Time

	queue chan task

	mu      sync.RWMutex
	stopped bool

	running   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(deps Deps, cfg Config) *Engine {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.RecentReports <= 0 {
		cfg.RecentReports = 7
	}
	if deps.Events == nil {
		deps.Events = events.NewNoop()
	}
	return &Engine{
		deps:      deps,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		queue:     make(chan task, cfg.QueueSize),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Enqueue persists a queued job and schedules it. It never waits for the
// cycle to run.
func (e *Engine) Enqueue(ctx context.Context, req model.CycleRequest) (*model.Job, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stopped {
		return nil, ErrStopped
	}

	if req.WindowHours <= 0 {
		req.WindowHours = defaultWindowHours
	}
	job := model.Job{
		JobID:       uuid.NewString(),
		CycleID:     uuid.NewString(),
		Type:        jobTypeCycle,
		Status:      model.JobStatusQueued,
		WindowHours: req.WindowHours,
		Apply:       req.Apply,
		DryRun:      req.DryRun,
		CreatedAt:   e.now(),
	}
	if err := e.deps.Store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("saving job: %w", err)
	}

	select {
	case e.queue <- task{job: job}:
	default:
		msg := ErrQueueFull.Error()
		e.updateJob(ctx, job.JobID, model.JobUpdate{
			Status:     statusPtr(model.JobStatusError),
			FinishedAt: timePtr(e.now()),
			Error:      &msg,
		})
		return nil, ErrQueueFull
	}

	slog.InfoContext(ctx, "cycle enqueued",
		"job_id", job.JobID,
		"cycle_id", job.CycleID,
		"window_hours", job.WindowHours,
		"dry_run", job.DryRun,
		"apply", job.Apply)
	e.publish(ctx, events.TypeJobQueued, &job, "")
	return &job, nil
}

// Run consumes the queue until ctx is done or Stop is called. Jobs still
// queued at that point stay queued in the store.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer close(e.stoppedCh)

	slog.InfoContext(ctx, "cycle engine started", "queue_size", e.cfg.QueueSize)

	for {
		select {
		case <-ctx.Done():
			e.markStopped()
			return ctx.Err()
		case <-e.stopCh:
			slog.InfoContext(ctx, "cycle engine stopping")
			return nil
		case t := <-e.queue:
			e.processJobSafe(ctx, t.job)
		}
	}
}

// Stop rejects new work and waits for the running cycle to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.markStopped()
		close(e.stopCh)
	})
	if e.running.Load() {
		<-e.stoppedCh
	}
}

func (e *Engine) markStopped() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
}

func (e *Engine) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	return e.deps.Store.GetJob(ctx, jobID)
}

func (e *Engine) FetchReport(ctx context.Context, cycleID string) (*model.CycleReport, error) {
	return e.deps.Store.GetReport(ctx, cycleID)
}

func (e *Engine) RecentReports(ctx context.Context, limit int) ([]model.CycleReport, error) {
	if limit <= 0 {
		limit = e.cfg.RecentReports
	}
	return e.deps.Store.GetRecentReports(ctx, limit)
}

// Wait polls until the job reaches a terminal state or ctx is done.
func (e *Engine) Wait(ctx context.Context, jobID string, interval time.Duration) (*model.Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := e.deps.Store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) processJobSafe(ctx context.Context, job model.Job) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID:     logger.Ptr(job.JobID),
		CycleID:   logger.Ptr(job.CycleID),
		Component: "storepilot.engine",
	})

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in cycle", "panic", r)
			e.fail(ctx, job, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := e.processJob(ctx, job); err != nil {
		e.fail(ctx, job, err)
	}
}

func (e *Engine) processJob(ctx context.Context, job model.Job) error {
	sc := logger.StartSpan(ctx, "cycle.run")
	defer sc.End()
	ctx = sc.Context()

	if e.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.CycleTimeout)
		defer cancel()
	}

	start := time.Now()
	e.advance(ctx, job.JobID, model.JobUpdate{
		Status:    statusPtr(model.JobStatusRunning),
		StartedAt: timePtr(e.now()),
		Progress:  intPtr(progressStarted),
	})
	slog.InfoContext(ctx, "cycle started", "window_hours", job.WindowHours)

	snap, err := e.deps.Snapshotter.Gather(ctx, job.WindowHours)
	if err != nil {
		return fmt.Errorf("gathering snapshot: %w", err)
	}
	slog.InfoContext(ctx, "snapshot gathered",
		"snapshot_id", snap.SnapshotID,
		"products", len(snap.ProductMetrics),
		"degraded", snap.Degraded)
	e.advance(ctx, job.JobID, model.JobUpdate{Progress: intPtr(progressSnapshot)})

	recent, err := e.deps.Store.GetRecentReports(ctx, e.cfg.RecentReports)
	if err != nil {
		return fmt.Errorf("loading recent reports: %w", err)
	}
	plan := e.deps.Proposer.Propose(ctx, snap, recent)
	slog.InfoContext(ctx, "plan proposed",
		"actions", len(plan.Actions),
		"planner_status", plan.PlannerMeta.Status)
	if err := ctx.Err(); err != nil {
		return err
	}
	e.advance(ctx, job.JobID, model.JobUpdate{Progress: intPtr(progressPlanned)})

	decision := e.deps.Governor.Apply(plan, snap)
	slog.InfoContext(ctx, "plan governed",
		"approved", len(decision.ApprovedActions),
		"rejected", len(decision.RejectedActions))
	e.advance(ctx, job.JobID, model.JobUpdate{Progress: intPtr(progressGoverned)})

	results := e.deps.Executor.Execute(ctx, decision.ApprovedActions, executor.Options{
		DryRun: job.DryRun,
		Apply:  job.Apply,
	})
	if err := ctx.Err(); err != nil {
		return err
	}
	e.advance(ctx, job.JobID, model.JobUpdate{Progress: intPtr(progressExecuted)})

	report := model.CycleReport{
		CycleID:          job.CycleID,
		JobID:            job.JobID,
		CreatedAt:        e.now(),
		Snapshot:         snap,
		ProposedPlan:     plan,
		GovernorDecision: decision,
		ExecutionResults: results,
		DryRun:           job.DryRun,
		Apply:            job.Apply,
	}
	if err := e.deps.Store.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}

	// the terminal write must land, or the job would sit in running forever
	updated, err := e.deps.Store.UpdateJob(ctx, job.JobID, model.JobUpdate{
		Status:     statusPtr(model.JobStatusDone),
		FinishedAt: timePtr(e.now()),
		Progress:   intPtr(progressDone),
	})
	if err != nil {
		return fmt.Errorf("marking job done: %w", err)
	}
	e.publish(ctx, events.TypeJobDone, updated, "")

	slog.InfoContext(ctx, "cycle completed",
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// fail records a terminal error. Writes use a context detached from the
// cycle deadline so a timed-out job is still marked.
func (e *Engine) fail(ctx context.Context, job model.Job, cause error) {
	ctx = context.WithoutCancel(ctx)
	msg := cause.Error()
	slog.ErrorContext(ctx, "cycle failed", "error", cause)

	u := model.JobUpdate{
		Status:     statusPtr(model.JobStatusError),
		FinishedAt: timePtr(e.now()),
		Error:      &msg,
	}
	var updated *model.Job
	for attempt := 1; attempt <= failWriteAttempts && updated == nil; attempt++ {
		updated = e.updateJob(ctx, job.JobID, u)
	}
	e.publish(ctx, events.TypeJobFailed, updated, msg)
}

func (e *Engine) advance(ctx context.Context, jobID string, u model.JobUpdate) {
	updated := e.updateJob(ctx, jobID, u)
	e.publish(ctx, events.TypeJobProgress, updated, "")
}

// updateJob persists a progress update. A failed write is logged and does
// not abort the cycle; terminal writes go through the store directly.
func (e *Engine) updateJob(ctx context.Context, jobID string, u model.JobUpdate) *model.Job {
	job, err := e.deps.Store.UpdateJob(ctx, jobID, u)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update job", "job_id", jobID, "error", err)
		return nil
	}
	return job
}

func (e *Engine) publish(ctx context.Context, typ events.Type, job *model.Job, msg string) {
	if job == nil {
		return
	}
	err := e.deps.Events.Publish(ctx, events.Event{
		Type:     typ,
		JobID:    job.JobID,
		CycleID:  job.CycleID,
		Status:   string(job.Status),
		Progress: job.Progress,
		Message:  msg,
		At:       e.now(),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish job event", "type", typ, "error", err)
	}
}

func statusPtr(s model.JobStatus) *model.JobStatus { return &s }
func timePtr(t time.Time) *time.Time               { return &t }
func intPtr(i int) *int                            { return &i }
