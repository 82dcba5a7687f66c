package engine_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/goleak"

	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/commerce"
	"basegraph.app/storepilot/internal/engine"
	"basegraph.app/storepilot/internal/executor"
	"basegraph.app/storepilot/internal/governor"
	"basegraph.app/storepilot/internal/model"
	"basegraph.app/storepilot/internal/planner"
	"basegraph.app/storepilot/internal/store"
)

var _ = Describe("Engine", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		leaks     goleak.Option
		st        *store.FileStore
		snapper   *mockSnapshotter
		publisher *recordingPublisher
		deps      engine.Deps
		cfg       engine.Config
		eng       *engine.Engine
		runErr    chan error
	)

	BeforeEach(func() {
		leaks = goleak.IgnoreCurrent()
		ctx, cancel = context.WithCancel(context.Background())

		var err error
		st, err = store.NewFileStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		constraints := config.DefaultConstraints()
		snapper = &mockSnapshotter{}
		publisher = &recordingPublisher{}
		deps = engine.Deps{
			Store:       st,
			Snapshotter: snapper,
			Proposer:    planner.New(nil, nil, planner.Options{Constraints: constraints}),
			Governor:    governor.New(constraints),
			Executor:    executor.New(commerce.Unconfigured{}, nil, config.ExecutorConfig{}, constraints),
			Events:      publisher,
		}
		cfg = engine.Config{QueueSize: 4, RecentReports: 7}
	})

	start := func() {
		eng = engine.New(deps, cfg)
		runErr = make(chan error, 1)
		go func() { runErr <- eng.Run(ctx) }()
	}

	AfterEach(func() {
		if eng != nil {
			eng.Stop()
			Eventually(runErr).Should(Receive())
		}
		cancel()
		eng = nil
		goleak.VerifyNone(GinkgoT(), leaks)
	})

	wait := func(jobID string) *model.Job {
		waitCtx, done := context.WithTimeout(ctx, 5*time.Second)
		defer done()
		job, err := eng.Wait(waitCtx, jobID, 5*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		return job
	}

	It("runs a dry-run cycle on an empty catalog end to end", func() {
		start()

		job, err := eng.Enqueue(ctx, model.CycleRequest{WindowHours: 24, DryRun: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(job.Status).To(Equal(model.JobStatusQueued))

		finished := wait(job.JobID)
		Expect(finished.Status).To(Equal(model.JobStatusDone))
		Expect(finished.Progress).To(Equal(100))
		Expect(finished.StartedAt).NotTo(BeNil())
		Expect(finished.FinishedAt).NotTo(BeNil())

		report, err := eng.FetchReport(ctx, job.CycleID)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.JobID).To(Equal(job.JobID))
		Expect(report.ProposedPlan.PlannerMeta.Status).To(Equal(model.PlannerStatusFallback))
		Expect(report.ProposedPlan.Actions).To(HaveLen(1))
		Expect(report.ProposedPlan.Actions[0].Type).To(Equal(model.ActionCreateItems))
		Expect(report.GovernorDecision.ApprovedActions).To(HaveLen(1))
		Expect(report.ExecutionResults).To(HaveLen(1))
		Expect(report.ExecutionResults[0].Status).To(Equal(model.ExecutionSkipped))
		Expect(report.ExecutionResults[0].Reason).To(ContainSubstring("dry-run"))
		Expect(report.DryRun).To(BeTrue())
	})

	It("reports progress in stage order", func() {
		start()

		job, err := eng.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())
		wait(job.JobID)

		Expect(publisher.progressFor(job.JobID)).To(Equal([]int{5, 20, 40, 60, 85}))
	})

	It("defaults the window to 24 hours", func() {
		start()

		job, err := eng.Enqueue(ctx, model.CycleRequest{})
		Expect(err).NotTo(HaveOccurred())
		Expect(job.WindowHours).To(Equal(24))
		wait(job.JobID)
	})

	It("runs cycles strictly in enqueue order", func() {
		release := make(chan struct{})
		first := true
		snapper.gatherFn = func(ctx context.Context, windowHours int) (model.Snapshot, error) {
			if first {
				first = false
				<-release
			}
			return model.Snapshot{SnapshotID: "snap"}, nil
		}
		start()

		a, err := eng.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())
		b, err := eng.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() model.JobStatus {
			job, _ := eng.GetJob(ctx, a.JobID)
			return job.Status
		}).Should(Equal(model.JobStatusRunning))
		Consistently(func() model.JobStatus {
			job, _ := eng.GetJob(ctx, b.JobID)
			return job.Status
		}, 50*time.Millisecond).Should(Equal(model.JobStatusQueued))

		close(release)
		doneA := wait(a.JobID)
		doneB := wait(b.JobID)
		Expect(doneB.StartedAt.Before(*doneA.FinishedAt)).To(BeFalse())

		reportA, err := eng.FetchReport(ctx, a.CycleID)
		Expect(err).NotTo(HaveOccurred())
		reportB, err := eng.FetchReport(ctx, b.CycleID)
		Expect(err).NotTo(HaveOccurred())
		Expect(reportA.CreatedAt.Before(reportB.CreatedAt)).To(BeTrue())

		recent, err := eng.RecentReports(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(recent[0].CycleID).To(Equal(b.CycleID))
	})

	It("marks a failed stage and keeps consuming", func() {
		calls := 0
		snapper.gatherFn = func(context.Context, int) (model.Snapshot, error) {
			calls++
			if calls == 1 {
				return model.Snapshot{}, errors.New("catalog exploded")
			}
			return model.Snapshot{SnapshotID: "snap"}, nil
		}
		start()

		bad, err := eng.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())
		good, err := eng.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())

		failed := wait(bad.JobID)
		Expect(failed.Status).To(Equal(model.JobStatusError))
		Expect(failed.Error).To(ContainSubstring("catalog exploded"))
		Expect(failed.FinishedAt).NotTo(BeNil())

		_, err = eng.FetchReport(ctx, bad.CycleID)
		Expect(err).To(MatchError(store.ErrNotFound))

		Expect(wait(good.JobID).Status).To(Equal(model.JobStatusDone))
	})

	It("marks the job as failed when the done write fails", func() {
		flaky := &flakyDoneStore{CycleStore: st}
		deps.Store = flaky
		start()

		job, err := eng.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())

		failed := wait(job.JobID)
		Expect(failed.Status).To(Equal(model.JobStatusError))
		Expect(failed.Error).To(ContainSubstring("marking job done: disk full"))
		Expect(failed.FinishedAt).NotTo(BeNil())
		Expect(flaky.failures()).To(Equal(1))

		next, err := eng.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(wait(next.JobID).Status).To(Equal(model.JobStatusDone))
	})

	It("lets the running cycle finish when stopped", func() {
		release := make(chan struct{})
		snapper.gatherFn = func(ctx context.Context, _ int) (model.Snapshot, error) {
			<-release
			return model.Snapshot{SnapshotID: "snap"}, ctx.Err()
		}
		start()

		job, err := eng.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())
		Eventually(func() model.JobStatus {
			got, _ := eng.GetJob(ctx, job.JobID)
			return got.Status
		}).Should(Equal(model.JobStatusRunning))

		stopped := make(chan struct{})
		go func() {
			eng.Stop()
			close(stopped)
		}()
		Consistently(stopped, 30*time.Millisecond).ShouldNot(BeClosed())

		close(release)
		Eventually(stopped).Should(BeClosed())

		finished, err := eng.GetJob(ctx, job.JobID)
		Expect(err).NotTo(HaveOccurred())
		Expect(finished.Status).To(Equal(model.JobStatusDone))
	})

	It("recovers from a panicking stage", func() {
		deps.Proposer = &mockProposer{proposeFn: func(context.Context, model.Snapshot, []model.CycleReport) model.Plan {
			panic("planner blew up")
		}}
		start()

		job, err := eng.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())

		failed := wait(job.JobID)
		Expect(failed.Status).To(Equal(model.JobStatusError))
		Expect(failed.Error).To(ContainSubstring("panic: planner blew up"))
	})

	It("bounds a cycle with the configured timeout", func() {
		cfg.CycleTimeout = 20 * time.Millisecond
		snapper.gatherFn = func(ctx context.Context, _ int) (model.Snapshot, error) {
			<-ctx.Done()
			return model.Snapshot{}, ctx.Err()
		}
		start()

		job, err := eng.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())

		failed := wait(job.JobID)
		Expect(failed.Status).To(Equal(model.JobStatusError))
		Expect(failed.Error).To(ContainSubstring("deadline exceeded"))
	})

	It("rejects work when the queue is full", func() {
		cfg.QueueSize = 1
		eng = engine.New(deps, cfg)
		runErr = make(chan error, 1)
		runErr <- nil

		_, err := eng.Enqueue(ctx, model.CycleRequest{})
		Expect(err).NotTo(HaveOccurred())
		_, err = eng.Enqueue(ctx, model.CycleRequest{})
		Expect(err).To(MatchError(engine.ErrQueueFull))
	})

	It("rejects work after Stop", func() {
		start()
		eng.Stop()

		_, err := eng.Enqueue(ctx, model.CycleRequest{})
		Expect(err).To(MatchError(engine.ErrStopped))
	})
})
