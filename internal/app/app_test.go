package app_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/app"
	"basegraph.app/storepilot/internal/model"
)

var _ = Describe("App", func() {
	var cfg config.Config

	BeforeEach(func() {
		cfg = config.Config{
			Constraints: config.DefaultConstraints(),
			Executor: config.ExecutorConfig{
				RateLimitBackoff: time.Millisecond,
				IdempotencyTTL:   time.Hour,
			},
			Engine:  config.EngineConfig{QueueSize: 4, RecentReports: 7},
			Storage: config.StorageConfig{Backend: config.StorageFile, DataDir: GinkgoT().TempDir()},
			Metrics: config.MetricsConfig{RevenueWeight: 1, SalesWeight: 10, RefundWeight: 50, AgeWeight: 0.25},
		}
	})

	runCycle := func(a *app.App) *model.CycleReport {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		go func() { _ = a.Engine.Run(context.Background()) }()

		job, err := a.Engine.Enqueue(ctx, model.CycleRequest{DryRun: true})
		Expect(err).NotTo(HaveOccurred())

		done, err := a.Engine.Wait(ctx, job.JobID, 10*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(done.Status).To(Equal(model.JobStatusDone))

		report, err := a.Engine.FetchReport(ctx, job.CycleID)
		Expect(err).NotTo(HaveOccurred())
		return report
	}

	It("runs a dry-run cycle with nothing but a data directory", func() {
		a, err := app.New(context.Background(), cfg, 1)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(a.Close)
		Expect(a.Events).To(BeNil())

		report := runCycle(a)
		Expect(report.Snapshot.Degraded).To(BeTrue())
		Expect(report.ProposedPlan.PlannerMeta.Status).To(Equal(model.PlannerStatusFallback))
		for _, r := range report.ExecutionResults {
			Expect(r.Status).To(Equal(model.ExecutionSkipped))
		}
	})

	It("publishes job events to redis when configured", func() {
		mr := miniredis.RunT(GinkgoT())
		cfg.Redis = config.RedisConfig{URL: "redis://" + mr.Addr(), EventsStream: "cycle_events", StreamMaxLen: 100}

		a, err := app.New(context.Background(), cfg, 1)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(a.Close)
		Expect(a.Events).NotTo(BeNil())

		runCycle(a)

		Eventually(func() int {
			entries, _ := mr.Stream("cycle_events")
			return len(entries)
		}).Should(BeNumerically(">=", 2))
	})

	It("fails fast on an unreachable redis", func() {
		cfg.Redis = config.RedisConfig{URL: "redis://127.0.0.1:1", EventsStream: "cycle_events"}

		_, err := app.New(context.Background(), cfg, 1)
		Expect(err).To(MatchError(ContainSubstring("connecting to redis")))
	})
})
