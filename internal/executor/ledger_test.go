package executor_test

import (
	"context"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"basegraph.app/storepilot/internal/executor"
)

var _ = Describe("RedisLedger", func() {
	var (
		ctx    context.Context
		mr     *miniredis.Miniredis
		client *redis.Client
		ledger *executor.RedisLedger
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr = miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)
		ledger = executor.NewRedisLedger(client, time.Hour)
	})

	It("remembers recorded keys with a ttl", func() {
		seen, err := ledger.Seen(ctx, "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(BeFalse())

		Expect(ledger.Record(ctx, "abc")).To(Succeed())

		seen, err = ledger.Seen(ctx, "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(BeTrue())
		Expect(mr.TTL("storepilot:applied:abc")).To(Equal(time.Hour))
	})

	It("forgets keys once they expire", func() {
		Expect(ledger.Record(ctx, "abc")).To(Succeed())
		mr.FastForward(2 * time.Hour)

		seen, err := ledger.Seen(ctx, "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(BeFalse())
	})

	It("reports connection failures", func() {
		down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		DeferCleanup(down.Close)

		_, err := executor.NewRedisLedger(down, time.Hour).Seen(ctx, "abc")
		Expect(err).To(HaveOccurred())
	})
})
