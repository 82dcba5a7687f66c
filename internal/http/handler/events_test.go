package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"basegraph.app/storepilot/internal/events"
	"basegraph.app/storepilot/internal/http/handler"
)

type failingReader struct{ calls int }

func (r *failingReader) Read(context.Context, string, time.Duration, int64) ([]events.Message, error) {
	r.calls++
	return nil, errors.New("connection refused")
}

var _ = Describe("EventsHandler", func() {
	const stream = "test_cycle_events"

	var (
		mr        *miniredis.Miniredis
		client    *redis.Client
		publisher events.Publisher
	)

	BeforeEach(func() {
		mr = miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)
		publisher = events.NewRedisPublisher(client, stream, 100, nil)
	})

	serveStream := func(h *handler.EventsHandler, target string, d time.Duration) *httptest.ResponseRecorder {
		router := gin.New()
		router.GET("/events", h.Stream)

		ctx, cancel := context.WithTimeout(context.Background(), d)
		defer cancel()
		req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("returns 503 without a reader", func() {
		w := serveStream(handler.NewEventsHandler(nil, 0), "/events", time.Second)
		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("replays events after last_id and filters by job", func() {
		ctx := context.Background()
		Expect(publisher.Publish(ctx, events.Event{Type: events.TypeJobQueued, JobID: "job-1", Status: "queued"})).To(Succeed())
		Expect(publisher.Publish(ctx, events.Event{Type: events.TypeJobQueued, JobID: "job-2", Status: "queued"})).To(Succeed())
		Expect(publisher.Publish(ctx, events.Event{Type: events.TypeJobDone, JobID: "job-1", Status: "done", Progress: 100})).To(Succeed())

		h := handler.NewEventsHandler(events.NewReader(client, stream), 20*time.Millisecond)
		w := serveStream(h, "/events?last_id=0&job_id=job-1", 200*time.Millisecond)

		Expect(w.Header().Get("Content-Type")).To(Equal("text/event-stream"))
		body := w.Body.String()
		Expect(body).To(HavePrefix("event: ping\ndata: ready\n\n"))
		Expect(body).To(ContainSubstring("event: job_queued\n"))
		Expect(body).To(ContainSubstring("event: job_done\n"))
		Expect(body).To(ContainSubstring(`"jobId":"job-1"`))
		Expect(body).NotTo(ContainSubstring(`"jobId":"job-2"`))
		Expect(body).To(MatchRegexp(`id: \d+-\d+\n`))
	})

	It("sends keepalive pings while idle", func() {
		h := handler.NewEventsHandler(events.NewReader(client, stream), 20*time.Millisecond)
		w := serveStream(h, "/events", 150*time.Millisecond)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(MatchRegexp(`event: ping\ndata: \d{4}-`))
	})

	It("reports read errors in-band and stops with the client", func() {
		reader := &failingReader{}
		h := handler.NewEventsHandler(reader, 20*time.Millisecond)
		w := serveStream(h, "/events", 100*time.Millisecond)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("event: error\n"))
		Expect(w.Body.String()).To(ContainSubstring("connection refused"))
		Expect(reader.calls).To(Equal(1))
	})
})
