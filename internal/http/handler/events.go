package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"basegraph.app/storepilot/internal/events"
)

const (
	defaultStreamBlock = 25 * time.Second
	streamBatchSize    = 100
)

type EventReader interface {
	Read(ctx context.Context, lastID string, block time.Duration, count int64) ([]events.Message, error)
}

type EventsHandler struct {
	reader EventReader
	block  time.Duration
}

// NewEventsHandler serves job events over SSE. A nil reader means Redis is
// not configured and every request gets a 503.
func NewEventsHandler(reader EventReader, block time.Duration) *EventsHandler {
	if block <= 0 {
		block = defaultStreamBlock
	}
	return &EventsHandler{reader: reader, block: block}
}

// Stream tails the job event stream. ?last_id resumes after a stream id and
// ?job_id restricts the stream to one job.
func (h *EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if h.reader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event stream not configured"})
		return
	}

	lastID := c.Query("last_id")
	if lastID == "" {
		lastID = "$"
	}
	jobID := c.Query("job_id")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	sseWrite(c.Writer, "ping", "ready")
	flusher.Flush()

	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := h.reader.Read(ctx, lastID, h.block, streamBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sseWrite(c.Writer, "error", map[string]string{"error": err.Error()})
			flusher.Flush()
			// avoid spinning on a broken connection
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if len(msgs) == 0 {
			sseWrite(c.Writer, "ping", time.Now().UTC().Format(time.RFC3339Nano))
			flusher.Flush()
			continue
		}

		for _, msg := range msgs {
			lastID = msg.ID
			if jobID != "" && msg.Event.JobID != jobID {
				continue
			}
			sseWriteID(c.Writer, msg.ID, string(msg.Event.Type), msg.Event)
		}
		flusher.Flush()
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
}

func sseWrite(w http.ResponseWriter, event string, data any) {
	sseWriteID(w, "", event, data)
}

func sseWriteID(w http.ResponseWriter, id, event string, data any) {
	payload := marshalPayload(data)
	if id != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", id)
	}
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(payload, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
}

func marshalPayload(data any) string {
	switch payload := data.(type) {
	case string:
		return payload
	case []byte:
		return string(payload)
	default:
		bytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		return string(bytes)
	}
}
