package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basegraph.app/storepilot/internal/engine"
	"basegraph.app/storepilot/internal/http/dto"
	"basegraph.app/storepilot/internal/model"
	"basegraph.app/storepilot/internal/store"
)

const maxReportLimit = 100

type CycleService interface {
	Enqueue(ctx context.Context, req model.CycleRequest) (*model.Job, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	FetchReport(ctx context.Context, cycleID string) (*model.CycleReport, error)
	RecentReports(ctx context.Context, limit int) ([]model.CycleReport, error)
}

type CycleHandler struct {
	cycles CycleService
}

func NewCycleHandler(cycles CycleService) *CycleHandler {
	return &CycleHandler{cycles: cycles}
}

// Trigger enqueues a cycle and returns immediately. An empty body runs with
// defaults.
func (h *CycleHandler) Trigger(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.TriggerCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	apply := false
	if raw := c.Query("apply"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "apply must be a boolean"})
			return
		}
		apply = v
	}

	job, err := h.cycles.Enqueue(ctx, model.CycleRequest{
		WindowHours: req.WindowHours,
		DryRun:      req.DryRun,
		Apply:       apply,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrQueueFull), errors.Is(err, engine.ErrStopped):
			slog.WarnContext(ctx, "cycle rejected", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to enqueue cycle", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue cycle"})
		}
		return
	}

	c.JSON(http.StatusAccepted, dto.ToTriggerCycleResponse(job))
}

func (h *CycleHandler) GetJob(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("job_id")

	job, err := h.cycles.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load job", "error", err, "job_id", jobID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *CycleHandler) GetReport(c *gin.Context) {
	ctx := c.Request.Context()
	cycleID := c.Param("cycle_id")

	report, err := h.cycles.FetchReport(ctx, cycleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load report", "error", err, "cycle_id", cycleID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListReports returns recent reports, newest first. limit=0 or a missing
// limit uses the configured default.
func (h *CycleHandler) ListReports(c *gin.Context) {
	ctx := c.Request.Context()

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = min(v, maxReportLimit)
	}

	reports, err := h.cycles.RecentReports(ctx, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list reports", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}

	c.JSON(http.StatusOK, dto.ToReportListResponse(reports))
}
