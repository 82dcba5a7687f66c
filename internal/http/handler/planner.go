package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"basegraph.app/storepilot/internal/planner"
)

type PlannerService interface {
	HealthCheck(ctx context.Context) planner.Health
	ResetProvider(ctx context.Context)
}

type PlannerHandler struct {
	planner PlannerService
}

func NewPlannerHandler(p PlannerService) *PlannerHandler {
	return &PlannerHandler{planner: p}
}

// Health always answers 200; the body says whether the provider can be
// called.
func (h *PlannerHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.planner.HealthCheck(c.Request.Context()))
}

func (h *PlannerHandler) Reset(c *gin.Context) {
	h.planner.ResetProvider(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "reset", "aiDisabled": false})
}
