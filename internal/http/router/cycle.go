package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/storepilot/internal/http/handler"
)

func CycleRouter(rg *gin.RouterGroup, h *handler.CycleHandler, events *handler.EventsHandler, requireAdmin gin.HandlerFunc) {
	rg.POST("", requireAdmin, h.Trigger)
	rg.GET("/jobs/:job_id", h.GetJob)
	rg.GET("/reports", h.ListReports)
	rg.GET("/reports/:cycle_id", h.GetReport)
	rg.GET("/events", events.Stream)
}
