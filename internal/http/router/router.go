package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"basegraph.app/storepilot/internal/http/handler"
	"basegraph.app/storepilot/internal/http/middleware"
)

// Services are the collaborators behind the HTTP surface. Events may be nil
// when Redis is not configured.
type Services struct {
	Cycles  handler.CycleService
	Planner handler.PlannerService
	Events  handler.EventReader
}

type RouterConfig struct {
	AdminAPIKey string
	StreamBlock time.Duration
}

func SetupRoutes(router *gin.Engine, services Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	requireAdmin := middleware.RequireAdminKey(cfg.AdminAPIKey)

	v1 := router.Group("/api/v1")
	{
		cycleHandler := handler.NewCycleHandler(services.Cycles)
		eventsHandler := handler.NewEventsHandler(services.Events, cfg.StreamBlock)
		CycleRouter(v1.Group("/cycles"), cycleHandler, eventsHandler, requireAdmin)

		plannerHandler := handler.NewPlannerHandler(services.Planner)
		PlannerRouter(v1.Group("/planner"), plannerHandler, requireAdmin)
	}
}
