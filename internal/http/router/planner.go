package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/storepilot/internal/http/handler"
)

func PlannerRouter(rg *gin.RouterGroup, h *handler.PlannerHandler, requireAdmin gin.HandlerFunc) {
	rg.GET("/health", h.Health)
	rg.POST("/reset", requireAdmin, h.Reset)
}
