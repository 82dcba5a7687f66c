package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/storepilot/internal/http/handler"
	"basegraph.app/storepilot/internal/planner"
)

var _ = Describe("PlannerHandler", func() {
	var (
		router *gin.Engine
		svc    *mockPlannerService
	)

	BeforeEach(func() {
		router = gin.New()
		svc = &mockPlannerService{}
		h := handler.NewPlannerHandler(svc)
		router.GET("/planner/health", h.Health)
		router.POST("/planner/reset", h.Reset)
	})

	It("reports a disabled provider with 200", func() {
		svc.health = planner.Health{
			Configured: true,
			Provider:   "openai",
			ErrorCode:  "401",
			AIDisabled: true,
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/planner/health", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		var h planner.Health
		Expect(json.Unmarshal(w.Body.Bytes(), &h)).To(Succeed())
		Expect(h.AIDisabled).To(BeTrue())
		Expect(h.CanCall).To(BeFalse())
		Expect(h.ErrorCode).To(Equal("401"))
	})

	It("resets the provider", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/planner/reset", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(svc.resetCalls).To(Equal(1))
	})
})
