package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/aquaq/internal/reports"
	"github.com/osvaldoandrade/aquaq/internal/workflow"
)

type healthController struct {
	mgr     workflow.Manager
	tracker *reports.Tracker
}

func NewHealthController(mgr workflow.Manager, tracker *reports.Tracker) *healthController {
	return &healthController{mgr: mgr, tracker: tracker}
}

func (h *healthController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"version":        "1.0.0",
		"timestamp":      time.Now().Unix(),
		"activeSessions": h.mgr.ActiveCount(),
		"trackedReports": h.tracker.Count(),
	})
}
