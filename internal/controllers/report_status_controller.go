package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/aquaq/internal/reports"
	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

type reportStatusController struct{ tracker *reports.Tracker }

func NewReportStatusController(tracker *reports.Tracker) *reportStatusController {
	return &reportStatusController{tracker}
}

func (h *reportStatusController) Handle(c *gin.Context) {
	id := c.Param("id")
	if !validAnalysisID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis ID format"})
		return
	}

	rs := h.tracker.Status(id)
	out := domain.ReportAvailability{
		AnalysisID: id,
		Exists:     rs.Exists,
		Expired:    rs.Expired,
		AgeMinutes: rs.Age.Minutes(),
		Downloaded: rs.Downloaded,
	}
	if rs.Exists {
		if left := h.tracker.Retention().Minutes() - rs.Age.Minutes(); left > 0 {
			out.ExpiresIn = left
		}
	}
	c.JSON(http.StatusOK, out)
}
