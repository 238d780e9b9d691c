package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/aquaq/internal/reports"
	"github.com/osvaldoandrade/aquaq/internal/workflow"
	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

type resultController struct {
	mgr     workflow.Manager
	tracker *reports.Tracker
}

func NewResultController(mgr workflow.Manager, tracker *reports.Tracker) *resultController {
	return &resultController{mgr: mgr, tracker: tracker}
}

// Handle returns the completed analysis plus links to the report, as long as
// the report file is still inside its retention window.
func (h *resultController) Handle(c *gin.Context) {
	id := c.Param("id")
	if !validAnalysisID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis ID format"})
		return
	}

	sess := h.mgr.Session(id)
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	if sess.Status != domain.StatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("analysis not completed, current status: %s", sess.Status)})
		return
	}

	rs := h.tracker.Status(id)
	if !rs.Exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis report not found or expired"})
		return
	}
	if rs.Expired {
		c.JSON(http.StatusGone, gin.H{"error": fmt.Sprintf(
			"analysis report expired (available for %.0f minutes only), age: %.1f minutes",
			h.tracker.Retention().Minutes(), rs.Age.Minutes())})
		return
	}

	filename := ""
	if sess.Context != nil {
		filename = sess.Context.OriginalFilename
	}
	c.JSON(http.StatusOK, domain.AnalysisResult{
		ID:               id,
		OriginalFilename: filename,
		AnalysisMarkdown: sess.Result,
		AnalysisDate:     time.Now(),
		ProcessingTime:   processingSeconds(sess),
		ReportURL:        "/api/download/" + id,
		PreviewURL:       "/api/preview/" + id,
	})
}

func processingSeconds(sess *domain.Session) float64 {
	end := sess.CompletedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(sess.StartTime).Seconds()
}
