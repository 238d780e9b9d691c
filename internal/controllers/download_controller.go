package controllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/aquaq/internal/reports"
	"github.com/osvaldoandrade/aquaq/internal/workflow"
)

type downloadController struct {
	mgr     workflow.Manager
	tracker *reports.Tracker
	logger  *slog.Logger
}

func NewDownloadController(mgr workflow.Manager, tracker *reports.Tracker, logger *slog.Logger) *downloadController {
	if logger == nil {
		logger = slog.Default()
	}
	return &downloadController{mgr: mgr, tracker: tracker, logger: logger}
}

// Handle serves the rendered report file. The first successful download
// marks the report, shortening its remaining lifetime to the post-download
// grace period.
func (h *downloadController) Handle(c *gin.Context) {
	id := c.Param("id")
	if !validAnalysisID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis ID format"})
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

	filename := "water_analysis_report.html"
	if sess := h.mgr.Session(id); sess != nil && sess.Context != nil && sess.Context.OriginalFilename != "" {
		base := strings.TrimSuffix(sess.Context.OriginalFilename, ".pdf")
		filename = "analysis_" + base + ".html"
	}

	h.tracker.MarkDownloaded(id)
	h.logger.Info("report download started", "analysisId", id)

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.File(h.tracker.Path(id))
}
