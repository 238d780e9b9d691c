package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/aquaq/internal/workflow"
	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

type previewController struct{ mgr workflow.Manager }

func NewPreviewController(mgr workflow.Manager) *previewController {
	return &previewController{mgr}
}

// Handle returns the raw analysis markdown. Unlike /result it does not care
// whether the report file still exists; the markdown lives in the session.
func (h *previewController) Handle(c *gin.Context) {
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

	filename := ""
	if sess.Context != nil {
		filename = sess.Context.OriginalFilename
	}
	c.JSON(http.StatusOK, domain.AnalysisPreview{
		ID:       id,
		Markdown: sess.Result,
		Metadata: map[string]any{
			"originalFilename": filename,
			"analysisDate":     time.Now().Format(time.RFC3339),
			"processingTime":   processingSeconds(sess),
		},
	})
}
