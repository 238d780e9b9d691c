package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/aquaq/internal/workflow"
)

type statusController struct{ mgr workflow.Manager }

func NewStatusController(mgr workflow.Manager) *statusController {
	return &statusController{mgr}
}

func (h *statusController) Handle(c *gin.Context) {
	id := c.Param("id")
	if !validAnalysisID(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis ID format"})
		return
	}

	st, err := h.mgr.Status(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}
