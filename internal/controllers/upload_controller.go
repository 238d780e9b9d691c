package controllers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/osvaldoandrade/aquaq/internal/middleware"
	"github.com/osvaldoandrade/aquaq/internal/pipeline"
	"github.com/osvaldoandrade/aquaq/internal/providers"
	"github.com/osvaldoandrade/aquaq/internal/workflow"
	"github.com/osvaldoandrade/aquaq/pkg/config"
	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

type uploadController struct {
	mgr    workflow.Manager
	runner *pipeline.Runner
	store  providers.FileStore
	cfg    *config.Config
	logger *slog.Logger
}

func NewUploadController(mgr workflow.Manager, runner *pipeline.Runner, store providers.FileStore, cfg *config.Config, logger *slog.Logger) *uploadController {
	if logger == nil {
		logger = slog.Default()
	}
	return &uploadController{mgr: mgr, runner: runner, store: store, cfg: cfg, logger: logger}
}

// Handle accepts a PDF under the multipart field "pdf", registers the
// session and kicks off the background pipeline. The response returns as
// soon as the job is queued; progress flows through /api/stream.
func (h *uploadController) Handle(c *gin.Context) {
	fh, err := c.FormFile("pdf")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided", "code": "VALIDATION_ERROR"})
		return
	}
	if err := validatePDFUpload(fh, h.cfg.MaxUploadSizeMB); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
		return
	}

	analysisID := "analysis_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	src, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed", "code": "UPLOAD_ERROR"})
		return
	}
	data, err := io.ReadAll(src)
	_ = src.Close()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed", "code": "UPLOAD_ERROR"})
		return
	}
	uploadPath, err := h.store.Save(c.Request.Context(), analysisID+".pdf", data)
	if err != nil {
		h.logger.Error("saving upload failed", "analysisId", analysisID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed", "code": "UPLOAD_ERROR"})
		return
	}

	analysisCtx := &domain.AnalysisContext{
		AnalysisID:       analysisID,
		OriginalFilename: fh.Filename,
		UploadPath:       uploadPath,
		Metadata: map[string]any{
			"uploadTime": time.Now().Format(time.RFC3339),
			"sizeBytes":  fh.Size,
		},
	}
	if _, err := h.mgr.Start(analysisID, analysisCtx); err != nil {
		_ = h.store.Remove(c.Request.Context(), uploadPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed", "code": "UPLOAD_ERROR"})
		return
	}

	h.logger.Info("pdf upload accepted",
		"analysisId", analysisID,
		"filename", fh.Filename,
		"size", fh.Size,
		"requestId", middleware.RequestIDFromContext(c.Request.Context()))

	// Detach from the request context: the pipeline outlives this request.
	go h.runner.Run(context.Background(), analysisID, uploadPath)

	c.JSON(http.StatusAccepted, domain.UploadResponse{
		Success:    true,
		AnalysisID: analysisID,
		Message:    "PDF uploaded successfully. Analysis started.",
	})
}
