package controllers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/aquaq/internal/workflow"
	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

type streamController struct {
	mgr    workflow.Manager
	logger *slog.Logger
}

func NewStreamController(mgr workflow.Manager, logger *slog.Logger) *streamController {
	if logger == nil {
		logger = slog.Default()
	}
	return &streamController{mgr: mgr, logger: logger}
}

// Handle streams progress events over SSE. The first event is always a
// synthetic snapshot of the current state, so a client attaching mid-job
// starts from truth instead of waiting for the next transition. Events are
// not replayed; whatever was broadcast before the subscription is gone.
func (h *streamController) Handle(c *gin.Context) {
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

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// Buffered so a stalled client never blocks the emitting pipeline; a
	// full buffer drops the event, the terminal poll below still converges.
	events := make(chan domain.ProgressEvent, 16)
	h.mgr.Subscribe(id, func(e domain.ProgressEvent) error {
		select {
		case events <- e:
		default:
		}
		return nil
	})
	defer h.mgr.Unsubscribe(id)

	h.logger.Info("sse stream started", "analysisId", id)
	defer h.logger.Debug("sse stream ended", "analysisId", id)

	h.writeEvent(c, domain.ProgressEvent{
		Step:     "status",
		Status:   domain.StepStatus(sess.Status),
		Message:  fmt.Sprintf("Current status: %s", sess.Status),
		Progress: sess.Progress,
	})

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case e := <-events:
			if !h.writeEvent(c, e) {
				return
			}
		case <-ticker.C:
			cur := h.mgr.Session(id)
			if cur == nil {
				// Reaped while streaming; nothing more will ever arrive.
				return
			}
			if cur.Terminal() {
				h.writeEvent(c, terminalEvent(cur))
				return
			}
		}
	}
}

func terminalEvent(sess *domain.Session) domain.ProgressEvent {
	if sess.Status == domain.StatusCompleted {
		return domain.ProgressEvent{
			Step:     workflow.StepComplete,
			Status:   domain.StepCompleted,
			Message:  "Analysis completed",
			Progress: 100,
		}
	}
	return domain.ProgressEvent{
		Step:     "error",
		Status:   domain.StepError,
		Message:  sess.Error,
		Progress: sess.Progress,
	}
}

func (h *streamController) writeEvent(c *gin.Context, e domain.ProgressEvent) bool {
	payload, err := json.Marshal(e)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
		return false
	}
	if f, ok := c.Writer.(http.Flusher); ok {
		f.Flush()
	}
	return true
}
