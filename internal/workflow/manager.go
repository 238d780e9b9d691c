package workflow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/osvaldoandrade/aquaq/internal/metrics"
	"github.com/osvaldoandrade/aquaq/pkg/domain"
)

// Manager is the orchestration facade for the analysis workflow: it starts
// jobs, advances them through steps, finalizes them, and is the sole mutator
// of the session store. Progress events are pushed to subscribers after every
// mutation.
type Manager interface {
	Start(id string, analysisCtx *domain.AnalysisContext) (*domain.Session, error)
	UpdateStep(id, stepID string, status domain.StepStatus, message string, progress *int)
	Complete(id, result string)
	Fail(id, message string)
	Status(id string) (*domain.AnalysisStatus, error)
	Session(id string) *domain.Session
	MutateContext(id string, fn func(*domain.AnalysisContext))
	Subscribe(id string, sink Sink)
	Unsubscribe(id string)
	Reap(maxAge time.Duration) int
	ActiveCount() int
}

type manager struct {
	store  *SessionStore
	bc     *Broadcaster
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(store *SessionStore, bc *Broadcaster, logger *slog.Logger, now func() time.Time) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &manager{store: store, bc: bc, logger: logger, now: now}
}

func (m *manager) Start(id string, analysisCtx *domain.AnalysisContext) (*domain.Session, error) {
	sess := &domain.Session{
		ID:          id,
		Status:      domain.StatusProcessing,
		StartTime:   m.now(),
		CurrentStep: StepUpload,
		Progress:    0,
		Context:     analysisCtx,
	}
	if err := m.store.Create(sess); err != nil {
		return nil, err
	}
	metrics.AnalysisStartedTotal.Inc()
	m.logger.Info("analysis workflow started", "analysisId", id)

	m.emit(sess, StepUpload, domain.StepProcessing, "Starting analysis...")
	return sess, nil
}

// UpdateStep advances the session to stepID and broadcasts the change. An
// unknown id is a logged no-op: the caller is a best-effort background
// pipeline that must not fail because a session was reaped mid-flight.
// Terminal sessions are frozen and left untouched.
func (m *manager) UpdateStep(id, stepID string, status domain.StepStatus, message string, progress *int) {
	frozen := false
	snap, ok := m.store.Mutate(id, func(s *domain.Session) {
		if s.Terminal() {
			frozen = true
			return
		}
		s.CurrentStep = stepID

		p := 0
		if progress != nil {
			p = *progress
		} else {
			p = ProgressFor(stepID, status)
		}
		if p < s.Progress {
			p = s.Progress
		}
		s.Progress = p

		if status == domain.StepError {
			s.Status = domain.StatusError
			s.Error = message
			s.CompletedAt = m.now()
		} else if stepID == StepComplete && status == domain.StepCompleted {
			s.Status = domain.StatusCompleted
			s.CompletedAt = m.now()
		}
	})
	if !ok {
		m.logger.Warn("update for unknown session", "analysisId", id, "step", stepID)
		return
	}
	if frozen {
		m.logger.Debug("update ignored for terminal session", "analysisId", id, "step", stepID)
		return
	}

	m.logger.Debug("step updated", "analysisId", id, "step", stepID, "status", status, "progress", snap.Progress)
	m.emit(snap, stepID, status, message)
}

func (m *manager) Complete(id, result string) {
	frozen := false
	snap, ok := m.store.Mutate(id, func(s *domain.Session) {
		if s.Terminal() {
			frozen = true
			return
		}
		s.Status = domain.StatusCompleted
		s.Result = result
		s.Progress = 100
		s.CurrentStep = StepComplete
		s.CompletedAt = m.now()
	})
	if !ok || frozen {
		return
	}

	metrics.AnalysisCompletedTotal.WithLabelValues(string(domain.StatusCompleted)).Inc()
	if d := snap.CompletedAt.Sub(snap.StartTime).Seconds(); d >= 0 {
		metrics.AnalysisDurationSeconds.WithLabelValues(string(domain.StatusCompleted)).Observe(d)
	}
	m.logger.Info("analysis workflow completed", "analysisId", id)

	m.emit(snap, StepComplete, domain.StepCompleted, "Analysis completed successfully")
}

func (m *manager) Fail(id, message string) {
	frozen := false
	snap, ok := m.store.Mutate(id, func(s *domain.Session) {
		if s.Terminal() {
			frozen = true
			return
		}
		s.Status = domain.StatusError
		s.Error = message
		s.CompletedAt = m.now()
	})
	if !ok || frozen {
		return
	}

	metrics.AnalysisCompletedTotal.WithLabelValues(string(domain.StatusError)).Inc()
	if d := snap.CompletedAt.Sub(snap.StartTime).Seconds(); d >= 0 {
		metrics.AnalysisDurationSeconds.WithLabelValues(string(domain.StatusError)).Observe(d)
	}
	m.logger.Error("analysis workflow failed", "analysisId", id, "err", message)

	m.emit(snap, snap.CurrentStep, domain.StepError, message)
}

func (m *manager) Status(id string) (*domain.AnalysisStatus, error) {
	sess := m.store.Get(id)
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	st := &domain.AnalysisStatus{
		ID:        sess.ID,
		Status:    sess.Status,
		Progress:  sess.Progress,
		Message:   fmt.Sprintf("Step: %s", sess.CurrentStep),
		StartTime: sess.StartTime,
		Error:     sess.Error,
	}
	if sess.Status == domain.StatusCompleted && !sess.CompletedAt.IsZero() {
		done := sess.CompletedAt
		st.CompletedTime = &done
	}
	return st, nil
}

func (m *manager) Session(id string) *domain.Session {
	return m.store.Get(id)
}

// MutateContext lets a pipeline stage fold accumulated data into the shared
// per-job context. Writes are serialized by the store lock; stages for one
// job run one at a time.
func (m *manager) MutateContext(id string, fn func(*domain.AnalysisContext)) {
	_, ok := m.store.Mutate(id, func(s *domain.Session) {
		if s.Context == nil {
			s.Context = &domain.AnalysisContext{AnalysisID: s.ID}
		}
		fn(s.Context)
	})
	if !ok {
		m.logger.Warn("context update for unknown session", "analysisId", id)
	}
}

func (m *manager) Subscribe(id string, sink Sink) {
	m.bc.Subscribe(id, sink)
	metrics.StreamSubscribers.Inc()
}

func (m *manager) Unsubscribe(id string) {
	if n := m.bc.SubscriberCount(id); n > 0 {
		metrics.StreamSubscribers.Sub(float64(n))
	}
	m.bc.Unsubscribe(id)
}

// Reap purges sessions older than maxAge regardless of completion state and
// tears down any lingering subscriptions for the purged ids.
func (m *manager) Reap(maxAge time.Duration) int {
	removed := m.store.PurgeOlderThan(maxAge, m.now())
	for _, id := range removed {
		m.Unsubscribe(id)
	}
	if len(removed) > 0 {
		metrics.SessionsReapedTotal.Add(float64(len(removed)))
		m.logger.Info("reaped stale sessions", "count", len(removed))
	}
	return len(removed)
}

func (m *manager) ActiveCount() int {
	return m.store.Count()
}

func (m *manager) emit(sess *domain.Session, step string, status domain.StepStatus, message string) {
	elapsed := m.now().Sub(sess.StartTime).Seconds()
	m.bc.Emit(sess.ID, domain.ProgressEvent{
		Step:        step,
		Status:      status,
		Message:     message,
		Progress:    sess.Progress,
		ElapsedTime: elapsed,
	})
}
