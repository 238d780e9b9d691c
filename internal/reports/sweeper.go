package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/osvaldoandrade/aquaq/internal/workflow"
)

// SweeperService drives the report sweep and the session reaper on one
// shared timer. The loop stops when the context is cancelled; tests call
// RunOnce directly instead of waiting on the ticker.
type SweeperService interface {
	Start(ctx context.Context)
	RunOnce(now time.Time)
}

type sweeperService struct {
	tracker       *Tracker
	mgr           workflow.Manager
	logger        *slog.Logger
	interval      time.Duration
	sessionMaxAge time.Duration
}

func NewSweeperService(tracker *Tracker, mgr workflow.Manager, logger *slog.Logger, interval, sessionMaxAge time.Duration) SweeperService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if sessionMaxAge <= 0 {
		sessionMaxAge = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &sweeperService{
		tracker:       tracker,
		mgr:           mgr,
		logger:        logger,
		interval:      interval,
		sessionMaxAge: sessionMaxAge,
	}
}

func (s *sweeperService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(time.Now())
		}
	}
}

func (s *sweeperService) RunOnce(now time.Time) {
	if n := s.tracker.Sweep(now); n > 0 {
		s.logger.Info("swept expired reports", "count", n)
	}
	if s.mgr != nil {
		s.mgr.Reap(s.sessionMaxAge)
	}
}
