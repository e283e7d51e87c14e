package services

import (
	"context"
	"time"

	"proctor-go/internal/integrity"
	"proctor-go/internal/repository"
	"proctor-go/internal/session"
	"proctor-go/internal/webcam"

	"go.uber.org/zap"
)

// Sweeper enforces the assessment time limit. The client never decides
// when a session expires; this service scans live sessions and expires the
// ones past their assessment's max duration.
type Sweeper struct {
	log      *zap.Logger
	store    *repository.Store
	manager  *session.Manager
	monitor  *webcam.Monitor
	analyzer *integrity.Analyzer
	interval time.Duration

	stop chan struct{}
}

func NewSweeper(log *zap.Logger, store *repository.Store, manager *session.Manager, monitor *webcam.Monitor, analyzer *integrity.Analyzer, interval time.Duration) *Sweeper {
	return &Sweeper{
		log:      log,
		store:    store,
		manager:  manager,
		monitor:  monitor,
		analyzer: analyzer,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs the sweeper in a goroutine.
func (s *Sweeper) Start() {
	s.log.Info("Starting session expiry sweeper...", zap.Duration("interval", s.interval))
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runSweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweeper loop.
func (s *Sweeper) Stop() {
	close(s.stop)
}

func (s *Sweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	sessions, err := s.store.ListStartedLiveSessions(ctx)
	if err != nil {
		s.log.Error("Failed to list live sessions for expiry sweep", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for _, candidate := range sessions {
		limit := s.manager.MaxDuration(candidate.AssessmentID)
		if candidate.StartedAt == nil || now.Sub(*candidate.StartedAt) < limit {
			continue
		}

		if _, err := s.manager.Expire(ctx, candidate.ID); err != nil {
			// A concurrent submit may have won; that's the desired outcome.
			s.log.Debug("Expire skipped",
				zap.String("sessionID", candidate.ID),
				zap.Error(err),
			)
			continue
		}
		s.monitor.CloseSession(candidate.ID)
		s.analyzer.ForgetSession(candidate.ID)
		s.log.Info("Session expired",
			zap.String("sessionID", candidate.ID),
			zap.Duration("limit", limit),
		)
	}
}
