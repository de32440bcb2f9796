package application

import (
	"context"
	"log/slog"
	"time"
)

// Reconciler is the slice of ReconcileService the scheduler needs.
type Reconciler interface {
	Run(ctx context.Context) (*RunSummary, error)
	HasUpdatedToday(ctx context.Context) (bool, error)
}

// Scheduler triggers reconciliation runs on a fixed interval, but only inside
// the daily update window (both boundary hours inclusive) and at most once
// per calendar day. The feeds publish during business hours, so ticks outside
// the window are skipped rather than queued.
type Scheduler struct {
	service   Reconciler
	interval  time.Duration
	startHour int
	endHour   int
	stopChan  chan struct{}
	now       func() time.Time
}

func NewScheduler(service Reconciler, interval time.Duration, startHour, endHour int) *Scheduler {
	return &Scheduler{
		service:   service,
		interval:  interval,
		startHour: startHour,
		endHour:   endHour,
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Update scheduler started",
		"interval", s.interval, "start_hour", s.startHour, "end_hour", s.endHour)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			slog.Info("Update scheduler stopped")
			return
		case <-ctx.Done():
			slog.Info("Update scheduler stopped due to context cancellation")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	hour := s.now().Hour()
	if hour < s.startHour || hour > s.endHour {
		return
	}

	done, err := s.service.HasUpdatedToday(ctx)
	if err != nil {
		slog.Error("Error checking last update", "error", err)
		return
	}
	if done {
		return
	}

	if _, err := s.service.Run(ctx); err != nil {
		slog.Error("Scheduled reconciliation failed", "error", err)
	}
}

func (s *Scheduler) Stop() {
	close(s.stopChan)
}
