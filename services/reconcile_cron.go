package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"prepai-backend/internal/config"
	"prepai-backend/internal/logger"
)

// ReconcileScheduler runs the periodic index-repair sweep. The sweep is a
// safety net behind the lazy per-request repair; a failed run only defers
// the repair to the next run or the next chat against the note.
type ReconcileScheduler struct {
	scheduler *gocron.Scheduler
	notes     *NotesService
	cfg       *config.Config
}

func NewReconcileScheduler(cfg *config.Config, notes *NotesService) *ReconcileScheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &ReconcileScheduler{scheduler: s, notes: notes, cfg: cfg}
}

// Start registers the sweep on the configured cron expression and begins
// running it in the background. No-op when the sweep is disabled.
func (r *ReconcileScheduler) Start() error {
	if !r.cfg.ReconcileEnabled {
		logger.Info("Reconcile sweep disabled")
		return nil
	}

	_, err := r.scheduler.Cron(r.cfg.ReconcileCron).Tag("reconcile-sweep").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		logger.Info("Starting reconcile sweep")
		if err := r.notes.ReconcileAll(ctx); err != nil {
			logger.Error("Reconcile sweep finished with failures", "error", err)
			return
		}
		logger.Info("Reconcile sweep completed")
	})
	if err != nil {
		return err
	}

	r.scheduler.StartAsync()
	logger.Info("Reconcile sweep scheduled", "cron", r.cfg.ReconcileCron)
	return nil
}

func (r *ReconcileScheduler) Stop() {
	r.scheduler.Stop()
}
