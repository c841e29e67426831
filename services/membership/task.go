package membership

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gymgate/pkg/clock"
	"gymgate/pkg/config"
	"gymgate/pkg/taskname"
)

// HandleFinalizeSweep settles every membership whose state may have
// drifted past a calendar boundary: pending rows waiting for activation
// and active rows whose end date has passed. Runs nightly and after
// restores; each membership is finalized independently so one bad row
// never stalls the sweep.
func (s *Service) HandleFinalizeSweep(ctx context.Context, t *asynq.Task) error {
	today := clock.Today(s.clk)

	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&Membership{}).
		Where("status = ? OR (status = ? AND (end_date IS NULL OR end_date <= ?))",
			Pending, Active, today).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return err
	}

	if len(ids) == 0 {
		return nil
	}

	zap.L().Info("finalize sweep started", zap.Int("candidates", len(ids)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sweepConcurrency())

	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := s.Finalize(ctx, id); err != nil {
				zap.L().Error("failed to finalize membership",
					zap.String("membership_id", id), zap.Error(err))
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	zap.L().Info("finalize sweep finished", zap.Int("candidates", len(ids)))
	return nil
}

func (s *Service) sweepConcurrency() int {
	if s.cfg != nil && s.cfg.Sweep.BatchSize > 0 {
		return s.cfg.Sweep.BatchSize
	}
	return 8
}

func RegisterTaskHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(taskname.MembershipFinalizeSweep, svc.HandleFinalizeSweep)
}

// RegisterPeriodicTasks puts the nightly sweep on the scheduler. The
// default fires at 03:00 so the sweep lands after the org-timezone day
// flip, never during opening hours.
func RegisterPeriodicTasks(scheduler *asynq.Scheduler, cfg *config.Config) error {
	schedule := cfg.Sweep.Schedule
	if schedule == "" {
		schedule = "0 3 * * *"
	}

	_, err := scheduler.Register(schedule,
		asynq.NewTask(taskname.MembershipFinalizeSweep, nil),
		asynq.Queue("low"),
	)
	return err
}
