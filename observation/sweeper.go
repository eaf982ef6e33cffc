package observation

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 5 * time.Minute

// StartSweeper schedules SweepOrphans. An empty or "off" schedule disables
// it and returns a nil scheduler.
func StartSweeper(svc *Service, schedule string, grace time.Duration, log *zap.Logger) (*cron.Cron, error) {
	if schedule == "" || schedule == "off" {
		return nil, nil
	}
	sched := cron.New()
	_, err := sched.AddFunc(schedule, func() {
		defer func() {
			if err := recover(); err != nil {
				log.Error("orphan sweep panicked", zap.Any("error", err))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		start := time.Now()
		n, err := svc.SweepOrphans(ctx, grace)
		if err != nil {
			log.Error("orphan sweep failed", zap.Error(err))
			return
		}
		log.Info("orphan sweep finished", zap.Int("removed", n), zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return nil, err
	}
	sched.Start()
	return sched, nil
}
