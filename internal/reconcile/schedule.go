package reconcile

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/video-uploader/pkg/icron"
	"github.com/MimeLyc/video-uploader/pkg/log"
)

// Schedule registers a RetryAll sweep on c. Overlapping triggers collapse into the
// sweep already running.
func (s *Service) Schedule(ctx context.Context, c *cron.Cron, expr string) (cron.EntryID, error) {
	log.Info("Scheduling reconcile sweep with %q", expr)

	runFunc := func() {
		_, _, _ = s.group.Do("sweep", func() (any, error) {
			report, err := s.RetryAll(ctx)
			if err != nil {
				log.Error("Reconcile sweep failed: %v", err)
				return nil, err
			}
			log.Info("Reconcile sweep done: %d retried, %d still failing", len(report.Retried), len(report.Failed))
			return report, nil
		})
	}
	return c.AddFunc(expr, runFunc)
}

// NextSweep reports when the sweep described by expr last and next fires.
func NextSweep(expr string, now time.Time) (*icron.TriggerInfo, error) {
	return icron.GetTriggerInfo(expr, now)
}
