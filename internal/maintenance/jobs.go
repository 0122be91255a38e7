package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shrimp/internal/clock"
	"shrimp/internal/ratelimit"
)

// Purger deletes links that expired before now minus a retention period.
type Purger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// SweepJob drops expired rate limiter windows once per window length.
func SweepJob(l *ratelimit.Limiter, c clock.Clock, log *zap.Logger) Job {
	return Job{
		Name:     "sweep-" + l.Name(),
		Interval: l.Window(),
		Run: func(context.Context) error {
			if removed := l.Sweep(c.Now()); removed > 0 {
				log.Debug("rate limiter swept", zap.String("limiter", l.Name()), zap.Int("removed", removed))
			}
			return nil
		},
	}
}

// PurgeJob removes links that have been expired for longer than retention.
func PurgeJob(p Purger, interval, retention time.Duration, log *zap.Logger) Job {
	return Job{
		Name:     "purge-expired-links",
		Interval: interval,
		Run: func(ctx context.Context) error {
			removed, err := p.PurgeExpired(ctx, retention)
			if err != nil {
				return err
			}
			log.Info("expired links purged", zap.Int64("removed", removed), zap.Duration("retention", retention))
			return nil
		},
	}
}
