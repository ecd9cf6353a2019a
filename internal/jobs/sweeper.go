// Package jobs holds scheduled background work.
package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// Expirer reverts lapsed holds and reports the units it freed.
type Expirer interface {
	ExpireHolds(ctx context.Context) ([]string, error)
}

// Sweeper runs an Expirer on a fixed interval.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	timeout  time.Duration
}

func NewSweeper(e Expirer, interval time.Duration) *Sweeper {
	return &Sweeper{expirer: e, interval: interval, timeout: 10 * time.Second}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	freed, err := s.expirer.ExpireHolds(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "expire holds")
	}
	if len(freed) > 0 {
		log.WithFields(log.Fields{"component": "sweeper", "units": len(freed)}).Info("expired holds reverted")
	}
	return len(freed), nil
}

// Run schedules Sweep every interval until ctx is done.  A pass still in
// flight when the next tick fires is not overlapped.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.Errorf("sweep interval must be positive, got %s", s.interval)
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+s.interval.String(), func() {
		if _, err := s.Sweep(ctx); err != nil {
			log.WithError(err).WithField("component", "sweeper").Warn("sweep failed")
		}
	}); err != nil {
		return errors.Wrap(err, "schedule sweeper")
	}
	c.Start()
	log.WithFields(log.Fields{"component": "sweeper", "interval": s.interval}).Info("sweeper started")
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
