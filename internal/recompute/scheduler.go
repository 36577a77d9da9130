package recompute

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler drives recompute passes: once at start, then on a fixed
// interval, with an optional cron-scheduled digest notification
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	digest   cron.Schedule
	stopChan chan struct{}
	log      zerolog.Logger
}

// NewScheduler creates a scheduler. digestCron may be empty to disable the
// digest; otherwise it is a standard 5-field cron expression.
func NewScheduler(engine *Engine, interval time.Duration, digestCron string, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		engine:   engine,
		interval: interval,
		stopChan: make(chan struct{}),
		log:      logger,
	}

	if digestCron != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		sched, err := parser.Parse(digestCron)
		if err != nil {
			return nil, err
		}
		s.digest = sched
	}

	return s, nil
}

// Start runs the scheduler loop until the context is cancelled or Stop is
// called. The first recompute pass runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	if _, err := s.engine.Recompute(time.Now()); err != nil {
		s.log.Error().Err(err).Msg("initial recompute failed")
	}

	var nextDigest time.Time
	if s.digest != nil {
		nextDigest = s.digest.Next(time.Now())
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			now := time.Now()
			if _, err := s.engine.Recompute(now); err != nil {
				s.log.Error().Err(err).Msg("scheduled recompute failed")
			}
			if s.digest != nil && now.After(nextDigest) {
				if err := s.engine.Digest(now); err != nil {
					s.log.Error().Err(err).Msg("digest failed")
				}
				nextDigest = s.digest.Next(now)
			}
		}
	}
}

// Stop stops the scheduler loop
func (s *Scheduler) Stop() {
	close(s.stopChan)
}
