package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Job is one periodic unit of work
type Job func(ctx context.Context) error

type Scheduler struct {
	name     string
	job      Job
	interval time.Duration
}

func NewScheduler(name string, job Job, interval time.Duration) *Scheduler {
	return &Scheduler{
		name:     name,
		job:      job,
		interval: interval,
	}
}

// Start runs the job immediately and then on every tick until ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log := logrus.WithField("job", s.name)
	log.WithField("interval", s.interval.String()).Info("Scheduler started")

	s.run(ctx, log)
	for {
		select {
		case <-ticker.C:
			s.run(ctx, log)
		case <-ctx.Done():
			log.Info("Scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, log *logrus.Entry) {
	if err := s.job(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("Scheduled job failed")
	}
}
