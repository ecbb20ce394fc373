package jobs

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule runs the sweep at the top of every minute.
const DefaultSweepSchedule = "0 * * * * *"

// Sweeper tidies state that otherwise expires lazily.
type Sweeper interface {
	Sweep()
}

type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	log      zerolog.Logger
}

func NewScheduler(sweeper Sweeper, schedule string, log zerolog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger{log})))
	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.sweeper == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("sweep scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish or ctx
// to end, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) sweep() {
	s.sweeper.Sweep()
}

// cronLogger adapts zerolog to cron.Logger for the recover wrapper.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
