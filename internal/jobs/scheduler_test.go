package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
	panic bool
}

func (s *countingSweeper) Sweep() {
	s.calls.Add(1)
	if s.panic {
		panic("sweep failed")
	}
}

func TestSchedulerRunsSweep(t *testing.T) {
	sw := &countingSweeper{}
	s := NewScheduler(sw, "* * * * * *", zerolog.Nop())
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return sw.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestSchedulerRecoversFromPanics(t *testing.T) {
	sw := &countingSweeper{panic: true}
	s := NewScheduler(sw, "* * * * * *", zerolog.Nop())
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return sw.calls.Load() >= 2 }, 4*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, "every so often", zerolog.Nop())
	assert.Error(t, s.Start())
}

func TestSchedulerDefaultsSchedule(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, "", zerolog.Nop())
	assert.Equal(t, DefaultSweepSchedule, s.schedule)
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop(context.Background()))
}
