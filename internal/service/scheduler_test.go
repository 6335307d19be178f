package service

import (
	"context"
	"testing"
	"time"

	"SportsNations/internal/config"
	"SportsNations/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunOnceUsesYearOffset(t *testing.T) {
	var gotYear int
	c := &fakeConnector{
		fetch: func(_ context.Context, year int, _ string) model.SnapshotResult {
			gotYear = year
			return model.Skipped(model.ErrMissingCredential)
		},
	}
	env := newTestEnv(t, c)
	s := NewScheduler(env.svc, NewValidator(env.store.DB(), env.logger), config.ScheduleConfig{YearOffset: -1}, env.logger)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }

	run := s.RunOnce(context.Background())
	require.NoError(t, run.Err)
	assert.Equal(t, 2023, gotYear)
	assert.Equal(t, 2023, run.SeasonYear)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, model.ImportSkipped, run.Outcomes[0].Status)
	assert.True(t, run.Validation.Passed)
	assert.Same(t, run, s.Last())
}

func TestSchedulerStartWithoutCron(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{})
	s := NewScheduler(env.svc, NewValidator(env.store.DB(), env.logger), config.ScheduleConfig{}, env.logger)
	require.NoError(t, s.Start(context.Background()))
	assert.Nil(t, s.Last())
}

func TestSchedulerRejectsBadCron(t *testing.T) {
	env := newTestEnv(t, &fakeConnector{})
	s := NewScheduler(env.svc, NewValidator(env.store.DB(), env.logger), config.ScheduleConfig{Cron: "not a cron"}, env.logger)
	assert.Error(t, s.Start(context.Background()))
}
