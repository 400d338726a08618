package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabriellymonarca/Ecotrack/internal/config"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func TestNextAfter_MonthlySchedule(t *testing.T) {
	loc := saoPaulo(t)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"mid month", time.Date(2026, 3, 15, 10, 0, 0, 0, loc), time.Date(2026, 4, 1, 2, 0, 0, 0, loc)},
		{"first day before two", time.Date(2026, 4, 1, 1, 59, 0, 0, loc), time.Date(2026, 4, 1, 2, 0, 0, 0, loc)},
		{"first day after two", time.Date(2026, 4, 1, 2, 0, 1, 0, loc), time.Date(2026, 5, 1, 2, 0, 0, 0, loc)},
		{"year rollover", time.Date(2026, 12, 20, 0, 0, 0, 0, loc), time.Date(2027, 1, 1, 2, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextAfter("0 2 1 * *", loc, tt.now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestNextAfter_UsesLocation(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

	got, err := NextAfter("0 2 1 * *", loc, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 1, 5, 0, 0, 0, time.UTC), got.UTC())
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New(config.SchedulerConfig{Spec: "every month", Timezone: "UTC"}, func(context.Context) error { return nil },
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(config.SchedulerConfig{Spec: "0 2 1 * *", Timezone: "America/Sao_Paulo"},
		func(context.Context) error { return nil },
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.True(t, s.Next().IsZero())
	s.Start()
	next := s.Next()
	assert.False(t, next.IsZero())
	assert.Equal(t, 1, next.Day())
	assert.Equal(t, 2, next.Hour())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestScheduler_RunsJob(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New(config.SchedulerConfig{Spec: "@every 10ms", Timezone: "UTC"},
		func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background()) //nolint:errcheck // test cleanup

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
