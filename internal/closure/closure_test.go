package closure

import (
	"testing"
	"time"

	"github.com/middleworldfarms/soilsync/internal/config"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestResolveInsideWindowDefers(t *testing.T) {
	cal := NewCalendar(&Window{
		Start:         date("2025-12-21"),
		End:           date("2026-04-30"),
		ResumeBilling: date("2026-05-01"),
	})

	for _, candidate := range []string{"2025-12-21", "2026-01-15", "2026-04-30"} {
		d := cal.Resolve(date(candidate))
		require.True(t, d.Defer, "candidate %s should defer", candidate)
		require.Equal(t, date("2026-05-01"), d.ResumeBilling)
	}
}

func TestResolveOutsideWindowProceeds(t *testing.T) {
	cal := NewCalendar(&Window{
		Start:         date("2025-12-21"),
		End:           date("2026-04-30"),
		ResumeBilling: date("2026-05-01"),
	})

	for _, candidate := range []string{"2025-12-20", "2026-05-01", "2026-08-01"} {
		require.False(t, cal.Resolve(date(candidate)).Defer, "candidate %s should proceed", candidate)
	}
}

func TestResolveWithoutWindow(t *testing.T) {
	require.False(t, NewCalendar(nil).Resolve(date("2026-01-01")).Defer)
}

func TestFromConfig(t *testing.T) {
	cal, err := FromConfig(config.ClosureConfig{
		Start:         "2025-12-21",
		End:           "2026-04-30",
		ResumeBilling: "2026-05-01",
	})
	require.NoError(t, err)
	require.True(t, cal.Resolve(date("2026-02-14")).Defer)

	cal, err = FromConfig(config.ClosureConfig{})
	require.NoError(t, err)
	require.False(t, cal.Resolve(date("2026-02-14")).Defer)

	_, err = FromConfig(config.ClosureConfig{Start: "not-a-date", End: "2026-04-30", ResumeBilling: "2026-05-01"})
	require.Error(t, err)
}
