package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWeekStartOf(t *testing.T) {
	cases := []struct {
		name  string
		input time.Time
		want  time.Time
	}{
		{"monday maps to itself", time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"wednesday maps back to monday", time.Date(2026, 3, 4, 23, 59, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
		{"sunday belongs to the preceding monday", time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, WeekStartOf(tc.input))
		})
	}
}

func TestWeekEndOf(t *testing.T) {
	end := WeekEndOf(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), end)
}

func TestISOWeekday(t *testing.T) {
	require.Equal(t, 1, ISOWeekday(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 7, ISOWeekday(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)))
}

func TestParseDate(t *testing.T) {
	parsed, err := ParseDate("2026-03-04")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), parsed)

	_, err = ParseDate("04/03/2026")
	require.Error(t, err)
}
