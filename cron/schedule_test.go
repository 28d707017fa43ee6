package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, expr string) *ValidatedSchedule {
	t.Helper()
	s, err := ParseSchedule(expr)
	require.NoError(t, err)
	return s
}

func TestParseScheduleRejectsWrongFieldCount(t *testing.T) {
	_, err := ParseSchedule("* * * * *")
	require.Error(t, err)
	var cronErr *InvalidCronExpressionError
	require.ErrorAs(t, err, &cronErr)
}

func TestParseScheduleRejectsOutOfRange(t *testing.T) {
	_, err := ParseSchedule("60 * * * * * *")
	require.Error(t, err)
	var cronErr *InvalidCronExpressionError
	require.ErrorAs(t, err, &cronErr)
	assert.Equal(t, 0, cronErr.FieldIndex)
}

func TestParseScheduleAcceptsAllForms(t *testing.T) {
	for _, expr := range []string{
		"* * * * * * *",
		"0 0 0 1 1 * *",
		"*/15 * * * * * *",
		"0 0-5 * * * * *",
		"0 0 0-10/2 * * * *",
		"0 0 0 1,15 * * *",
	} {
		_, err := ParseSchedule(expr)
		assert.NoError(t, err, "expected %q to parse", expr)
	}
}

func TestNextAfterAdvancesPastCurrentSecond(t *testing.T) {
	s := mustParse(t, "* * * * * * *")
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	next, ok := s.NextAfter(now)
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Second), next)
}

func TestNextAfterEveryTenSeconds(t *testing.T) {
	s := mustParse(t, "*/10 * * * * * *")
	now := time.Date(2026, 7, 31, 10, 0, 3, 0, time.UTC)
	next, ok := s.NextAfter(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 7, 31, 10, 0, 10, 0, time.UTC), next)
}

func TestNextAfterRollsOverMinuteHourDay(t *testing.T) {
	s := mustParse(t, "0 0 0 * * * *")
	now := time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC)
	next, ok := s.NextAfter(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), next)
}

func TestNextAfterPastYearIsUnsatisfiable(t *testing.T) {
	s := mustParse(t, "0 0 0 1 1 * 2000")
	_, ok := s.NextAfter(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestNextAfterStrictlyAscending(t *testing.T) {
	s := mustParse(t, "*/5 * * * * * *")
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	var fires []time.Time
	for i := 0; i < 5; i++ {
		next, ok := s.NextAfter(now)
		require.True(t, ok)
		fires = append(fires, next)
		now = next
	}
	for i := 1; i < len(fires); i++ {
		assert.True(t, fires[i].After(fires[i-1]))
	}
}

func TestScheduleStringIsCanonical(t *testing.T) {
	s, err := ParseSchedule("*/5   *  * * * * *")
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * * * *", s.String())
}
