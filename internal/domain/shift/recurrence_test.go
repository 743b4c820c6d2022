package shift_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefportal/internal/domain/shift"
)

func TestExpand_WeeklyCount(t *testing.T) {
	tmpl := validShift()
	shifts, err := shift.Expand(tmpl, "FREQ=WEEKLY;COUNT=4", "series-1")
	require.NoError(t, err)
	require.Len(t, shifts, 4)

	for i, s := range shifts {
		wantStart := start.AddDate(0, 0, 7*i)
		assert.True(t, s.StartTime.Equal(wantStart), "occurrence %d start = %v", i, s.StartTime)
		assert.Equal(t, 4*time.Hour, s.EndTime.Sub(s.StartTime))
		assert.Equal(t, "series-1", s.SeriesID)
		assert.Equal(t, tmpl.Title, s.Title)
	}
}

func TestExpand_UnboundedRuleRejected(t *testing.T) {
	_, err := shift.Expand(validShift(), "FREQ=DAILY", "series-1")
	assert.ErrorIs(t, err, shift.ErrTooManyOccurrences)
}

func TestExpand_InvalidRule(t *testing.T) {
	_, err := shift.Expand(validShift(), "FREQ=SOMETIMES", "series-1")
	assert.Error(t, err)
}
