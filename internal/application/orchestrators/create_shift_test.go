package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliefportal/internal/domain/apperr"
	"reliefportal/internal/domain/shift"
)

func validShiftInput() CreateShiftInput {
	start := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	return CreateShiftInput{
		Title:         "Sandbag filling",
		Location:      "Muizenberg depot",
		StartTime:     start,
		EndTime:       start.Add(4 * time.Hour),
		MaxVolunteers: 6,
		ActorID:       "admin-1",
	}
}

func TestExecuteCreateShift_Single(t *testing.T) {
	store := newMockShiftStore()
	deps := CreateShiftDeps{ShiftStore: store, Now: fixedClock, GenerateID: sequentialIDs("shift")}

	shifts, err := ExecuteCreateShift(context.Background(), validShiftInput(), deps)
	require.NoError(t, err)
	require.Len(t, shifts, 1)
	s := shifts[0]
	assert.Equal(t, "shift-1", s.ID)
	assert.Equal(t, shift.StatusOpen, s.Status)
	assert.Zero(t, s.CurrentVolunteers)
	assert.Empty(t, s.SeriesID)
	assert.Contains(t, store.shifts, "shift-1")
	assert.Zero(t, store.batches)
}

func TestExecuteCreateShift_Series(t *testing.T) {
	store := newMockShiftStore()
	deps := CreateShiftDeps{ShiftStore: store, Now: fixedClock, GenerateID: sequentialIDs("id")}
	in := validShiftInput()
	in.Recurrence = "FREQ=WEEKLY;COUNT=4"

	shifts, err := ExecuteCreateShift(context.Background(), in, deps)
	require.NoError(t, err)
	require.Len(t, shifts, 4)
	assert.Equal(t, 1, store.batches)
	for i, s := range shifts {
		assert.Equal(t, "id-1", s.SeriesID)
		assert.True(t, in.StartTime.AddDate(0, 0, 7*i).Equal(s.StartTime), "occurrence %d starts %s", i, s.StartTime)
		assert.Equal(t, 4*time.Hour, s.EndTime.Sub(s.StartTime))
	}
	assert.Len(t, store.shifts, 4)
}

func TestExecuteCreateShift_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateShiftInput)
	}{
		{"end before start", func(in *CreateShiftInput) { in.EndTime = in.StartTime.Add(-time.Hour) }},
		{"end equals start", func(in *CreateShiftInput) { in.EndTime = in.StartTime }},
		{"zero capacity", func(in *CreateShiftInput) { in.MaxVolunteers = 0 }},
		{"missing title", func(in *CreateShiftInput) { in.Title = "" }},
		{"missing start", func(in *CreateShiftInput) { in.StartTime = time.Time{} }},
		{"bad rule", func(in *CreateShiftInput) { in.Recurrence = "FREQ=SOMETIMES" }},
		{"unbounded rule", func(in *CreateShiftInput) { in.Recurrence = "FREQ=DAILY" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockShiftStore()
			in := validShiftInput()
			tt.mutate(&in)
			_, err := ExecuteCreateShift(context.Background(), in, CreateShiftDeps{ShiftStore: store, Now: fixedClock})
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
			assert.Empty(t, store.shifts)
		})
	}
}

func TestExecuteCancelShift(t *testing.T) {
	store := newMockShiftStore()
	store.shifts["s1"] = shift.Shift{ID: "s1", Status: shift.StatusOpen}
	store.shifts["s2"] = shift.Shift{ID: "s2", Status: shift.StatusCompleted}
	deps := CancelShiftDeps{ShiftStore: store, Now: fixedClock}

	s, err := ExecuteCancelShift(context.Background(), CancelShiftInput{ShiftID: "s1"}, deps)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusCancelled, s.Status)
	assert.Equal(t, shift.StatusCancelled, store.shifts["s1"].Status)

	_, err = ExecuteCancelShift(context.Background(), CancelShiftInput{ShiftID: "s1"}, deps)
	require.NoError(t, err, "cancelling twice is a no-op")

	_, err = ExecuteCancelShift(context.Background(), CancelShiftInput{ShiftID: "s2"}, deps)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.ErrorIs(t, err, shift.ErrShiftClosed)

	_, err = ExecuteCancelShift(context.Background(), CancelShiftInput{ShiftID: "missing"}, deps)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	store.err = errors.New("disk full")
	_, err = ExecuteCancelShift(context.Background(), CancelShiftInput{ShiftID: "s1"}, deps)
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))
}
