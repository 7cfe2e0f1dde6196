package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preparingOrder(start time.Time, durationMinutes int) *Order {
	return &Order{
		ID:                     "o-1",
		Status:                 StatusPreparing,
		CookingStartTime:       &start,
		CookingDurationMinutes: durationMinutes,
	}
}

func TestComputeTimer_PreconditionFailed(t *testing.T) {
	now := time.Now().UTC()

	// wrong status
	o := preparingOrder(now, 30)
	o.Status = StatusConfirmed
	_, err := ComputeTimer(o, now, 15)
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	// no cooking start timestamp
	o = &Order{Status: StatusPreparing, CookingDurationMinutes: 30}
	_, err = ComputeTimer(o, now, 15)
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestComputeTimer_OnTrack(t *testing.T) {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	o := preparingOrder(start, 30)

	timer, err := ComputeTimer(o, start.Add(12*time.Minute), 15)
	require.NoError(t, err)

	assert.Equal(t, 12, timer.ElapsedMinutes)
	assert.Equal(t, 18, timer.RemainingMinutes)
	assert.False(t, timer.IsOverdue)
	assert.False(t, timer.IsUrgent)
	assert.False(t, timer.SLAViolation)
}

func TestComputeTimer_Urgent(t *testing.T) {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	o := preparingOrder(start, 30)

	// exactly at the urgent threshold
	timer, err := ComputeTimer(o, start.Add(20*time.Minute), 15)
	require.NoError(t, err)
	assert.Equal(t, 10, timer.RemainingMinutes)
	assert.True(t, timer.IsUrgent)
	assert.False(t, timer.IsOverdue)

	// just above the threshold is not urgent
	timer, err = ComputeTimer(o, start.Add(19*time.Minute), 15)
	require.NoError(t, err)
	assert.Equal(t, 11, timer.RemainingMinutes)
	assert.False(t, timer.IsUrgent)
}

func TestComputeTimer_Overdue(t *testing.T) {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	o := preparingOrder(start, 30)

	// remaining == 0 is overdue, not urgent
	timer, err := ComputeTimer(o, start.Add(30*time.Minute), 15)
	require.NoError(t, err)
	assert.Equal(t, 0, timer.RemainingMinutes)
	assert.True(t, timer.IsOverdue)
	assert.False(t, timer.IsUrgent)
	assert.False(t, timer.SLAViolation)

	// negative remaining stays overdue
	timer, err = ComputeTimer(o, start.Add(40*time.Minute), 15)
	require.NoError(t, err)
	assert.Equal(t, -10, timer.RemainingMinutes)
	assert.True(t, timer.IsOverdue)
}

func TestComputeTimer_SLAViolation(t *testing.T) {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	o := preparingOrder(start, 30)

	// elapsed == duration + grace is still inside the grace window
	timer, err := ComputeTimer(o, start.Add(45*time.Minute), 15)
	require.NoError(t, err)
	assert.False(t, timer.SLAViolation)

	// one minute past the grace flips the flag
	timer, err = ComputeTimer(o, start.Add(46*time.Minute), 15)
	require.NoError(t, err)
	assert.True(t, timer.SLAViolation)
}

func TestComputeTimer_DefaultGrace(t *testing.T) {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	o := preparingOrder(start, 30)

	// grace <= 0 falls back to the default of 15
	timer, err := ComputeTimer(o, start.Add(46*time.Minute), 0)
	require.NoError(t, err)
	assert.True(t, timer.SLAViolation)
}

func TestComputeTimer_Pure(t *testing.T) {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	o := preparingOrder(start, 30)
	now := start.Add(17 * time.Minute)

	first, err := ComputeTimer(o, now, 15)
	require.NoError(t, err)
	second, err := ComputeTimer(o, now, 15)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
