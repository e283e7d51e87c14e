package metrics

import (
	"testing"

	"proctor-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// batch builds alternating keydown events with a fixed gap in milliseconds.
func batch(start float64, gap float64, count int) []models.KeystrokeEvent {
	events := make([]models.KeystrokeEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, models.KeystrokeEvent{
			Type:      "keydown",
			Key:       "a",
			Timestamp: start + float64(i)*gap,
		})
	}
	return events
}

func TestInterKeyIntervals_IgnoresKeyups(t *testing.T) {
	events := []models.KeystrokeEvent{
		{Type: "keydown", Key: "a", Timestamp: 0},
		{Type: "keyup", Key: "a", Timestamp: 80},
		{Type: "keydown", Key: "b", Timestamp: 150},
		{Type: "keyup", Key: "b", Timestamp: 210},
		{Type: "keydown", Key: "c", Timestamp: 300},
	}

	intervals := InterKeyIntervals(events)

	require.Len(t, intervals, 2)
	assert.Equal(t, 150.0, intervals[0])
	assert.Equal(t, 150.0, intervals[1])
}

func TestInterKeyIntervals_SortsByTimestamp(t *testing.T) {
	events := []models.KeystrokeEvent{
		{Type: "keydown", Key: "b", Timestamp: 200},
		{Type: "keydown", Key: "a", Timestamp: 100},
		{Type: "keydown", Key: "c", Timestamp: 350},
	}

	intervals := InterKeyIntervals(events)

	require.Len(t, intervals, 2)
	assert.Equal(t, 100.0, intervals[0])
	assert.Equal(t, 150.0, intervals[1])
}

func TestTypingBaseline_NotEstablishedBelowMinimumSample(t *testing.T) {
	baseline := NewTypingBaseline(20)

	baseline.Add(InterKeyIntervals(batch(0, 120, 10)))

	assert.False(t, baseline.Established())

	result := baseline.Score([]float64{120, 120, 120, 120})
	assert.False(t, result.Calculated, "no score before the baseline exists")
}

func TestTypingBaseline_EstablishesAcrossBatches(t *testing.T) {
	baseline := NewTypingBaseline(20)

	established := baseline.Add(InterKeyIntervals(batch(0, 120, 12)))
	assert.False(t, established)

	established = baseline.Add(InterKeyIntervals(batch(10000, 130, 12)))
	assert.True(t, established)
	assert.True(t, baseline.Established())
	assert.InDelta(t, 125, baseline.Mean(), 10)
}

func TestTypingBaseline_SimilarRhythmScoresLow(t *testing.T) {
	baseline := NewTypingBaseline(20)
	// Slightly noisy ~120ms rhythm.
	noisy := make([]float64, 0, 30)
	for i := 0; i < 30; i++ {
		noisy = append(noisy, 120+float64(i%5)*8)
	}
	baseline.Add(noisy)
	require.True(t, baseline.Established())

	result := baseline.Score([]float64{118, 126, 133, 121, 124, 138, 120, 129})

	require.True(t, result.Calculated)
	assert.Less(t, result.Value, 0.5)
}

func TestTypingBaseline_ShiftedRhythmScoresHigh(t *testing.T) {
	baseline := NewTypingBaseline(20)
	noisy := make([]float64, 0, 30)
	for i := 0; i < 30; i++ {
		noisy = append(noisy, 120+float64(i%5)*8)
	}
	baseline.Add(noisy)
	require.True(t, baseline.Established())

	// Machine-like 5ms gaps, the signature of a paste or injection tool.
	result := baseline.Score([]float64{5, 5, 5, 5, 5, 5, 5, 5})

	require.True(t, result.Calculated)
	assert.Greater(t, result.Value, 0.7)
}

func TestTypingBaseline_ScoreStaysInRange(t *testing.T) {
	baseline := NewTypingBaseline(10)
	baseline.Add([]float64{100, 110, 105, 95, 90, 115, 100, 108, 97, 103, 101, 99})
	require.True(t, baseline.Established())

	for _, probe := range [][]float64{
		{1, 1, 1, 1},
		{100, 100, 100, 100},
		{10000, 9000, 11000, 10500},
	} {
		result := baseline.Score(probe)
		if result.Calculated {
			assert.GreaterOrEqual(t, result.Value, 0.0)
			assert.Less(t, result.Value, 1.0)
		}
	}
}

func TestFilterOutliers_DropsLongPauses(t *testing.T) {
	intervals := []float64{100, 110, 95, 105, 102, 98, 30000}

	filtered := filterOutliers(intervals)

	assert.NotContains(t, filtered, 30000.0)
	assert.GreaterOrEqual(t, len(filtered), 6)
}
