package metrics

import (
	"math"
	"sort"
	"sync"

	"proctor-go/internal/models"
)

// MetricResult is the outcome of one computed metric. Calculated=false
// means there was not enough data to compute it.
type MetricResult struct {
	Value      float64 `json:"value"`
	Calculated bool    `json:"calculated"`
	SampleSize int     `json:"sampleSize,omitempty"`
}

// InterKeyIntervals extracts the gaps between consecutive keydown events,
// in milliseconds, after sorting by client timestamp. Keyup events only
// matter for hold-time metrics and are ignored here.
func InterKeyIntervals(events []models.KeystrokeEvent) []float64 {
	keydowns := make([]models.KeystrokeEvent, 0, len(events))
	for _, event := range events {
		if event.Type == "keydown" {
			keydowns = append(keydowns, event)
		}
	}
	sort.Slice(keydowns, func(i, j int) bool {
		return keydowns[i].Timestamp < keydowns[j].Timestamp
	})

	intervals := make([]float64, 0, len(keydowns))
	for i := 1; i < len(keydowns); i++ {
		interval := keydowns[i].Timestamp - keydowns[i-1].Timestamp
		if interval >= 0 {
			intervals = append(intervals, interval)
		}
	}
	return intervals
}

// KeydownCount returns the number of keydown events in a batch.
func KeydownCount(events []models.KeystrokeEvent) int {
	count := 0
	for _, event := range events {
		if event.Type == "keydown" {
			count++
		}
	}
	return count
}

// filterOutliers drops intervals above 1.5x the 95th percentile. Long
// thinking pauses would otherwise swamp the rhythm statistics.
func filterOutliers(intervals []float64) []float64 {
	if len(intervals) < 3 {
		return intervals
	}

	sorted := make([]float64, len(intervals))
	copy(sorted, intervals)
	sort.Float64s(sorted)

	p95idx := int(float64(len(sorted)) * 0.95)
	if p95idx >= len(sorted) {
		p95idx = len(sorted) - 1
	}
	maxInterval := sorted[p95idx] * 1.5

	filtered := make([]float64, 0, len(intervals))
	for _, interval := range intervals {
		if interval <= maxInterval {
			filtered = append(filtered, interval)
		}
	}
	return filtered
}

// TypingBaseline accumulates a session's reference keystroke rhythm. The
// baseline is the mean and variance of inter-key intervals collected until
// the minimum sample size is reached; batches after that are compared
// against it. Safe for concurrent use; typing batches may arrive in
// parallel with other signal traffic.
type TypingBaseline struct {
	mu        sync.Mutex
	intervals []float64
	minSample int

	established bool
	mean        float64
	stddev      float64
}

// NewTypingBaseline creates a baseline that requires minSample keydown
// intervals before it can be used for comparison.
func NewTypingBaseline(minSample int) *TypingBaseline {
	if minSample < 2 {
		minSample = 2
	}
	return &TypingBaseline{minSample: minSample}
}

// Established reports whether enough data has accumulated.
func (b *TypingBaseline) Established() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.established
}

// SampleSize returns the number of intervals folded into the baseline.
func (b *TypingBaseline) SampleSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.intervals)
}

// Mean returns the baseline mean inter-key interval in milliseconds.
func (b *TypingBaseline) Mean() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mean
}

// Add folds a batch of intervals into the baseline. It returns true once
// the baseline has just become established.
func (b *TypingBaseline) Add(intervals []float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.established {
		return false
	}
	b.intervals = append(b.intervals, intervals...)
	if len(b.intervals) < b.minSample {
		return false
	}

	filtered := filterOutliers(b.intervals)
	if len(filtered) < b.minSample/2 {
		// Too noisy to trust yet; wait for more data.
		return false
	}
	b.mean, b.stddev = meanStddev(filtered)
	if b.stddev <= 0 {
		// A perfectly uniform rhythm is itself suspicious, but it cannot
		// anchor a distance metric. Use a small floor instead.
		b.stddev = 1
	}
	b.established = true
	return true
}

// Score compares a batch of intervals against the established baseline and
// returns an anomaly score in [0, 1). Zero means the batch matches the
// baseline rhythm; values near one mean the rhythm changed drastically,
// e.g. paste-typing or a different person at the keyboard.
func (b *TypingBaseline) Score(intervals []float64) MetricResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.established {
		return MetricResult{Calculated: false, SampleSize: len(intervals)}
	}
	filtered := filterOutliers(intervals)
	if len(filtered) < 3 {
		return MetricResult{Calculated: false, SampleSize: len(filtered)}
	}

	mean, stddev := meanStddev(filtered)

	// Normalized distance between batch and baseline: shift of the mean in
	// baseline standard deviations, plus relative spread change.
	meanShift := math.Abs(mean-b.mean) / b.stddev
	spreadShift := math.Abs(stddev-b.stddev) / b.stddev
	raw := 0.6*meanShift + 0.4*spreadShift

	// Squash into [0, 1); monotonic in the raw distance.
	anomaly := raw / (1.0 + raw)
	return MetricResult{Value: anomaly, Calculated: true, SampleSize: len(filtered)}
}

func meanStddev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}
	var variance float64
	for _, v := range values {
		variance += math.Pow(v-mean, 2)
	}
	variance /= float64(len(values) - 1)
	return mean, math.Sqrt(variance)
}
