package webcam

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlidingWindow_RatesOverSamples(t *testing.T) {
	window := newSlidingWindow(time.Minute)
	base := time.Now()

	window.Add(base, true, false)
	window.Add(base.Add(time.Second), false, false)
	window.Add(base.Add(2*time.Second), false, true)
	window.Add(base.Add(3*time.Second), true, true)

	assert.Equal(t, 4, window.Size())
	assert.InDelta(t, 0.5, window.NoFaceRate(), 1e-9)
	assert.InDelta(t, 0.5, window.MultiFaceRate(), 1e-9)
}

func TestSlidingWindow_PrunesOldSamples(t *testing.T) {
	window := newSlidingWindow(10 * time.Second)
	base := time.Now()

	window.Add(base, false, false)
	window.Add(base.Add(time.Second), false, false)
	// 30 seconds later the first two samples are outside the span.
	window.Add(base.Add(30*time.Second), true, false)

	assert.Equal(t, 1, window.Size())
	assert.Zero(t, window.NoFaceRate())
}

func TestSlidingWindow_EmptyWindowReportsZero(t *testing.T) {
	window := newSlidingWindow(time.Minute)

	assert.Zero(t, window.Size())
	assert.Zero(t, window.NoFaceRate())
	assert.Zero(t, window.MultiFaceRate())
}
