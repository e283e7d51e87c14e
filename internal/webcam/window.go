package webcam

import "time"

type faceSample struct {
	at    time.Time
	face  bool
	multi bool
}

// slidingWindow keeps per-frame face observations for the last span and
// answers rate queries over it. Not safe for concurrent use; each session
// worker owns its own window.
type slidingWindow struct {
	span    time.Duration
	samples []faceSample
}

func newSlidingWindow(span time.Duration) *slidingWindow {
	return &slidingWindow{span: span}
}

func (w *slidingWindow) Add(at time.Time, face, multi bool) {
	w.samples = append(w.samples, faceSample{at: at, face: face, multi: multi})
	w.prune(at)
}

// prune drops samples older than the window span relative to now.
func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	first := 0
	for first < len(w.samples) && w.samples[first].at.Before(cutoff) {
		first++
	}
	if first > 0 {
		w.samples = append(w.samples[:0], w.samples[first:]...)
	}
}

func (w *slidingWindow) Size() int {
	return len(w.samples)
}

// NoFaceRate is the fraction of window samples with no face detected.
func (w *slidingWindow) NoFaceRate() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	missing := 0
	for _, s := range w.samples {
		if !s.face {
			missing++
		}
	}
	return float64(missing) / float64(len(w.samples))
}

// MultiFaceRate is the fraction of window samples with more than one face.
func (w *slidingWindow) MultiFaceRate() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	multi := 0
	for _, s := range w.samples {
		if s.multi {
			multi++
		}
	}
	return float64(multi) / float64(len(w.samples))
}
