package webcam

import (
	"context"
	"time"
)

// Frame is one webcam capture handed to the monitor. The engine never
// touches pixel data itself; Ref points at wherever the upload pipeline
// stored the image.
type Frame struct {
	SessionID      string
	SequenceNumber uint64
	CapturedAt     time.Time
	Ref            string
}

// Analysis is the outcome of analyzing a single frame.
type Analysis struct {
	FaceDetected          bool    `json:"faceDetected"`
	MultipleFacesDetected bool    `json:"multipleFacesDetected"`
	Confidence            float64 `json:"confidence"`
}

// FrameAnalyzer is the pluggable per-frame analysis capability. Concrete
// CV implementations are adapters behind this interface; the engine only
// depends on the result shape.
type FrameAnalyzer interface {
	Analyze(ctx context.Context, frame Frame) (Analysis, error)
}

// StubAnalyzer is the default adapter used when no CV backend is wired.
// It reports a single present face at a fixed confidence, which keeps the
// pipeline exercised without penalizing anyone.
type StubAnalyzer struct {
	Confidence float64
}

func (s StubAnalyzer) Analyze(ctx context.Context, frame Frame) (Analysis, error) {
	return Analysis{FaceDetected: true, Confidence: s.Confidence}, nil
}
