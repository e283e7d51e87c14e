package models

import "time"

// Severity buckets for security events.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Known security event types. The processor accepts unknown types too;
// clients evolve faster than this list.
const (
	EventWindowBlur     = "window_blur"
	EventTabSwitch      = "tab_switch"
	EventFullscreenExit = "fullscreen_exit"
	EventRightClick     = "right_click"
	EventCopyAttempt    = "copy_attempt"
	EventPasteAttempt   = "paste_attempt"
	EventDeviceChange   = "device_change"
	EventAttentionLoss  = "attention_loss"
)

// SecurityEvent is an append-only record of a discrete suspicious signal.
// Rows are never updated or deleted; ordering is by Timestamp with the
// auto-increment ID as tiebreak.
type SecurityEvent struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID string    `gorm:"index;size:36" json:"sessionId"`
	Type      string    `gorm:"size:48" json:"type"`
	Severity  Severity  `gorm:"size:8" json:"severity"`
	Details   string    `gorm:"type:text" json:"details,omitempty"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	CreatedAt time.Time `json:"-"`
}

// WebcamFrameRecord is the stored outcome of one webcam frame. Dropped
// frames keep their sequence number so the per-session sequence stays
// strictly increasing.
type WebcamFrameRecord struct {
	ID                    uint      `gorm:"primaryKey" json:"-"`
	SessionID             string    `gorm:"index;size:36" json:"sessionId"`
	SequenceNumber        uint64    `json:"sequenceNumber"`
	CapturedAt            time.Time `json:"capturedAt"`
	FaceDetected          bool      `json:"faceDetected"`
	MultipleFacesDetected bool      `json:"multipleFacesDetected"`
	Confidence            float64   `json:"confidence"`
	Dropped               bool      `json:"dropped"`
	CreatedAt             time.Time `json:"-"`
}

// PlagiarismCheck records one similarity comparison for a submitted answer.
// LowConfidence marks results degraded by short input or detector timeout;
// those still append but reviewers see them as "insufficient data".
type PlagiarismCheck struct {
	ID              uint      `gorm:"primaryKey" json:"-"`
	SessionID       string    `gorm:"index;size:36" json:"sessionId"`
	QuestionID      string    `gorm:"size:64" json:"questionId"`
	SimilarityScore float64   `json:"similarityScore"`
	MatchedSourceID *string   `gorm:"size:128" json:"matchedSourceId,omitempty"`
	LowConfidence   bool      `json:"lowConfidence"`
	CreatedAt       time.Time `json:"createdAt"`
}

// TypingAnalysis records one keystroke-dynamics batch result. A row with
// BaselineEstablished=false never contributes a penalty.
type TypingAnalysis struct {
	ID                  uint      `gorm:"primaryKey" json:"-"`
	SessionID           string    `gorm:"index;size:36" json:"sessionId"`
	SampleSize          int       `json:"keystrokeSampleSize"`
	RhythmAnomalyScore  float64   `json:"rhythmAnomalyScore"`
	BaselineEstablished bool      `json:"baselineEstablished"`
	CreatedAt           time.Time `json:"createdAt"`
}

// KeystrokeEvent is a raw client-side key event inside a typing batch.
// Timestamps are client-epoch milliseconds, same convention the interaction
// tracker uses for mouse data.
type KeystrokeEvent struct {
	Type      string  `json:"type"` // "keydown" or "keyup"
	Key       string  `json:"key"`
	Timestamp float64 `json:"timestamp"`
}
