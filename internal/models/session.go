package models

import (
	"time"

	"github.com/lib/pq"
)

// SessionStatus is the lifecycle state of an assessment session.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusInProgress SessionStatus = "in_progress"
	StatusPaused     SessionStatus = "paused"
	StatusSubmitted  SessionStatus = "submitted"
	StatusExpired    SessionStatus = "expired"
	StatusAbandoned  SessionStatus = "abandoned"
)

// Terminal reports whether the status can never transition again.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusSubmitted, StatusExpired, StatusAbandoned:
		return true
	}
	return false
}

// Live reports whether the session still counts against the
// one-live-session-per-(user, assessment) rule.
func (s SessionStatus) Live() bool {
	return !s.Terminal()
}

// AssessmentSession is one student's timed attempt at one assessment.
// All mutation goes through the session manager; every other component
// only appends records tagged with the session id.
type AssessmentSession struct {
	ID                string        `gorm:"primaryKey;size:36" json:"id"`
	UserID            string        `gorm:"index:idx_sessions_user_assessment;size:64" json:"userId"`
	AssessmentID      string        `gorm:"index:idx_sessions_user_assessment;size:64" json:"assessmentId"`
	Status            SessionStatus `gorm:"index;size:16" json:"status"`
	CurrentQuestionID *string       `gorm:"size:64" json:"currentQuestionId"`
	QuestionOrder     pq.Int64Array `gorm:"type:integer[]" json:"-"`
	DeviceFingerprint string        `gorm:"size:128" json:"deviceFingerprint"`
	IntegrityScore    float64       `json:"integrityScore"`
	FlaggedForReview  bool          `json:"flaggedForReview"`
	TotalScore        float64       `json:"totalScore"`
	Passed            bool          `json:"passed"`
	StartedAt         *time.Time    `json:"startedAt,omitempty"`
	PausedAt          *time.Time    `json:"pausedAt,omitempty"`
	ResumedAt         *time.Time    `json:"resumedAt,omitempty"`
	SubmittedAt       *time.Time    `json:"submittedAt,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Answer is the stored response for one question. Re-submitting the same
// question overwrites the previous row (last write wins).
type Answer struct {
	ID               uint      `gorm:"primaryKey"`
	SessionID        string    `gorm:"uniqueIndex:idx_answers_session_question;size:36"`
	QuestionID       string    `gorm:"uniqueIndex:idx_answers_session_question;size:64"`
	Value            string
	TimeSpentSeconds float64
	Correct          bool
	Points           float64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
