package session

import (
	"context"
	"fmt"
	"time"

	"proctor-go/internal/models"
)

// QuestionResult is one row of the per-question results breakdown.
type QuestionResult struct {
	QuestionID       string  `json:"questionId"`
	Prompt           string  `json:"prompt"`
	Answer           string  `json:"answer"`
	Correct          bool    `json:"correct"`
	Points           float64 `json:"points"`
	MaxPoints        float64 `json:"maxPoints"`
	TimeSpentSeconds float64 `json:"timeSpentSeconds"`
}

// Results is the final outcome of a submitted session.
type Results struct {
	SessionID        string           `json:"sessionId"`
	AssessmentID     string           `json:"assessmentId"`
	TotalScore       float64          `json:"totalScore"`
	MaxScore         float64          `json:"maxScore"`
	PassingScore     float64          `json:"passingScore"`
	Passed           bool             `json:"passed"`
	IntegrityScore   float64          `json:"integrityScore"`
	FlaggedForReview bool             `json:"flaggedForReview"`
	SubmittedAt      *time.Time       `json:"submittedAt"`
	Questions        []QuestionResult `json:"questions"`
}

// Results assembles the final score and per-question breakdown. Results
// only exist once the session has been submitted.
func (m *Manager) Results(ctx context.Context, sessionID string) (*Results, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusSubmitted {
		return nil, fmt.Errorf("%w: results are only available after submit (session is %s)", ErrInvalidTransition, session.Status)
	}
	assessment, ok := m.bank.Get(session.AssessmentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAssessment, session.AssessmentID)
	}

	answers, err := m.store.AnswersForSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[string]models.Answer, len(answers))
	for _, answer := range answers {
		byQuestion[answer.QuestionID] = answer
	}

	results := &Results{
		SessionID:        session.ID,
		AssessmentID:     session.AssessmentID,
		TotalScore:       session.TotalScore,
		MaxScore:         assessment.MaxPoints(),
		PassingScore:     assessment.PassingScore,
		Passed:           session.Passed,
		IntegrityScore:   session.IntegrityScore,
		FlaggedForReview: session.FlaggedForReview,
		SubmittedAt:      session.SubmittedAt,
	}
	for _, question := range assessment.Questions {
		row := QuestionResult{
			QuestionID: question.ID,
			Prompt:     question.Prompt,
			MaxPoints:  question.Points,
		}
		if answer, ok := byQuestion[question.ID]; ok {
			row.Answer = answer.Value
			row.Correct = answer.Correct
			row.Points = answer.Points
			row.TimeSpentSeconds = answer.TimeSpentSeconds
		}
		results.Questions = append(results.Questions, row)
	}
	return results, nil
}
