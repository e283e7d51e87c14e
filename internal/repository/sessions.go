package repository

import (
	"context"
	"errors"

	"proctor-go/internal/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when no session row exists for the given id.
var ErrNotFound = errors.New("session not found")

// Store wraps the database handle with the engine's persistence operations.
// The session table is the only thing ever updated in place; every other
// table is append-only.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateSession(ctx context.Context, session *models.AssessmentSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *Store) GetSession(ctx context.Context, id string) (*models.AssessmentSession, error) {
	var session models.AssessmentSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) UpdateSession(ctx context.Context, session *models.AssessmentSession) error {
	return s.db.WithContext(ctx).Save(session).Error
}

// FindLiveSession returns the non-terminal session for a (user, assessment)
// pair, or nil when none exists.
func (s *Store) FindLiveSession(ctx context.Context, userID, assessmentID string) (*models.AssessmentSession, error) {
	var session models.AssessmentSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND assessment_id = ? AND status IN ?",
			userID, assessmentID,
			[]models.SessionStatus{models.StatusNotStarted, models.StatusInProgress, models.StatusPaused}).
		Order("created_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListStartedLiveSessions returns every in_progress or paused session that
// has a start time. The expiry sweeper walks this list.
func (s *Store) ListStartedLiveSessions(ctx context.Context) ([]models.AssessmentSession, error) {
	var sessions []models.AssessmentSession
	err := s.db.WithContext(ctx).
		Where("status IN ? AND started_at IS NOT NULL",
			[]models.SessionStatus{models.StatusInProgress, models.StatusPaused}).
		Find(&sessions).Error
	return sessions, err
}

// UpsertAnswer saves an answer with last-write-wins semantics per
// (session, question).
func (s *Store) UpsertAnswer(ctx context.Context, answer *models.Answer) error {
	query := `
		INSERT INTO answers (session_id, question_id, value, time_spent_seconds, correct, points, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW(), NOW())
		ON CONFLICT (session_id, question_id) DO UPDATE
		SET value = EXCLUDED.value,
		    time_spent_seconds = EXCLUDED.time_spent_seconds,
		    correct = EXCLUDED.correct,
		    points = EXCLUDED.points,
		    updated_at = NOW()
	`
	return s.db.WithContext(ctx).Exec(query,
		answer.SessionID, answer.QuestionID, answer.Value,
		answer.TimeSpentSeconds, answer.Correct, answer.Points).Error
}

func (s *Store) AnswersForSession(ctx context.Context, sessionID string) ([]models.Answer, error) {
	var answers []models.Answer
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("question_id").
		Find(&answers).Error
	return answers, err
}
