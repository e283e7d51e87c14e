package repository

import (
	"context"

	"proctor-go/internal/models"
)

// Append-only log operations. None of these ever update or delete a row;
// the integrity score is always recomputed from what they wrote.

func (s *Store) AppendSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}

// SecurityEvents returns a session's events ordered by timestamp, with the
// auto-increment id breaking ties in insertion order.
func (s *Store) SecurityEvents(ctx context.Context, sessionID string) ([]models.SecurityEvent, error) {
	var events []models.SecurityEvent
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp, id").
		Find(&events).Error
	return events, err
}

func (s *Store) AppendFrameRecord(ctx context.Context, record *models.WebcamFrameRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *Store) FrameRecords(ctx context.Context, sessionID string) ([]models.WebcamFrameRecord, error) {
	var records []models.WebcamFrameRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence_number").
		Find(&records).Error
	return records, err
}

func (s *Store) AppendPlagiarismCheck(ctx context.Context, check *models.PlagiarismCheck) error {
	return s.db.WithContext(ctx).Create(check).Error
}

func (s *Store) PlagiarismChecks(ctx context.Context, sessionID string) ([]models.PlagiarismCheck, error) {
	var checks []models.PlagiarismCheck
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at, id").
		Find(&checks).Error
	return checks, err
}

func (s *Store) AppendTypingAnalysis(ctx context.Context, analysis *models.TypingAnalysis) error {
	return s.db.WithContext(ctx).Create(analysis).Error
}

func (s *Store) TypingAnalyses(ctx context.Context, sessionID string) ([]models.TypingAnalysis, error) {
	var analyses []models.TypingAnalysis
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at, id").
		Find(&analyses).Error
	return analyses, err
}
