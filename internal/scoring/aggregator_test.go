package scoring

import (
	"testing"
	"time"

	"proctor-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventAt(t time.Time, eventType string, severity models.Severity) models.SecurityEvent {
	return models.SecurityEvent{Type: eventType, Severity: severity, Timestamp: t}
}

func TestFold_NoSignalsKeepsPerfectScore(t *testing.T) {
	result := Fold(DefaultPolicy(), nil, nil, nil)

	assert.Equal(t, 100.0, result.Score)
	assert.False(t, result.FlaggedForReview)
}

func TestFold_RepeatedEventDoublesFromThirdOccurrence(t *testing.T) {
	now := time.Now()
	events := []models.SecurityEvent{
		eventAt(now, models.EventTabSwitch, models.SeverityMedium),
		eventAt(now.Add(time.Second), models.EventTabSwitch, models.SeverityMedium),
		eventAt(now.Add(2*time.Second), models.EventTabSwitch, models.SeverityMedium),
	}

	result := Fold(DefaultPolicy(), events, nil, nil)

	// 5 + 5 + 10: the third occurrence carries double weight.
	assert.Equal(t, 80.0, result.Score)
	assert.False(t, result.FlaggedForReview, "80 is above the review threshold")
}

func TestFold_RepetitionCountsPerType(t *testing.T) {
	now := time.Now()
	events := []models.SecurityEvent{
		eventAt(now, models.EventTabSwitch, models.SeverityMedium),
		eventAt(now.Add(time.Second), models.EventWindowBlur, models.SeverityMedium),
		eventAt(now.Add(2*time.Second), models.EventTabSwitch, models.SeverityMedium),
	}

	result := Fold(DefaultPolicy(), events, nil, nil)

	// Different types do not share a repetition counter: 5 + 5 + 5.
	assert.Equal(t, 85.0, result.Score)
}

func TestFold_HighSeverityPlusPlagiarismFlagsRegardlessOfScore(t *testing.T) {
	now := time.Now()
	events := []models.SecurityEvent{
		eventAt(now, models.EventCopyAttempt, models.SeverityHigh),
	}
	checks := []models.PlagiarismCheck{
		{SimilarityScore: 0.9, CreatedAt: now.Add(time.Second)},
	}

	result := Fold(DefaultPolicy(), events, checks, nil)

	// 100 - 15 - plagiarismPenalty(0.9) is still well above 50, so only
	// the co-occurrence rule can flag this session.
	assert.Greater(t, result.Score, 50.0)
	assert.True(t, result.FlaggedForReview)
}

func TestFold_ScoreBelowThresholdFlags(t *testing.T) {
	now := time.Now()
	var events []models.SecurityEvent
	for i := 0; i < 6; i++ {
		events = append(events, eventAt(now.Add(time.Duration(i)*time.Second), models.EventFullscreenExit, models.SeverityHigh))
	}

	result := Fold(DefaultPolicy(), events, nil, nil)

	// 15 + 15 + 30*4 caps at zero.
	assert.Equal(t, 0.0, result.Score)
	assert.True(t, result.FlaggedForReview)
}

func TestFold_ScoreNeverLeavesRange(t *testing.T) {
	now := time.Now()
	var events []models.SecurityEvent
	for i := 0; i < 50; i++ {
		events = append(events, eventAt(now.Add(time.Duration(i)*time.Second), models.EventFullscreenExit, models.SeverityHigh))
	}
	checks := []models.PlagiarismCheck{{SimilarityScore: 1.0, CreatedAt: now}}
	analyses := []models.TypingAnalysis{{RhythmAnomalyScore: 1.0, BaselineEstablished: true, CreatedAt: now}}

	result := Fold(DefaultPolicy(), events, checks, analyses)

	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 100.0)
	for _, point := range result.Timeline {
		assert.GreaterOrEqual(t, point.Score, 0.0)
		assert.LessOrEqual(t, point.Score, 100.0)
	}
}

func TestFold_UnestablishedTypingNeverPenalizes(t *testing.T) {
	analyses := []models.TypingAnalysis{
		{RhythmAnomalyScore: 0.99, BaselineEstablished: false, CreatedAt: time.Now()},
	}

	result := Fold(DefaultPolicy(), nil, nil, analyses)

	assert.Equal(t, 100.0, result.Score)
	require.Len(t, result.Breakdown, 4)
	assert.Equal(t, "insufficient data", result.Breakdown[3].Note)
}

func TestFold_LowConfidencePlagiarismNeverPenalizes(t *testing.T) {
	checks := []models.PlagiarismCheck{
		{SimilarityScore: 0, LowConfidence: true, CreatedAt: time.Now()},
	}

	result := Fold(DefaultPolicy(), nil, checks, nil)

	assert.Equal(t, 100.0, result.Score)
	assert.Equal(t, "insufficient data", result.Breakdown[2].Note)
}

func TestFold_SingleSignalCannotZeroScoreUnlessExtreme(t *testing.T) {
	policy := DefaultPolicy()

	// Maximum plagiarism alone costs at most its cap.
	checks := []models.PlagiarismCheck{{SimilarityScore: 1.0, CreatedAt: time.Now()}}
	result := Fold(policy, nil, checks, nil)
	assert.Equal(t, 100.0-policy.PlagiarismPenaltyCap, result.Score)

	// Maximum typing anomaly alone likewise.
	analyses := []models.TypingAnalysis{{RhythmAnomalyScore: 1.0, BaselineEstablished: true, CreatedAt: time.Now()}}
	result = Fold(policy, nil, nil, analyses)
	assert.Equal(t, 100.0-policy.TypingPenaltyCap, result.Score)
}

func TestFold_DeterministicAcrossAppendOrder(t *testing.T) {
	now := time.Now()
	events := []models.SecurityEvent{
		eventAt(now.Add(2*time.Second), models.EventTabSwitch, models.SeverityMedium),
		eventAt(now, models.EventWindowBlur, models.SeverityLow),
	}
	checks := []models.PlagiarismCheck{{SimilarityScore: 0.7, CreatedAt: now.Add(time.Second)}}

	first := Fold(DefaultPolicy(), events, checks, nil)
	reversed := Fold(DefaultPolicy(), []models.SecurityEvent{events[1], events[0]}, checks, nil)

	assert.Equal(t, first.Score, reversed.Score)
	assert.Equal(t, first.FlaggedForReview, reversed.FlaggedForReview)
}

func TestFold_AttentionLossReportedAsWebcamClass(t *testing.T) {
	now := time.Now()
	events := []models.SecurityEvent{
		eventAt(now, models.EventAttentionLoss, models.SeverityMedium),
		eventAt(now.Add(time.Second), models.EventTabSwitch, models.SeverityLow),
	}

	result := Fold(DefaultPolicy(), events, nil, nil)

	assert.Equal(t, 94.0, result.Score)
	assert.Equal(t, 5.0, result.Breakdown[1].Penalty, "attention_loss counts toward the webcam class")
	assert.Equal(t, 1.0, result.Breakdown[0].Penalty)
}

func TestPenaltyFunctionsAreMonotonicAndCapped(t *testing.T) {
	policy := DefaultPolicy()

	var lastPlagiarism, lastTyping float64
	for v := 0.0; v <= 1.0; v += 0.05 {
		p := policy.PlagiarismPenalty(v)
		assert.GreaterOrEqual(t, p, lastPlagiarism)
		assert.LessOrEqual(t, p, policy.PlagiarismPenaltyCap)
		lastPlagiarism = p

		ty := policy.TypingPenalty(v)
		assert.GreaterOrEqual(t, ty, lastTyping)
		assert.LessOrEqual(t, ty, policy.TypingPenaltyCap)
		lastTyping = ty
	}

	assert.Zero(t, policy.PlagiarismPenalty(policy.PlagiarismFloor))
	assert.Zero(t, policy.TypingPenalty(policy.TypingFloor))
}
