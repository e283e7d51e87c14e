package integrity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"proctor-go/internal/config"
	"proctor-go/internal/metrics"
	"proctor-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memCheckStore struct {
	mu       sync.Mutex
	checks   []models.PlagiarismCheck
	analyses []models.TypingAnalysis
}

func (s *memCheckStore) AppendPlagiarismCheck(ctx context.Context, check *models.PlagiarismCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, *check)
	return nil
}

func (s *memCheckStore) AppendTypingAnalysis(ctx context.Context, analysis *models.TypingAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = append(s.analyses, *analysis)
	return nil
}

func (s *memCheckStore) lastCheck() models.PlagiarismCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks[len(s.checks)-1]
}

type countingRescorer struct {
	mu    sync.Mutex
	count int
}

func (r *countingRescorer) Rescore(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

func (r *countingRescorer) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

type failingDetector struct{}

func (failingDetector) CheckSimilarity(ctx context.Context, text string) (SimilarityResult, error) {
	return SimilarityResult{}, errors.New("backend unavailable")
}

func analyzerConf() func() config.ProctoringConfig {
	return func() config.ProctoringConfig {
		return config.ProctoringConfig{
			MinTextLength:      50,
			MinKeystrokeSample: 20,
			PlagiarismTimeout:  2 * time.Second,
			TypingTimeout:      300 * time.Millisecond,
			AnalysisWorkers:    2,
		}
	}
}

func newTestAnalyzer(detector SimilarityDetector) (*Analyzer, *memCheckStore, *countingRescorer) {
	store := &memCheckStore{}
	rescorer := &countingRescorer{}
	analyzer := NewAnalyzer(zap.NewNop(), store, rescorer, detector, BaselineScorer{}, nil, analyzerConf())
	return analyzer, store, rescorer
}

func keydowns(start, gap float64, count int) []models.KeystrokeEvent {
	events := make([]models.KeystrokeEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, models.KeystrokeEvent{
			Type:      "keydown",
			Key:       "a",
			Timestamp: start + float64(i)*gap,
		})
	}
	return events
}

const essay = "the quick brown fox jumps over the lazy dog while the patient observer takes careful notes about every single movement it makes"

func TestCheckPlagiarism_ShortTextIsLowConfidence(t *testing.T) {
	analyzer, store, _ := newTestAnalyzer(NewNGramDetector())

	check, err := analyzer.CheckPlagiarism(context.Background(), "s1", "q1", "too short")

	require.NoError(t, err)
	assert.True(t, check.LowConfidence)
	assert.Zero(t, check.SimilarityScore)
	require.Len(t, store.checks, 1)
}

func TestCheckPlagiarism_MatchesKnownSource(t *testing.T) {
	detector := NewNGramDetector()
	detector.AddSource("wiki-1", essay)
	analyzer, _, _ := newTestAnalyzer(detector)

	check, err := analyzer.CheckPlagiarism(context.Background(), "s1", "q1", essay)

	require.NoError(t, err)
	assert.False(t, check.LowConfidence)
	assert.InDelta(t, 1.0, check.SimilarityScore, 1e-9)
	require.NotNil(t, check.MatchedSourceID)
	assert.Equal(t, "wiki-1", *check.MatchedSourceID)
}

func TestCheckPlagiarism_UnrelatedTextScoresNearZero(t *testing.T) {
	detector := NewNGramDetector()
	detector.AddSource("wiki-1", essay)
	analyzer, _, _ := newTestAnalyzer(detector)

	original := "completely different sentences were written here by a student who has never seen the reference material before today"
	check, err := analyzer.CheckPlagiarism(context.Background(), "s1", "q1", original)

	require.NoError(t, err)
	assert.False(t, check.LowConfidence)
	assert.Less(t, check.SimilarityScore, 0.1)
}

func TestCheckPlagiarism_DetectorFailureDegradesToLowConfidence(t *testing.T) {
	analyzer, store, _ := newTestAnalyzer(failingDetector{})

	check, err := analyzer.CheckPlagiarism(context.Background(), "s1", "q1", essay)

	require.NoError(t, err, "detector failure is absorbed, not surfaced")
	assert.True(t, check.LowConfidence)
	assert.Zero(t, check.SimilarityScore)
	require.Len(t, store.checks, 1)
}

func TestDispatchPlagiarism_RunsInBackgroundAndRescores(t *testing.T) {
	detector := NewNGramDetector()
	detector.AddSource("wiki-1", essay)
	analyzer, store, rescorer := newTestAnalyzer(detector)
	analyzer.Start()

	analyzer.DispatchPlagiarism("s1", "q1", essay)
	analyzer.Stop()

	require.Len(t, store.checks, 1)
	assert.InDelta(t, 1.0, store.lastCheck().SimilarityScore, 1e-9)
	assert.Equal(t, 1, rescorer.calls())
}

func TestAnalyzeTyping_BeforeBaselineNeverScores(t *testing.T) {
	analyzer, store, rescorer := newTestAnalyzer(NewNGramDetector())

	analysis, err := analyzer.AnalyzeTyping(context.Background(), "s1", keydowns(0, 120, 10))

	require.NoError(t, err)
	assert.False(t, analysis.BaselineEstablished)
	assert.Zero(t, analysis.RhythmAnomalyScore)
	assert.Equal(t, 10, analysis.SampleSize)
	require.Len(t, store.analyses, 1)
	assert.Equal(t, 1, rescorer.calls(), "record still folds into the score")
}

func TestAnalyzeTyping_ScoresOnceBaselineEstablished(t *testing.T) {
	analyzer, _, _ := newTestAnalyzer(NewNGramDetector())
	ctx := context.Background()

	// Two steady batches establish the baseline without being scored.
	first, err := analyzer.AnalyzeTyping(ctx, "s1", keydowns(0, 120, 12))
	require.NoError(t, err)
	assert.False(t, first.BaselineEstablished)
	second, err := analyzer.AnalyzeTyping(ctx, "s1", keydowns(10000, 120, 12))
	require.NoError(t, err)
	assert.False(t, second.BaselineEstablished)

	// Machine-like 5ms gaps against a 120ms baseline.
	third, err := analyzer.AnalyzeTyping(ctx, "s1", keydowns(20000, 5, 10))
	require.NoError(t, err)
	assert.True(t, third.BaselineEstablished)
	assert.Greater(t, third.RhythmAnomalyScore, 0.7)

	// A batch matching the baseline scores far lower.
	fourth, err := analyzer.AnalyzeTyping(ctx, "s1", keydowns(30000, 120, 10))
	require.NoError(t, err)
	assert.True(t, fourth.BaselineEstablished)
	assert.Less(t, fourth.RhythmAnomalyScore, 0.5)
	assert.Less(t, fourth.RhythmAnomalyScore, third.RhythmAnomalyScore)
}

func TestAnalyzeTyping_BaselinesAreNotSharedAcrossSessions(t *testing.T) {
	analyzer, _, _ := newTestAnalyzer(NewNGramDetector())
	ctx := context.Background()

	_, err := analyzer.AnalyzeTyping(ctx, "s1", keydowns(0, 120, 12))
	require.NoError(t, err)
	_, err = analyzer.AnalyzeTyping(ctx, "s1", keydowns(10000, 120, 12))
	require.NoError(t, err)

	// The other session starts from scratch.
	analysis, err := analyzer.AnalyzeTyping(ctx, "s2", keydowns(0, 5, 10))
	require.NoError(t, err)
	assert.False(t, analysis.BaselineEstablished)
}

func TestForgetSession_DropsTheBaseline(t *testing.T) {
	analyzer, _, _ := newTestAnalyzer(NewNGramDetector())
	ctx := context.Background()

	_, err := analyzer.AnalyzeTyping(ctx, "s1", keydowns(0, 120, 12))
	require.NoError(t, err)
	_, err = analyzer.AnalyzeTyping(ctx, "s1", keydowns(10000, 120, 12))
	require.NoError(t, err)

	analyzer.ForgetSession("s1")

	analysis, err := analyzer.AnalyzeTyping(ctx, "s1", keydowns(20000, 5, 10))
	require.NoError(t, err)
	assert.False(t, analysis.BaselineEstablished, "a new attempt re-learns from scratch")
}

func TestNGramDetector_HonorsContextCancellation(t *testing.T) {
	detector := NewNGramDetector()
	detector.AddSource("wiki-1", essay)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := detector.CheckSimilarity(ctx, essay)
	assert.Error(t, err)
}

func TestBaselineScorer_ReturnsUncalculatedForTinyProbe(t *testing.T) {
	baseline := metrics.NewTypingBaseline(5)
	baseline.Add([]float64{100, 100, 100, 100, 100, 100})
	require.True(t, baseline.Established())

	result, err := BaselineScorer{}.ScoreRhythm(context.Background(), baseline, []float64{100})
	require.NoError(t, err)
	assert.False(t, result.Calculated)
}
