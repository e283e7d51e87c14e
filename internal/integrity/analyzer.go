package integrity

import (
	"context"
	"sync"

	"proctor-go/internal/config"
	"proctor-go/internal/metrics"
	"proctor-go/internal/models"

	"go.uber.org/zap"
)

// CheckStore appends integrity-check records to the event store.
type CheckStore interface {
	AppendPlagiarismCheck(ctx context.Context, check *models.PlagiarismCheck) error
	AppendTypingAnalysis(ctx context.Context, analysis *models.TypingAnalysis) error
}

// Rescorer folds the event log back into the session's composite score.
type Rescorer interface {
	Rescore(ctx context.Context, sessionID string) error
}

// Analyzer runs the plagiarism and typing-behavior pipelines. Both are
// advisory: they append records and trigger a rescore, and every failure
// mode degrades to a low-confidence zero result instead of surfacing.
//
// Plagiarism work is dispatched to a small worker pool so the user-facing
// answer-submission path never waits on a detector.
type Analyzer struct {
	log      *zap.Logger
	store    CheckStore
	rescorer Rescorer
	detector SimilarityDetector
	scorer   RhythmScorer
	cache    *Cache
	conf     func() config.ProctoringConfig

	tasks chan func()
	wg    sync.WaitGroup

	mu        sync.Mutex
	baselines map[string]*metrics.TypingBaseline
}

func NewAnalyzer(log *zap.Logger, store CheckStore, rescorer Rescorer, detector SimilarityDetector, scorer RhythmScorer, cache *Cache, conf func() config.ProctoringConfig) *Analyzer {
	return &Analyzer{
		log:       log,
		store:     store,
		rescorer:  rescorer,
		detector:  detector,
		scorer:    scorer,
		cache:     cache,
		conf:      conf,
		tasks:     make(chan func(), 256),
		baselines: make(map[string]*metrics.TypingBaseline),
	}
}

// Start launches the background workers.
func (a *Analyzer) Start() {
	workers := a.conf().AnalysisWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for task := range a.tasks {
				task()
			}
		}()
	}
}

// Stop drains the queue and waits for in-flight work.
func (a *Analyzer) Stop() {
	close(a.tasks)
	a.wg.Wait()
}

// DispatchPlagiarism queues a plagiarism check for background execution.
// Fire-and-forget: the caller returns immediately, the completed check
// triggers a rescore. If the queue is saturated the check is skipped with
// a warning; integrity checks never block answer acceptance.
func (a *Analyzer) DispatchPlagiarism(sessionID, questionID, text string) {
	task := func() {
		ctx := context.Background()
		if _, err := a.CheckPlagiarism(ctx, sessionID, questionID, text); err != nil {
			a.log.Error("Plagiarism check failed to record",
				zap.String("sessionID", sessionID),
				zap.String("questionID", questionID),
				zap.Error(err),
			)
			return
		}
		if err := a.rescorer.Rescore(ctx, sessionID); err != nil {
			a.log.Error("Rescore after plagiarism check failed", zap.Error(err))
		}
	}

	select {
	case a.tasks <- task:
	default:
		a.log.Warn("Analysis queue saturated, skipping plagiarism check",
			zap.String("sessionID", sessionID),
			zap.String("questionID", questionID),
		)
	}
}

// CheckPlagiarism runs one similarity comparison and appends its record.
// Text below the minimum length short-circuits to a low-confidence zero:
// too short to meaningfully compare. Detector errors and timeouts do the
// same; only the append error is returned.
func (a *Analyzer) CheckPlagiarism(ctx context.Context, sessionID, questionID, text string) (*models.PlagiarismCheck, error) {
	conf := a.conf()

	check := &models.PlagiarismCheck{
		SessionID:  sessionID,
		QuestionID: questionID,
	}

	switch {
	case len([]rune(text)) < conf.MinTextLength:
		check.LowConfidence = true

	default:
		if cached, ok := a.cache.get(ctx, sessionID, questionID, text); ok {
			check.SimilarityScore = cached.Score
			check.MatchedSourceID = cached.MatchedSourceID
			break
		}

		detectCtx, cancel := context.WithTimeout(ctx, conf.PlagiarismTimeout)
		result, err := a.detector.CheckSimilarity(detectCtx, text)
		cancel()
		if err != nil {
			a.log.Warn("Similarity detector degraded to low-confidence zero",
				zap.String("sessionID", sessionID),
				zap.String("questionID", questionID),
				zap.Error(err),
			)
			check.LowConfidence = true
			break
		}
		check.SimilarityScore = result.Score
		check.MatchedSourceID = result.MatchedSourceID
		a.cache.set(ctx, sessionID, questionID, text, cachedResult{
			Score:           result.Score,
			MatchedSourceID: result.MatchedSourceID,
		})
	}

	if err := a.store.AppendPlagiarismCheck(ctx, check); err != nil {
		return nil, err
	}
	return check, nil
}

// AnalyzeTyping folds one keystroke batch into the session's rhythm
// analysis. Until the per-session baseline reaches the minimum sample
// size the result always has BaselineEstablished=false and a zero score,
// which the aggregator treats as exempt from penalty.
func (a *Analyzer) AnalyzeTyping(ctx context.Context, sessionID string, events []models.KeystrokeEvent) (*models.TypingAnalysis, error) {
	conf := a.conf()
	intervals := metrics.InterKeyIntervals(events)

	analysis := &models.TypingAnalysis{
		SessionID:  sessionID,
		SampleSize: metrics.KeydownCount(events),
	}

	baseline := a.baseline(sessionID, conf.MinKeystrokeSample)
	if !baseline.Established() {
		if baseline.Add(intervals) {
			a.log.Debug("Typing baseline established",
				zap.String("sessionID", sessionID),
				zap.Int("sampleSize", baseline.SampleSize()),
				zap.Float64("meanIntervalMs", baseline.Mean()),
			)
		}
		// The establishing data itself is never scored against itself.
		if err := a.store.AppendTypingAnalysis(ctx, analysis); err != nil {
			return nil, err
		}
		return analysis, a.rescorer.Rescore(ctx, sessionID)
	}

	scoreCtx, cancel := context.WithTimeout(ctx, conf.TypingTimeout)
	result, err := a.scorer.ScoreRhythm(scoreCtx, baseline, intervals)
	cancel()
	if err != nil {
		a.log.Warn("Rhythm scorer degraded to insufficient-data result",
			zap.String("sessionID", sessionID),
			zap.Error(err),
		)
	} else if result.Calculated {
		analysis.RhythmAnomalyScore = result.Value
		analysis.BaselineEstablished = true
	}

	if err := a.store.AppendTypingAnalysis(ctx, analysis); err != nil {
		return nil, err
	}
	return analysis, a.rescorer.Rescore(ctx, sessionID)
}

// ForgetSession drops the in-memory typing baseline once a session ends.
func (a *Analyzer) ForgetSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.baselines, sessionID)
}

func (a *Analyzer) baseline(sessionID string, minSample int) *metrics.TypingBaseline {
	a.mu.Lock()
	defer a.mu.Unlock()
	baseline, ok := a.baselines[sessionID]
	if !ok {
		baseline = metrics.NewTypingBaseline(minSample)
		a.baselines[sessionID] = baseline
	}
	return baseline
}
