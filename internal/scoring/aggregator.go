package scoring

import (
	"context"
	"sort"
	"time"

	"proctor-go/internal/models"

	"go.uber.org/zap"
)

// LogReader is the slice of the store the aggregator needs: ordered,
// append-only reads of a session's signal records.
type LogReader interface {
	SecurityEvents(ctx context.Context, sessionID string) ([]models.SecurityEvent, error)
	PlagiarismChecks(ctx context.Context, sessionID string) ([]models.PlagiarismCheck, error)
	TypingAnalyses(ctx context.Context, sessionID string) ([]models.TypingAnalysis, error)
}

// Contribution is one signal class's share of the score reduction, shown
// to reviewers in the integrity report.
type Contribution struct {
	Class   string  `json:"class"`
	Penalty float64 `json:"penalty"`
	Count   int     `json:"count"`
	Note    string  `json:"note,omitempty"`
}

// ScorePoint is the running integrity score right after one log entry,
// used for the reviewer timeline chart.
type ScorePoint struct {
	At    time.Time `json:"at"`
	Score float64   `json:"score"`
}

// Result is a composite score snapshot derived from the full ordered log.
type Result struct {
	Score            float64        `json:"integrityScore"`
	FlaggedForReview bool           `json:"flaggedForReview"`
	Breakdown        []Contribution `json:"breakdown"`
	Timeline         []ScorePoint   `json:"timeline,omitempty"`
}

// Aggregator recomputes a session's integrity score as a pure fold over the
// ordered event log. It never touches the session row; the lifecycle
// manager decides whether and how to persist the result.
type Aggregator struct {
	log    *zap.Logger
	store  LogReader
	policy func() Policy
}

// NewAggregator builds an aggregator. The policy is read through a function
// so config hot-reloads take effect without restart.
func NewAggregator(log *zap.Logger, store LogReader, policy func() Policy) *Aggregator {
	return &Aggregator{log: log, store: store, policy: policy}
}

// Recompute loads the session's full ordered log and folds it into a
// composite score. The fold is deterministic for a given log regardless of
// the order analyzer callbacks completed in.
func (a *Aggregator) Recompute(ctx context.Context, sessionID string) (Result, error) {
	events, err := a.store.SecurityEvents(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	checks, err := a.store.PlagiarismChecks(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	analyses, err := a.store.TypingAnalyses(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	return Fold(a.policy(), events, checks, analyses), nil
}

// Fold computes the composite score from in-memory log slices. Exposed so
// tests can replay a log and assert the resulting score.
func Fold(policy Policy, events []models.SecurityEvent, checks []models.PlagiarismCheck, analyses []models.TypingAnalysis) Result {
	type entry struct {
		at    time.Time
		apply func()
	}

	// Running state of the fold.
	occurrences := make(map[string]int)
	var securityPenalty, framePenalty float64
	var securityCount, frameCount int
	var highSeverity bool
	var maxSimilarity float64
	var confidentChecks, lowConfidenceChecks int
	var maxAnomaly float64
	var scoredBatches, unscoredBatches int

	entries := make([]entry, 0, len(events)+len(checks)+len(analyses))
	for i := range events {
		event := events[i]
		entries = append(entries, entry{at: event.Timestamp, apply: func() {
			occurrences[event.Type]++
			penalty := policy.EventPenalty(event.Severity, occurrences[event.Type])
			// Frame-derived attention events are reported as their own
			// signal class even though they travel through the same table.
			if event.Type == models.EventAttentionLoss {
				framePenalty += penalty
				frameCount++
			} else {
				securityPenalty += penalty
				securityCount++
			}
			if event.Severity == models.SeverityHigh {
				highSeverity = true
			}
		}})
	}
	for i := range checks {
		check := checks[i]
		entries = append(entries, entry{at: check.CreatedAt, apply: func() {
			if check.LowConfidence {
				lowConfidenceChecks++
				return
			}
			confidentChecks++
			if check.SimilarityScore > maxSimilarity {
				maxSimilarity = check.SimilarityScore
			}
		}})
	}
	for i := range analyses {
		analysis := analyses[i]
		entries = append(entries, entry{at: analysis.CreatedAt, apply: func() {
			// Without a baseline there is not enough data to penalize.
			if !analysis.BaselineEstablished {
				unscoredBatches++
				return
			}
			scoredBatches++
			if analysis.RhythmAnomalyScore > maxAnomaly {
				maxAnomaly = analysis.RhythmAnomalyScore
			}
		}})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].at.Before(entries[j].at)
	})

	score := func() float64 {
		s := 100.0 - securityPenalty - framePenalty -
			policy.PlagiarismPenalty(maxSimilarity) - policy.TypingPenalty(maxAnomaly)
		if s < 0 {
			return 0
		}
		return s
	}

	timeline := make([]ScorePoint, 0, len(entries))
	for _, e := range entries {
		e.apply()
		timeline = append(timeline, ScorePoint{At: e.at, Score: score()})
	}

	final := score()
	flagged := final < policy.ReviewThreshold ||
		(highSeverity && maxSimilarity >= policy.PlagiarismHardCeiling)

	breakdown := []Contribution{
		{Class: "security_events", Penalty: securityPenalty, Count: securityCount},
		{Class: "webcam", Penalty: framePenalty, Count: frameCount},
		{Class: "plagiarism", Penalty: policy.PlagiarismPenalty(maxSimilarity), Count: confidentChecks},
		{Class: "typing", Penalty: policy.TypingPenalty(maxAnomaly), Count: scoredBatches},
	}
	if lowConfidenceChecks > 0 && confidentChecks == 0 {
		breakdown[2].Note = "insufficient data"
	}
	if unscoredBatches > 0 && scoredBatches == 0 {
		breakdown[3].Note = "insufficient data"
	}

	return Result{
		Score:            final,
		FlaggedForReview: flagged,
		Breakdown:        breakdown,
		Timeline:         timeline,
	}
}
