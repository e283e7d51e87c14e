package integrity

import (
	"context"
	"strings"
	"sync"

	"proctor-go/internal/metrics"
)

// SimilarityResult is the outcome of comparing submitted text against
// known sources.
type SimilarityResult struct {
	Score           float64
	MatchedSourceID *string
}

// SimilarityDetector is the pluggable plagiarism capability. Real NLP
// backends are adapters behind this interface; the engine only consumes
// the score.
type SimilarityDetector interface {
	CheckSimilarity(ctx context.Context, text string) (SimilarityResult, error)
}

// RhythmScorer is the pluggable keystroke-dynamics capability. The default
// implementation compares a batch against the session baseline; swappable
// for a model-backed scorer.
type RhythmScorer interface {
	ScoreRhythm(ctx context.Context, baseline *metrics.TypingBaseline, intervals []float64) (metrics.MetricResult, error)
}

// NGramDetector is the default similarity adapter: word trigram Jaccard
// overlap against an in-memory source corpus. It is deliberately simple;
// a production corpus lives behind the same interface in a real backend.
type NGramDetector struct {
	mu      sync.RWMutex
	sources map[string]map[string]struct{}
}

func NewNGramDetector() *NGramDetector {
	return &NGramDetector{sources: make(map[string]map[string]struct{})}
}

// AddSource registers reference text under an id.
func (d *NGramDetector) AddSource(id, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources[id] = trigrams(text)
}

// CheckSimilarity returns the best Jaccard overlap across all sources.
func (d *NGramDetector) CheckSimilarity(ctx context.Context, text string) (SimilarityResult, error) {
	if err := ctx.Err(); err != nil {
		return SimilarityResult{}, err
	}
	candidate := trigrams(text)
	if len(candidate) == 0 {
		return SimilarityResult{}, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var best SimilarityResult
	for id, source := range d.sources {
		if err := ctx.Err(); err != nil {
			return SimilarityResult{}, err
		}
		score := jaccard(candidate, source)
		if score > best.Score {
			sourceID := id
			best = SimilarityResult{Score: score, MatchedSourceID: &sourceID}
		}
	}
	return best, nil
}

func trigrams(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	grams := make(map[string]struct{})
	for i := 0; i+3 <= len(words); i++ {
		grams[strings.Join(words[i:i+3], " ")] = struct{}{}
	}
	return grams
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}
	shared := 0
	for gram := range smaller {
		if _, ok := larger[gram]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// BaselineScorer is the default rhythm adapter: the statistical distance
// implemented by the metrics package.
type BaselineScorer struct{}

func (BaselineScorer) ScoreRhythm(ctx context.Context, baseline *metrics.TypingBaseline, intervals []float64) (metrics.MetricResult, error) {
	if err := ctx.Err(); err != nil {
		return metrics.MetricResult{}, err
	}
	return baseline.Score(intervals), nil
}
