package security

import (
	"context"
	"errors"
	"sync"
	"testing"

	"proctor-go/internal/models"
	"proctor-go/internal/scoring"
	"proctor-go/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memEventStore struct {
	mu     sync.Mutex
	events map[string][]models.SecurityEvent
}

func newMemEventStore() *memEventStore {
	return &memEventStore{events: make(map[string][]models.SecurityEvent)}
}

func (s *memEventStore) AppendSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.SessionID] = append(s.events[event.SessionID], *event)
	return nil
}

func (s *memEventStore) SecurityEvents(ctx context.Context, sessionID string) ([]models.SecurityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SecurityEvent(nil), s.events[sessionID]...), nil
}

// fakeGate admits the sessions it knows about and counts rescores.
type fakeGate struct {
	mu         sync.Mutex
	active     map[string]bool
	rescores   int
	rescoreErr error
}

func (g *fakeGate) RequireActive(ctx context.Context, sessionID string) (*models.AssessmentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active[sessionID] {
		return nil, session.ErrSessionNotActive
	}
	return &models.AssessmentSession{ID: sessionID, Status: models.StatusInProgress}, nil
}

func (g *fakeGate) Rescore(ctx context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rescores++
	return g.rescoreErr
}

func newTestProcessor() (*Processor, *memEventStore, *fakeGate) {
	store := newMemEventStore()
	gate := &fakeGate{active: map[string]bool{"s1": true}}
	processor := NewProcessor(zap.NewNop(), store, gate, scoring.DefaultPolicy)
	return processor, store, gate
}

func TestRecord_AppendsAndReturnsPenalty(t *testing.T) {
	processor, store, gate := newTestProcessor()
	ctx := context.Background()

	penalty, err := processor.Record(ctx, "s1", models.EventTabSwitch, "", models.SeverityMedium)
	require.NoError(t, err)
	assert.Equal(t, 5.0, penalty)

	events, _ := store.SecurityEvents(ctx, "s1")
	require.Len(t, events, 1)
	assert.Equal(t, models.EventTabSwitch, events[0].Type)
	assert.Equal(t, models.SeverityMedium, events[0].Severity)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, 1, gate.rescores)
}

func TestRecord_RepetitionRaisesTheDelta(t *testing.T) {
	processor, _, _ := newTestProcessor()
	ctx := context.Background()

	deltas := make([]float64, 0, 3)
	for i := 0; i < 3; i++ {
		penalty, err := processor.Record(ctx, "s1", models.EventTabSwitch, "", models.SeverityMedium)
		require.NoError(t, err)
		deltas = append(deltas, penalty)
	}

	// The third occurrence of the same type carries double weight.
	assert.Equal(t, []float64{5, 5, 10}, deltas)
}

func TestRecord_SeverityWeights(t *testing.T) {
	processor, _, _ := newTestProcessor()
	ctx := context.Background()

	low, err := processor.Record(ctx, "s1", models.EventWindowBlur, "", models.SeverityLow)
	require.NoError(t, err)
	medium, err := processor.Record(ctx, "s1", models.EventTabSwitch, "", models.SeverityMedium)
	require.NoError(t, err)
	high, err := processor.Record(ctx, "s1", models.EventCopyAttempt, "", models.SeverityHigh)
	require.NoError(t, err)

	assert.Equal(t, 1.0, low)
	assert.Equal(t, 5.0, medium)
	assert.Equal(t, 15.0, high)
}

func TestRecord_RepetitionCountersArePerType(t *testing.T) {
	processor, _, _ := newTestProcessor()
	ctx := context.Background()

	_, err := processor.Record(ctx, "s1", models.EventTabSwitch, "", models.SeverityMedium)
	require.NoError(t, err)
	_, err = processor.Record(ctx, "s1", models.EventTabSwitch, "", models.SeverityMedium)
	require.NoError(t, err)

	// A different type starts its own counter at base weight.
	penalty, err := processor.Record(ctx, "s1", models.EventWindowBlur, "", models.SeverityMedium)
	require.NoError(t, err)
	assert.Equal(t, 5.0, penalty)
}

func TestRecord_RescoreFailureDoesNotRejectTheEvent(t *testing.T) {
	processor, store, gate := newTestProcessor()
	gate.rescoreErr = errors.New("db gone")
	ctx := context.Background()

	// The event was accepted and logged; a failed fold must not turn that
	// into an error response.
	penalty, err := processor.Record(ctx, "s1", models.EventTabSwitch, "", models.SeverityMedium)
	require.NoError(t, err)
	assert.Equal(t, 5.0, penalty)

	events, _ := store.SecurityEvents(ctx, "s1")
	assert.Len(t, events, 1)
}

func TestRecord_RejectsInactiveSession(t *testing.T) {
	processor, store, gate := newTestProcessor()
	ctx := context.Background()

	_, err := processor.Record(ctx, "gone", models.EventTabSwitch, "", models.SeverityMedium)
	assert.ErrorIs(t, err, session.ErrSessionNotActive)

	// Nothing is appended and no rescore happens for a rejected event.
	events, _ := store.SecurityEvents(ctx, "gone")
	assert.Empty(t, events)
	assert.Equal(t, 0, gate.rescores)
}
