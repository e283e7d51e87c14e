package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"proctor-go/internal/models"
	"proctor-go/internal/scoring"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Store is the persistence surface the manager needs: session CRUD keyed
// by id plus answer upserts. The gorm-backed repository implements it;
// tests use an in-memory fake.
type Store interface {
	CreateSession(ctx context.Context, session *models.AssessmentSession) error
	GetSession(ctx context.Context, id string) (*models.AssessmentSession, error)
	UpdateSession(ctx context.Context, session *models.AssessmentSession) error
	FindLiveSession(ctx context.Context, userID, assessmentID string) (*models.AssessmentSession, error)
	UpsertAnswer(ctx context.Context, answer *models.Answer) error
	AnswersForSession(ctx context.Context, sessionID string) ([]models.Answer, error)
}

// Rescorer recomputes a session's composite integrity score from its
// ordered event log.
type Rescorer interface {
	Recompute(ctx context.Context, sessionID string) (scoring.Result, error)
}

// Manager owns the session lifecycle state machine. It is the only
// component that mutates session rows; everything else appends records and
// asks the manager to fold the result back into the score.
//
// Mutations on one session are serialized by a per-session lock; sessions
// never contend with each other. Status is re-checked after the lock is
// acquired, so a committed expire wins over any user operation that was in
// flight when it happened.
type Manager struct {
	log      *zap.Logger
	store    Store
	bank     *models.AssessmentBank
	rescorer Rescorer

	locks *keyedMutex

	// Fallback when an assessment does not declare a max duration.
	defaultMaxDuration time.Duration
}

func NewManager(log *zap.Logger, store Store, bank *models.AssessmentBank, rescorer Rescorer, defaultMaxDuration time.Duration) *Manager {
	return &Manager{
		log:                log,
		store:              store,
		bank:               bank,
		rescorer:           rescorer,
		locks:              newKeyedMutex(),
		defaultMaxDuration: defaultMaxDuration,
	}
}

// Initialize creates a session in not_started for a (user, assessment)
// pair. At most one live session may exist per pair; the check runs under
// a pair-scoped lock so concurrent initializes cannot both pass it.
func (m *Manager) Initialize(ctx context.Context, userID, assessmentID, deviceFingerprint string) (*models.AssessmentSession, error) {
	assessment, ok := m.bank.Get(assessmentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAssessment, assessmentID)
	}

	unlock := m.locks.Lock("init:" + userID + ":" + assessmentID)
	defer unlock()

	existing, err := m.store.FindLiveSession(ctx, userID, assessmentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: session %s is %s", ErrDuplicateSession, existing.ID, existing.Status)
	}

	// Snapshot a shuffled question order so the session is stable even if
	// the assessment definition is edited mid-attempt.
	order := make(pq.Int64Array, len(assessment.Questions))
	for i := range order {
		order[i] = int64(i)
	}
	rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	session := &models.AssessmentSession{
		ID:                uuid.NewString(),
		UserID:            userID,
		AssessmentID:      assessmentID,
		Status:            models.StatusNotStarted,
		QuestionOrder:     order,
		DeviceFingerprint: deviceFingerprint,
		IntegrityScore:    100,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	m.log.Info("Session initialized",
		zap.String("sessionID", session.ID),
		zap.String("userID", userID),
		zap.String("assessmentID", assessmentID),
	)
	return session, nil
}

// Get returns the current session snapshot. Reads do not take the session
// lock; they may interleave with a mutation and see either side of it.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.AssessmentSession, error) {
	return m.store.GetSession(ctx, sessionID)
}

// Start moves a session from not_started to in_progress and points it at
// the first question of its snapshot order.
func (m *Manager) Start(ctx context.Context, sessionID string) (*models.AssessmentSession, error) {
	return m.mutate(ctx, sessionID, func(session *models.AssessmentSession, assessment *models.Assessment) error {
		if session.Status != models.StatusNotStarted {
			return transitionError(session.Status, "start")
		}
		now := time.Now().UTC()
		session.Status = models.StatusInProgress
		session.StartedAt = &now
		first := assessment.Questions[session.QuestionOrder[0]].ID
		session.CurrentQuestionID = &first
		return nil
	})
}

// Pause moves an in_progress session to paused. Pausing an already-paused
// session is a no-op returning the current state, so client retries are
// harmless.
func (m *Manager) Pause(ctx context.Context, sessionID string) (*models.AssessmentSession, error) {
	return m.mutate(ctx, sessionID, func(session *models.AssessmentSession, _ *models.Assessment) error {
		switch session.Status {
		case models.StatusPaused:
			return errNoop
		case models.StatusInProgress:
			now := time.Now().UTC()
			session.Status = models.StatusPaused
			session.PausedAt = &now
			return nil
		default:
			return transitionError(session.Status, "pause")
		}
	})
}

// Resume moves a paused session back to in_progress. Like Pause, it is
// idempotent when the session is already in_progress.
func (m *Manager) Resume(ctx context.Context, sessionID string) (*models.AssessmentSession, error) {
	return m.mutate(ctx, sessionID, func(session *models.AssessmentSession, _ *models.Assessment) error {
		switch session.Status {
		case models.StatusInProgress:
			return errNoop
		case models.StatusPaused:
			now := time.Now().UTC()
			session.Status = models.StatusInProgress
			session.ResumedAt = &now
			return nil
		default:
			return transitionError(session.Status, "resume")
		}
	})
}

// Navigate updates the current question without changing state.
func (m *Manager) Navigate(ctx context.Context, sessionID, questionID string) (*models.AssessmentSession, error) {
	return m.mutate(ctx, sessionID, func(session *models.AssessmentSession, assessment *models.Assessment) error {
		if session.Status != models.StatusInProgress {
			return transitionError(session.Status, "navigate")
		}
		if _, ok := assessment.Question(questionID); !ok {
			return fmt.Errorf("%w: %s", ErrInvalidQuestion, questionID)
		}
		session.CurrentQuestionID = &questionID
		return nil
	})
}

// SubmitAnswer scores an answer against the assessment's key and stores it.
// Re-answering a question overwrites the previous answer (last write wins).
func (m *Manager) SubmitAnswer(ctx context.Context, sessionID, questionID, value string, timeSpent float64) (*models.AssessmentSession, error) {
	return m.mutate(ctx, sessionID, func(session *models.AssessmentSession, assessment *models.Assessment) error {
		if session.Status != models.StatusInProgress {
			return transitionError(session.Status, "answer in")
		}
		question, ok := assessment.Question(questionID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidQuestion, questionID)
		}

		points, correct := question.Score(value)
		answer := &models.Answer{
			SessionID:        session.ID,
			QuestionID:       questionID,
			Value:            value,
			TimeSpentSeconds: timeSpent,
			Correct:          correct,
			Points:           points,
		}
		if err := m.store.UpsertAnswer(ctx, answer); err != nil {
			return err
		}
		// Running total is recomputed from stored answers at submit time;
		// keep the live field roughly current for GET /sessions/:id.
		return m.refreshTotal(ctx, session)
	})
}

// Submit finalizes the session: totals are computed from the stored
// answers, the integrity score is frozen, and the status becomes terminal.
// Calling Submit on an already-submitted session returns the stored result
// instead of erroring, to tolerate client double-submits.
func (m *Manager) Submit(ctx context.Context, sessionID string) (*models.AssessmentSession, error) {
	return m.mutate(ctx, sessionID, func(session *models.AssessmentSession, assessment *models.Assessment) error {
		switch session.Status {
		case models.StatusSubmitted:
			return errNoop
		case models.StatusInProgress, models.StatusPaused:
		default:
			return fmt.Errorf("%w: session is %s", ErrSessionNotActive, session.Status)
		}

		if err := m.refreshTotal(ctx, session); err != nil {
			return err
		}
		now := time.Now().UTC()
		session.Status = models.StatusSubmitted
		session.SubmittedAt = &now
		session.Passed = session.TotalScore >= assessment.PassingScore

		m.log.Info("Session submitted",
			zap.String("sessionID", session.ID),
			zap.Float64("totalScore", session.TotalScore),
			zap.Bool("passed", session.Passed),
			zap.Float64("integrityScore", session.IntegrityScore),
		)
		return nil
	})
}

// Expire terminates a session that exceeded its assessment's max duration.
// Once committed, in-flight user operations fail with ErrSessionNotActive
// when they reach the lock and re-check status.
func (m *Manager) Expire(ctx context.Context, sessionID string) (*models.AssessmentSession, error) {
	return m.terminate(ctx, sessionID, models.StatusExpired)
}

// Abandon marks a session abandoned (admin-triggered).
func (m *Manager) Abandon(ctx context.Context, sessionID string) (*models.AssessmentSession, error) {
	return m.terminate(ctx, sessionID, models.StatusAbandoned)
}

func (m *Manager) terminate(ctx context.Context, sessionID string, status models.SessionStatus) (*models.AssessmentSession, error) {
	return m.mutate(ctx, sessionID, func(session *models.AssessmentSession, _ *models.Assessment) error {
		switch session.Status {
		case status:
			return errNoop
		case models.StatusInProgress, models.StatusPaused:
			session.Status = status
			m.log.Info("Session terminated",
				zap.String("sessionID", session.ID),
				zap.String("status", string(status)),
			)
			return nil
		default:
			return fmt.Errorf("%w: session is %s", ErrSessionNotActive, session.Status)
		}
	})
}

// MaxDuration returns the configured time limit for a session's assessment.
func (m *Manager) MaxDuration(assessmentID string) time.Duration {
	if assessment, ok := m.bank.Get(assessmentID); ok {
		return assessment.MaxDuration(m.defaultMaxDuration)
	}
	return m.defaultMaxDuration
}

// RequireActive loads a session and checks it accepts integrity signals,
// i.e. it is in_progress or paused. Post-submission signals are rejected
// rather than silently dropped: the rejection is itself a signal that the
// client keeps reporting after completion.
func (m *Manager) RequireActive(ctx context.Context, sessionID string) (*models.AssessmentSession, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case models.StatusInProgress, models.StatusPaused:
		return session, nil
	default:
		return nil, fmt.Errorf("%w: session is %s", ErrSessionNotActive, session.Status)
	}
}

// Rescore recomputes the composite score from the event log and persists
// it on the session. Once a session is terminal its score is frozen and
// the recompute result is discarded; the log may still grow for audit.
// The score never rises: the stored value is the minimum of the current
// and recomputed scores, and the review flag is sticky.
func (m *Manager) Rescore(ctx context.Context, sessionID string) error {
	result, err := m.rescorer.Recompute(ctx, sessionID)
	if err != nil {
		return err
	}

	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return nil
	}

	changed := false
	if result.Score < session.IntegrityScore {
		session.IntegrityScore = result.Score
		changed = true
	}
	if result.FlaggedForReview && !session.FlaggedForReview {
		session.FlaggedForReview = true
		changed = true
		m.log.Warn("Session flagged for review",
			zap.String("sessionID", sessionID),
			zap.Float64("integrityScore", session.IntegrityScore),
		)
	}
	if !changed {
		return nil
	}
	return m.store.UpdateSession(ctx, session)
}

// transitionError classifies a rejected mutation. A terminal session
// rejects everything with ErrSessionNotActive (a committed expire must win
// over in-flight user operations); a merely wrong live state is a state
// machine violation.
func transitionError(status models.SessionStatus, verb string) error {
	if status.Terminal() {
		return fmt.Errorf("%w: cannot %s a session that is %s", ErrSessionNotActive, verb, status)
	}
	return fmt.Errorf("%w: cannot %s a session that is %s", ErrInvalidTransition, verb, status)
}

// errNoop signals an idempotent early return from a mutation callback: the
// session is already in the requested state and must not be re-persisted.
var errNoop = fmt.Errorf("no-op")

// mutate runs fn on the freshly loaded session under its per-session lock
// and persists the result. fn receives the assessment snapshot for
// convenience; it returns errNoop to skip persistence.
func (m *Manager) mutate(ctx context.Context, sessionID string, fn func(*models.AssessmentSession, *models.Assessment) error) (*models.AssessmentSession, error) {
	unlock := m.locks.Lock(sessionID)
	defer unlock()

	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	assessment, ok := m.bank.Get(session.AssessmentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAssessment, session.AssessmentID)
	}

	if err := fn(session, assessment); err != nil {
		if err == errNoop {
			return session, nil
		}
		return nil, err
	}

	if err := m.store.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *Manager) refreshTotal(ctx context.Context, session *models.AssessmentSession) error {
	answers, err := m.store.AnswersForSession(ctx, session.ID)
	if err != nil {
		return err
	}
	var total float64
	for _, answer := range answers {
		total += answer.Points
	}
	session.TotalScore = total
	return nil
}
