package security

import (
	"context"
	"time"

	"proctor-go/internal/models"
	"proctor-go/internal/scoring"

	"go.uber.org/zap"
)

// SessionGate is the slice of the lifecycle manager the processor uses:
// an activity check before accepting a signal and a rescore afterwards.
type SessionGate interface {
	RequireActive(ctx context.Context, sessionID string) (*models.AssessmentSession, error)
	Rescore(ctx context.Context, sessionID string) error
}

// EventStore appends security events and reads them back in log order.
type EventStore interface {
	AppendSecurityEvent(ctx context.Context, event *models.SecurityEvent) error
	SecurityEvents(ctx context.Context, sessionID string) ([]models.SecurityEvent, error)
}

// Processor validates and scores discrete security events. It never writes
// to the session row; it appends to the log and asks the manager to fold
// the log back into the composite score.
type Processor struct {
	log    *zap.Logger
	store  EventStore
	gate   SessionGate
	policy func() scoring.Policy
}

func NewProcessor(log *zap.Logger, store EventStore, gate SessionGate, policy func() scoring.Policy) *Processor {
	return &Processor{log: log, store: store, gate: gate, policy: policy}
}

// Record appends one security event and returns the penalty it carries.
// Events against sessions that are no longer active are rejected, not
// silently dropped; a client still reporting after completion is itself
// worth surfacing.
func (p *Processor) Record(ctx context.Context, sessionID, eventType string, details string, severity models.Severity) (float64, error) {
	if _, err := p.gate.RequireActive(ctx, sessionID); err != nil {
		return 0, err
	}

	event := &models.SecurityEvent{
		SessionID: sessionID,
		Type:      eventType,
		Severity:  severity,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	if err := p.store.AppendSecurityEvent(ctx, event); err != nil {
		return 0, err
	}

	penalty := p.eventPenalty(ctx, sessionID, eventType, severity)
	p.log.Debug("Security event recorded",
		zap.String("sessionID", sessionID),
		zap.String("type", eventType),
		zap.String("severity", string(severity)),
		zap.Float64("penalty", penalty),
	)

	if err := p.gate.Rescore(ctx, sessionID); err != nil {
		// The event is already in the log; the next rescore picks it up.
		// Failing the request here would tell the client an accepted event
		// was rejected.
		p.log.Warn("Rescore after security event failed",
			zap.String("sessionID", sessionID),
			zap.Error(err),
		)
	}
	return penalty, nil
}

// eventPenalty computes this event's individual penalty, counting how many
// events of the same type the session has accumulated (the event just
// appended included). The authoritative score always comes from the full
// fold; this value is the incremental delta returned to the caller.
func (p *Processor) eventPenalty(ctx context.Context, sessionID, eventType string, severity models.Severity) float64 {
	events, err := p.store.SecurityEvents(ctx, sessionID)
	if err != nil {
		// The fold will still pick the event up; only the reported delta
		// degrades to the base weight.
		p.log.Warn("Failed to load event log for penalty delta", zap.Error(err))
		return p.policy().EventPenalty(severity, 1)
	}
	occurrence := 0
	for _, event := range events {
		if event.Type == eventType {
			occurrence++
		}
	}
	if occurrence == 0 {
		occurrence = 1
	}
	return p.policy().EventPenalty(severity, occurrence)
}
