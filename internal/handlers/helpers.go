package handlers

import (
	"context"
	"errors"
	"net/http"

	"proctor-go/internal/models"
	"proctor-go/internal/repository"
	"proctor-go/internal/session"

	"github.com/gin-gonic/gin"
)

// respondSessionError maps engine errors onto HTTP responses. Lifecycle
// errors include the session's current status so the client can
// resynchronize its local state machine.
func respondSessionError(c *gin.Context, manager *session.Manager, sessionID string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrUnknownAssessment):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidQuestion):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrSessionNotActive),
		errors.Is(err, session.ErrDuplicateSession):
		status = http.StatusConflict
	}

	body := gin.H{"error": err.Error()}
	if sessionID != "" && status != http.StatusNotFound {
		if current, getErr := manager.Get(c.Request.Context(), sessionID); getErr == nil {
			body["currentStatus"] = current.Status
		}
	}
	c.JSON(status, body)
}

// fingerprintCheck compares the caller's device fingerprint header against
// the one captured at initialize and records a device_change event on
// mismatch. Advisory only; the request itself proceeds.
type eventRecorder interface {
	Record(ctx context.Context, sessionID, eventType, details string, severity models.Severity) (float64, error)
}

func fingerprintCheck(c *gin.Context, recorder eventRecorder, current *models.AssessmentSession) {
	fingerprint := c.GetHeader("X-Device-Fingerprint")
	if fingerprint == "" || current == nil || current.DeviceFingerprint == "" || fingerprint == current.DeviceFingerprint {
		return
	}
	// Best effort; an inactive session rejecting the event is fine.
	recorder.Record(c.Request.Context(), current.ID, models.EventDeviceChange,
		`{"reason":"fingerprint_mismatch"}`, models.SeverityMedium)
}
