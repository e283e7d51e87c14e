package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"proctor-go/internal/integrity"
	"proctor-go/internal/models"
	"proctor-go/internal/security"
	"proctor-go/internal/session"
	"proctor-go/internal/webcam"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignalsHandler ingests the three streaming signal classes: discrete
// security events, webcam frames and keystroke batches.
type SignalsHandler struct {
	log      *zap.Logger
	manager  *session.Manager
	security *security.Processor
	monitor  *webcam.Monitor
	analyzer *integrity.Analyzer
}

func NewSignalsHandler(log *zap.Logger, manager *session.Manager, sec *security.Processor, monitor *webcam.Monitor, analyzer *integrity.Analyzer) *SignalsHandler {
	return &SignalsHandler{log: log, manager: manager, security: sec, monitor: monitor, analyzer: analyzer}
}

type securityEventRequest struct {
	Type     string          `json:"type" binding:"required"`
	Severity models.Severity `json:"severity" binding:"required"`
	Details  json.RawMessage `json:"details"`
}

func (h *SignalsHandler) RecordSecurityEvent(c *gin.Context) {
	var req securityEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch req.Severity {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be low, medium or high"})
		return
	}

	sessionID := c.Param("id")
	penalty, err := h.security.Record(c.Request.Context(), sessionID, req.Type, string(req.Details), req.Severity)
	if err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}

	current, err := h.manager.Get(c.Request.Context(), sessionID)
	if err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"penalty":        penalty,
		"integrityScore": current.IntegrityScore,
	})
}

type frameRequest struct {
	SequenceNumber uint64 `json:"sequenceNumber" binding:"required"`
	CapturedAt     int64  `json:"capturedAt" binding:"required"` // epoch milliseconds
	FrameRef       string `json:"frameRef" binding:"required"`
}

func (h *SignalsHandler) IngestFrame(c *gin.Context) {
	var req frameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sessionID := c.Param("id")
	if _, err := h.manager.RequireActive(c.Request.Context(), sessionID); err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}

	err := h.monitor.Ingest(c.Request.Context(), webcam.Frame{
		SessionID:      sessionID,
		SequenceNumber: req.SequenceNumber,
		CapturedAt:     time.UnixMilli(req.CapturedAt).UTC(),
		Ref:            req.FrameRef,
	})
	if err != nil {
		h.log.Error("Frame ingest failed", zap.String("sessionID", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record frame"})
		return
	}
	c.Status(http.StatusAccepted)
}

type typingBatchRequest struct {
	KeystrokeEvents []models.KeystrokeEvent `json:"keystrokeEvents" binding:"required"`
}

func (h *SignalsHandler) AnalyzeTypingBatch(c *gin.Context) {
	var req typingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sessionID := c.Param("id")
	if _, err := h.manager.RequireActive(c.Request.Context(), sessionID); err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}

	analysis, err := h.analyzer.AnalyzeTyping(c.Request.Context(), sessionID, req.KeystrokeEvents)
	if err != nil {
		h.log.Error("Typing analysis failed", zap.String("sessionID", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record typing batch"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"rhythmAnomalyScore":  analysis.RhythmAnomalyScore,
		"baselineEstablished": analysis.BaselineEstablished,
		"keystrokeSampleSize": analysis.SampleSize,
	})
}
