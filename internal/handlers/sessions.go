package handlers

import (
	"context"
	"net/http"

	"proctor-go/internal/integrity"
	"proctor-go/internal/models"
	"proctor-go/internal/security"
	"proctor-go/internal/session"
	"proctor-go/internal/webcam"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler exposes the lifecycle operations of the session manager.
type SessionHandler struct {
	log      *zap.Logger
	manager  *session.Manager
	security *security.Processor
	monitor  *webcam.Monitor
	analyzer *integrity.Analyzer
}

func NewSessionHandler(log *zap.Logger, manager *session.Manager, sec *security.Processor, monitor *webcam.Monitor, analyzer *integrity.Analyzer) *SessionHandler {
	return &SessionHandler{log: log, manager: manager, security: sec, monitor: monitor, analyzer: analyzer}
}

type initializeRequest struct {
	UserID            string `json:"userId" binding:"required"`
	DeviceFingerprint string `json:"deviceFingerprint"`
}

func (h *SessionHandler) Initialize(c *gin.Context) {
	var req initializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	created, err := h.manager.Initialize(c.Request.Context(), req.UserID, c.Param("assessmentId"), req.DeviceFingerprint)
	if err != nil {
		respondSessionError(c, h.manager, "", err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *SessionHandler) Start(c *gin.Context) {
	h.lifecycle(c, h.manager.Start)
}

func (h *SessionHandler) Pause(c *gin.Context) {
	h.lifecycle(c, h.manager.Pause)
}

func (h *SessionHandler) Resume(c *gin.Context) {
	h.lifecycle(c, h.manager.Resume)
}

func (h *SessionHandler) Submit(c *gin.Context) {
	sessionID := c.Param("id")
	submitted, err := h.manager.Submit(c.Request.Context(), sessionID)
	if err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}

	// The session is terminal: stop its frame worker and drop the typing
	// baseline. The event log stays open for audit reads.
	h.monitor.CloseSession(sessionID)
	h.analyzer.ForgetSession(sessionID)

	c.JSON(http.StatusOK, submitted)
}

type navigateRequest struct {
	QuestionID string `json:"questionId" binding:"required"`
}

func (h *SessionHandler) Navigate(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sessionID := c.Param("id")
	current, err := h.manager.Navigate(c.Request.Context(), sessionID, req.QuestionID)
	if err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}
	fingerprintCheck(c, h.security, current)
	c.JSON(http.StatusOK, current)
}

type answerRequest struct {
	QuestionID string  `json:"questionId" binding:"required"`
	Answer     string  `json:"answer"`
	TimeSpent  float64 `json:"timeSpent"`
}

func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sessionID := c.Param("id")
	current, err := h.manager.SubmitAnswer(c.Request.Context(), sessionID, req.QuestionID, req.Answer, req.TimeSpent)
	if err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}
	fingerprintCheck(c, h.security, current)

	// Plagiarism analysis runs off the submit path; the answer is already
	// accepted whatever the detector concludes.
	h.analyzer.DispatchPlagiarism(sessionID, req.QuestionID, req.Answer)

	c.JSON(http.StatusOK, current)
}

func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")
	current, err := h.manager.Get(c.Request.Context(), sessionID)
	if err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}
	c.JSON(http.StatusOK, current)
}

func (h *SessionHandler) Results(c *gin.Context) {
	sessionID := c.Param("id")
	results, err := h.manager.Results(c.Request.Context(), sessionID)
	if err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *SessionHandler) lifecycle(c *gin.Context, op func(ctx context.Context, id string) (*models.AssessmentSession, error)) {
	sessionID := c.Param("id")
	current, err := op(c.Request.Context(), sessionID)
	if err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}
	fingerprintCheck(c, h.security, current)
	c.JSON(http.StatusOK, current)
}
