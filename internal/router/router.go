package router

import (
	"time"

	"proctor-go/internal/handlers"
	"proctor-go/internal/integrity"
	"proctor-go/internal/scoring"
	"proctor-go/internal/security"
	"proctor-go/internal/session"
	"proctor-go/internal/webcam"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

func keyFunc(c *gin.Context) string {
	// Signal floods come per session, not per address: a NAT'd exam hall
	// shares one IP across a whole room.
	if id := c.Param("id"); id != "" {
		return c.ClientIP() + ":" + id
	}
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again later.")
}

// Deps bundles the engine components the router exposes over HTTP.
type Deps struct {
	Manager    *session.Manager
	Security   *security.Processor
	Monitor    *webcam.Monitor
	Analyzer   *integrity.Analyzer
	Aggregator *scoring.Aggregator
	Cache      *integrity.Cache
}

func Setup(log *zap.Logger, deps Deps) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		err := secureMiddleware.Process(c.Writer, c.Request)
		if err != nil {
			c.Abort()
			return
		}
	})

	// Handlers and routes
	sessionHandler := handlers.NewSessionHandler(log, deps.Manager, deps.Security, deps.Monitor, deps.Analyzer)
	signalsHandler := handlers.NewSignalsHandler(log, deps.Manager, deps.Security, deps.Monitor, deps.Analyzer)
	reportHandler := handlers.NewReportHandler(log, deps.Manager, deps.Aggregator)
	healthHandler := handlers.NewHealthHandler(deps.Cache)

	// Signal ingest endpoints get a per-session rate limit: webcam frames
	// dominate, and 5 analyzed frames/sec plus headroom fits in 600/min.
	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 600,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	router.GET("/healthz", healthHandler.Check)

	router.POST("/assessments/:assessmentId/sessions", sessionHandler.Initialize)

	sessions := router.Group("/sessions/:id")
	{
		sessions.POST("/start", sessionHandler.Start)
		sessions.POST("/pause", sessionHandler.Pause)
		sessions.POST("/resume", sessionHandler.Resume)
		sessions.POST("/submit", sessionHandler.Submit)
		sessions.POST("/navigate", sessionHandler.Navigate)
		sessions.POST("/answers", sessionHandler.SubmitAnswer)

		sessions.POST("/security-events", limiter, signalsHandler.RecordSecurityEvent)
		sessions.POST("/frames", limiter, signalsHandler.IngestFrame)
		sessions.POST("/typing-batches", limiter, signalsHandler.AnalyzeTypingBatch)

		sessions.GET("", sessionHandler.Get)
		sessions.GET("/results", sessionHandler.Results)
		sessions.GET("/report", reportHandler.Show)
	}

	return router
}
