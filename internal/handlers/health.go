package handlers

import (
	"net/http"

	"proctor-go/internal/database"
	"proctor-go/internal/integrity"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports database and cache reachability.
type HealthHandler struct {
	cache *integrity.Cache
}

func NewHealthHandler(cache *integrity.Cache) *HealthHandler {
	return &HealthHandler{cache: cache}
}

func (h *HealthHandler) Check(c *gin.Context) {
	status := gin.H{"status": "ok"}
	code := http.StatusOK

	sqlDB, err := database.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		status["database"] = "unreachable"
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	} else {
		status["database"] = "ok"
	}

	switch {
	case h.cache == nil:
		status["cache"] = "disabled"
	case h.cache.Ping(c.Request.Context()) != nil:
		// The engine runs fine without the cache; report but stay healthy.
		status["cache"] = "unreachable"
	default:
		status["cache"] = "ok"
	}

	c.JSON(code, status)
}
