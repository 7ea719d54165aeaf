package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/callsim/callsim/internal/common"
	"github.com/callsim/callsim/internal/db"
)

// Health reports component status. The database is mandatory; redis and the
// generation provider are optional and only degrade the overall status.
func (h *Handler) Health(c *gin.Context) {
	components := gin.H{}

	dbOK := db.Ping(h.DB)
	if dbOK {
		components["database"] = "up"
	} else {
		components["database"] = "down"
	}

	switch {
	case h.Redis == nil:
		components["redis"] = "disabled"
	case h.Redis.Healthy(c.Request.Context()):
		components["redis"] = "up"
	default:
		components["redis"] = "down"
	}

	if h.Cfg.OpenAIAPIKey != "" {
		components["ai_provider"] = "configured"
	} else {
		components["ai_provider"] = "fallback"
	}

	status := "healthy"
	code := http.StatusOK
	if !dbOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	} else if components["redis"] == "down" {
		status = "degraded"
	}

	common.OK(c, code, gin.H{
		"status":     status,
		"components": components,
	})
}
