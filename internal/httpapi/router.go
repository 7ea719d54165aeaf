package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/callsim/callsim/internal/audit"
	"github.com/callsim/callsim/internal/auth"
	"github.com/callsim/callsim/internal/chat"
	"github.com/callsim/callsim/internal/common"
	"github.com/callsim/callsim/internal/config"
	"github.com/callsim/callsim/internal/httpapi/handlers"
	"github.com/callsim/callsim/internal/httpapi/middleware"
	"github.com/callsim/callsim/internal/models"
	"github.com/callsim/callsim/internal/ratelimit"
	"github.com/callsim/callsim/internal/redisstore"
	"github.com/callsim/callsim/internal/session"
	"github.com/callsim/callsim/internal/tts"
)

// Deps carries the wired services into the router. Redis, Limiter and the
// chat prerenderer are optional.
type Deps struct {
	DB      *gorm.DB
	Cfg     config.Config
	Redis   *redisstore.Store
	Limiter ratelimit.Limiter

	AuthSvc    *auth.Service
	SessionSvc *session.Service
	ChatSvc    *chat.Service
	Synth      *tts.Synthesizer
	Audit      *audit.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(d.Cfg.AllowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-API-Key", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, common.CodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, common.CodeValidation, "method not allowed")
	})

	h := handlers.NewHandler(d.DB, d.Cfg, d.Redis, d.AuthSvc, d.SessionSvc, d.ChatSvc, d.Synth, d.Audit)

	r.GET("/api/health", h.Health)

	v1 := r.Group("/api/v1")

	// Unauthenticated routes rate limit by client IP.
	open := v1.Group("/")
	open.Use(middleware.RateLimit(d.Limiter, d.Audit))
	open.POST("/auth/register", h.Register)
	open.POST("/auth/login", h.Login)

	// Authenticated routes rate limit by user id.
	authed := v1.Group("/")
	authed.Use(middleware.AuthRequired(d.AuthSvc))
	authed.Use(middleware.RateLimit(d.Limiter, d.Audit))

	authed.GET("/auth/me", h.Me)

	authed.POST("/session/start", h.StartSession)
	authed.POST("/session/:id/end", h.EndSession)
	authed.GET("/session/:id/messages", h.SessionMessages)
	authed.GET("/sessions", h.ListSessions)

	authed.POST("/chat", h.Chat)

	authed.POST("/session/:id/evaluate",
		middleware.RoleRequired(auth.DefaultPolicy, models.RoleAdmin), h.EvaluateSession)

	admin := authed.Group("/admin")
	admin.GET("/users",
		middleware.RoleRequired(auth.DefaultPolicy, models.RoleAdmin), h.ListUsers)
	admin.GET("/evaluations",
		middleware.RoleRequired(auth.DefaultPolicy, models.RoleAdmin, models.RoleTrainer), h.ListEvaluations)

	// Speech routes also admit per-user API keys and the operator key.
	speech := v1.Group("/tts")
	speech.Use(middleware.APIKeyOrJWT(d.AuthSvc, d.Cfg.MasterAPIKey))
	speech.Use(middleware.RateLimit(d.Limiter, d.Audit))
	speech.POST("", h.Synthesize)
	speech.GET("/voices", h.Voices)

	return r
}
