package handlers

import (
	"gorm.io/gorm"

	"github.com/callsim/callsim/internal/audit"
	"github.com/callsim/callsim/internal/auth"
	"github.com/callsim/callsim/internal/chat"
	"github.com/callsim/callsim/internal/config"
	"github.com/callsim/callsim/internal/redisstore"
	"github.com/callsim/callsim/internal/session"
	"github.com/callsim/callsim/internal/tts"
)

type Handler struct {
	DB         *gorm.DB
	Cfg        config.Config
	Redis      *redisstore.Store
	AuthSvc    *auth.Service
	SessionSvc *session.Service
	ChatSvc    *chat.Service
	Synth      *tts.Synthesizer
	Audit      *audit.Logger
}

func NewHandler(
	db *gorm.DB,
	cfg config.Config,
	rds *redisstore.Store,
	authSvc *auth.Service,
	sessionSvc *session.Service,
	chatSvc *chat.Service,
	synth *tts.Synthesizer,
	auditLog *audit.Logger,
) *Handler {
	return &Handler{
		DB:         db,
		Cfg:        cfg,
		Redis:      rds,
		AuthSvc:    authSvc,
		SessionSvc: sessionSvc,
		ChatSvc:    chatSvc,
		Synth:      synth,
		Audit:      auditLog,
	}
}
