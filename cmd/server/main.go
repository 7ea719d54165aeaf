package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callsim/callsim/internal/ai"
	"github.com/callsim/callsim/internal/audit"
	"github.com/callsim/callsim/internal/auth"
	"github.com/callsim/callsim/internal/cache"
	"github.com/callsim/callsim/internal/chat"
	"github.com/callsim/callsim/internal/config"
	"github.com/callsim/callsim/internal/db"
	"github.com/callsim/callsim/internal/httpapi"
	"github.com/callsim/callsim/internal/logger"
	"github.com/callsim/callsim/internal/ratelimit"
	"github.com/callsim/callsim/internal/redisstore"
	"github.com/callsim/callsim/internal/session"
	"github.com/callsim/callsim/internal/store/rabbitmq"
	"github.com/callsim/callsim/internal/tts"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.L.WithError(err).Fatal("database connect failed")
	}
	if err := db.Migrate(gdb); err != nil {
		logger.L.WithError(err).Fatal("database migrate failed")
	}

	auditLog := audit.NewLogger(gdb)

	// Redis is optional. Without it sessions skip the cache mirror, the
	// TTS cache runs in process memory and rate limiting is per process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		rds     *redisstore.Store
		kv      cache.KV
		limiter ratelimit.Limiter
		mirror  session.Mirror
	)
	rds = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rds.Healthy(ctx) {
		kv = rds
		limiter = ratelimit.NewRedis(rds.Client(), cfg.RateLimitMax, cfg.RateLimitWindow)
		mirror = rds
		logger.L.WithField("addr", cfg.RedisAddr).Info("redis connected")
	} else {
		logger.L.Warn("redis unreachable, using in-process cache and rate limiting")
		rds = nil
		kv = cache.NewMemory()
		limiter = ratelimit.NewMemory(cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	authSvc := auth.NewService(gdb, auditLog, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTTL)
	sessionSvc := session.NewService(session.NewRepo(gdb), auditLog, mirror, cfg.SessionCacheTTL)

	var provider ai.Provider
	if cfg.OpenAIAPIKey != "" {
		provider = ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
		logger.L.WithField("model", cfg.OpenAIModel).Info("generation provider configured")
	} else {
		logger.L.WithField("mode", cfg.FallbackMode).Info("no generation provider, canned responses active")
	}
	chatSvc := chat.NewService(gdb, provider, chat.NewFallback(cfg.FallbackMode))

	if pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		logger.L.WithError(err).Warn("rabbitmq unavailable, tts pre-rendering disabled")
	} else {
		defer pub.Close()
		chatSvc.SetPrerenderer(pub)
	}

	synth := tts.NewSynthesizer(cfg.TTSBaseURL, kv, cfg.TTSCacheTTL)

	r := httpapi.NewRouter(httpapi.Deps{
		DB:         gdb,
		Cfg:        cfg,
		Redis:      rds,
		Limiter:    limiter,
		AuthSvc:    authSvc,
		SessionSvc: sessionSvc,
		ChatSvc:    chatSvc,
		Synth:      synth,
		Audit:      auditLog,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.L.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.L.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.WithError(err).Error("shutdown failed")
	}
}
