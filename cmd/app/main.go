// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"support-widget-engine/internal/application"
	"support-widget-engine/internal/config"
	"support-widget-engine/internal/domain/model"
	"support-widget-engine/internal/domain/ports/adapter"
	aiAdapters "support-widget-engine/internal/infra/adapters/ai"
	"support-widget-engine/internal/infra/adapters/handoff"
	"support-widget-engine/internal/infra/adapters/identity"
	"support-widget-engine/internal/infra/api"
	pg "support-widget-engine/internal/infra/db/postgres"
	"support-widget-engine/internal/infra/logging"
	"support-widget-engine/internal/infra/metrics"
	"support-widget-engine/internal/infra/notify"
	red "support-widget-engine/internal/infra/redis"
	"support-widget-engine/internal/infra/sched"
	"support-widget-engine/internal/infra/web"
	"support-widget-engine/internal/infra/worker"
	"support-widget-engine/internal/usecase"
)

// set by the build
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (relaxed secrets, dev handoff)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("dev mode enabled")
	}
	logger.Info().
		Str("version", version).
		Str("database", logging.Redact(cfg.Database.URL, cfg.Runtime.Dev)).
		Str("redis", logging.Redact(cfg.Redis.URL, cfg.Runtime.Dev)).
		Msg("starting widget engine")

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	sessionCache := red.NewSessionCache(redisClient, cfg.Redis.TTL)
	quotaRepo := red.NewQuotaStateRepo(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	sessionRepo := pg.NewPostgresSessionRepo(pool, sessionCache)
	feedbackRepo := pg.NewPostgresFeedbackRepo(pool)

	// ---- Notices / interactive surface ----
	hub := notify.NewHub()

	// ---- External services ----
	var handoffSvc adapter.HumanHandoffService
	if cfg.Handoff.URL != "" {
		handoffSvc, err = handoff.NewHTTPGateway(cfg.Handoff.URL, cfg.Handoff.APIKey, cfg.Handoff.Timeout)
		if err != nil {
			log.Fatalf("handoff gateway: %v", err)
		}
	} else if cfg.Runtime.Dev {
		logger.Warn().Msg("handoff.url not set; using dev gateway")
		handoffSvc = handoff.NewDevGateway()
	} else {
		log.Fatalf("handoff.url is required outside dev mode")
	}

	var identitySvc adapter.IdentificationService
	if cfg.Identity.URL != "" {
		identitySvc, err = identity.NewHTTPService(cfg.Identity.URL, cfg.Identity.APIKey, cfg.Identity.Timeout)
		if err != nil {
			log.Fatalf("identity service: %v", err)
		}
	} else {
		identitySvc = identity.NewOpenService()
	}

	// ---- AI adapter ----
	var ai adapter.AIReplyService
	switch cfg.AI.Provider {
	case "openai":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: OpenAI")
	case "gemini":
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("AI adapter: Gemini")
	case "simulated", "":
		ai = aiAdapters.NewSimulatedAdapter(cfg.AI.MinLatency, cfg.AI.MaxLatency)
		logger.Info().Msg("AI adapter: simulated")
	default:
		log.Fatalf("unknown ai.provider %q (want simulated, openai or gemini)", cfg.AI.Provider)
	}
	ai = aiAdapters.NewTrimmedAI(ai, cfg.AI.Provider, cfg.AI.ContextTokens)
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Use cases ----
	quotaUC := usecase.NewQuotaUseCase(quotaModelConfig(cfg.Quota), quotaRepo, hub, logger)
	spamUC := usecase.NewSpamGuardUseCase(cfg.Spam.MinDelay, hub, logger)
	opsUC := usecase.NewOperationCoordinator(usecase.OpsConfig{
		StuckThresholdTicks: cfg.Ops.StuckThresholdTicks,
		RecoveryCooldown:    cfg.Ops.RecoveryCooldown,
	}, hub, logger)
	sessionUC := usecase.NewSessionUseCase(usecase.WidgetConfig{
		AutoOpenWithMessages: cfg.Widget.AutoOpenWithMessages,
		WelcomeMessage:       cfg.Widget.WelcomeMessage,
	}, sessionRepo, tm, logger)
	lifecycleUC := usecase.NewLifecycleUseCase(usecase.LifecycleConfig{
		IdleTimeout:        cfg.Lifecycle.IdleTimeout,
		MaxSessionDuration: cfg.Lifecycle.MaxSessionDuration,
		HandoffTimeout:     cfg.Lifecycle.HandoffTimeout,
	}, sessionUC, quotaUC, spamUC, handoffSvc, identitySvc, hub, logger)
	feedbackUC := usecase.NewFeedbackUseCase(sessionUC, feedbackRepo, logger)

	// ---- Worker pool ----
	replyPool := worker.NewPool(cfg.Server.Workers, logger)
	replyPool.Start(ctx)

	// ---- Facade ----
	facade := application.NewWidgetFacade(application.FacadeDeps{
		Sessions:  sessionUC,
		Lifecycle: lifecycleUC,
		Quota:     quotaUC,
		Spam:      spamUC,
		Ops:       opsUC,
		Feedback:  feedbackUC,
		AI:        ai,
		Identity:  identitySvc,
		Notifier:  hub,
		Notices:   hub,
		Runner:    replyPool,
	}, cfg.AI.DefaultModel, cfg.Widget.WelcomeMessage, cfg.Widget.ContextWindow, logger)

	// ---- HTTP API ----
	authMgr := web.NewAuthManager(cfg.Security.TokenSecret, cfg.Security.TokenTTL)
	apiSrv := api.NewServer(facade, authMgr, rateLimiter, cfg.Security.RateLimit, logger)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: apiSrv.Router()}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("widget api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Background sweeps ----
	opsSweeper := sched.NewOpsSweeper(cfg.Ops.SweepInterval, opsUC, logger)
	go func() { _ = opsSweeper.Run(ctx) }()
	lifecycleWorker := sched.NewLifecycleWorker(cfg.Lifecycle.SweepInterval, lifecycleUC, logger)
	go func() { _ = lifecycleWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	replyPool.Stop()
}

func quotaModelConfig(c config.QuotaConfig) model.QuotaConfig {
	return model.QuotaConfig{
		DailyEnabled:     c.DailyEnabled,
		HourlyEnabled:    c.HourlyEnabled,
		SessionEnabled:   c.SessionEnabled,
		DailyLimit:       c.DailyLimit,
		HourlyLimit:      c.HourlyLimit,
		SessionLimit:     c.SessionLimit,
		WarningThreshold: c.WarningThreshold,
	}
}
