package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicedesk/internal/audit"
	"voicedesk/internal/auth"
	"voicedesk/internal/calls"
	"voicedesk/internal/campaigns"
	"voicedesk/internal/config"
	"voicedesk/internal/httpapi"
	"voicedesk/internal/records"
	"voicedesk/internal/reporting"
	"voicedesk/internal/telephony"
	"voicedesk/internal/tenants"
	"voicedesk/internal/webhooks"
	"voicedesk/pkg/logger"
	"voicedesk/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if err := logger.InitSentry(cfg.Sentry.DSN, cfg.App.Env); err != nil {
		log.Warn("sentry init failed; error reporting disabled", "err", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	vapi, err := telephony.NewVapiProvider(cfg.Vapi)
	if err != nil {
		log.Error("voice provider init failed", "err", err)
		os.Exit(1)
	}

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	tenantSvc := tenants.NewService(tenants.NewPostgresRepo(db), auditSvc)
	recordSvc := records.NewService(records.NewPostgresRepo(db))
	campaignSvc := campaigns.NewService(campaigns.NewPostgresRepo(db), vapi, campaigns.Options{
		DefaultCountryCode: cfg.Phone.DefaultCountryCode,
		MaxRecipients:      cfg.Campaign.MaxRecipients,
		Plans:              tenantSvc,
		Limiter:            campaigns.NewRedisLimiter(rdb),
		Audit:              auditSvc,
	})

	h := httpapi.Handlers{
		Auth:      auth.NewService(authManager, tenantSvc),
		Tenants:   tenantSvc,
		Campaigns: campaignSvc,
		Records:   recordSvc,
		Reports:   reporting.NewService(reporting.NewPostgresRepo(db)),
		Webhooks: webhooks.NewClassifier(
			campaignSvc,
			tenantSvc,
			recordSvc,
			calls.NewPostgresRepo(db),
			webhooks.NewRedisDeduper(rdb, cfg.Webhook.DedupTTL),
		),
	}

	r := newRouter(log, h, auth.RequireAccessToken(authManager), func(ctx context.Context) error {
		if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
