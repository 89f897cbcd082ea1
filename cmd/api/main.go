package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"attendance-kiosk/internal/attendance"
	"attendance-kiosk/internal/audit"
	"attendance-kiosk/internal/config"
	"attendance-kiosk/internal/credential"
	"attendance-kiosk/internal/evidence"
	"attendance-kiosk/internal/handler"
	"attendance-kiosk/internal/httpmiddleware"
	"attendance-kiosk/internal/logging"
	"attendance-kiosk/internal/queue"
	"attendance-kiosk/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Production())
	slog.SetDefault(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	if cfg.Production() && cfg.AppSecret == config.Defaults().AppSecret {
		logger.Warn("APP_SECRET is the built-in default; set a real secret")
	}

	db, err := store.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	auditStore := audit.NewStore(db.DB)
	auditLog := audit.NewLog(auditStore, logger)
	var recorder audit.Recorder = auditLog
	var drainers sync.WaitGroup
	drainCtx, stopDrain := context.WithCancel(context.Background())
	defer stopDrain()

	switch cfg.AuditBackend {
	case "memory":
		q := queue.NewInMemory(256)
		recorder = audit.NewQueued(q, auditLog)
		drainers.Add(1)
		go func() {
			defer drainers.Done()
			if err := audit.Drain(drainCtx, q, auditStore, logger); err != nil {
				logger.Error("audit drain stopped", "error", err)
			}
		}()
	case "redis":
		// Events are appended by cmd/worker.
		recorder = audit.NewQueued(queue.NewRedisQueue(redisClient.Client, ""), auditLog)
	}

	clock := attendance.SystemClock{}
	hasher := credential.Default()
	repo := attendance.NewRepository(db.DB)
	codes := attendance.NewSessionCodes(repo, recorder, clock)

	snaps := evidence.New(evidence.Options{
		Dir:       cfg.SnapDir,
		Command:   cfg.SnapshotCommand,
		Device:    cfg.SnapshotDevice,
		Timeout:   cfg.SnapshotTimeout,
		MinFreeMB: cfg.SnapshotMinFreeMB,
	}, logger)

	checkins := attendance.NewService(attendance.Deps{
		Store:     repo,
		Codes:     codes,
		Snapshots: snaps,
		Audit:     recorder,
		Clock:     clock,
		Hasher:    hasher,
		Logger:    logger,
	})
	admin := attendance.NewAdminService(repo, recorder, clock, hasher, logger)
	if _, err := admin.EnsureAdmin(ctx, cfg.AdminDefaultPassword); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	var counter httpmiddleware.AttemptCounter = httpmiddleware.SessionCounter{}
	if cfg.RateLimitBackend == "redis" {
		counter = httpmiddleware.NewRedisCounter(redisClient.Client, cfg.SessionMaxAge)
	}

	health := map[string]handler.HealthCheck{"db": db.Healthy}
	if redisClient != nil {
		health["redis"] = redisClient.Healthy
	}

	r, err := handler.NewRouter(handler.Config{
		Secret:        cfg.AppSecret,
		Issuer:        cfg.JWTIssuer,
		TokenTTL:      cfg.AdminTokenTTL,
		SessionMaxAge: cfg.SessionMaxAge,
		SnapDir:       cfg.SnapDir,
		LoginPerMin:   cfg.AdminLoginPerMin,
		CORSOrigins:   cfg.CORSOrigins,
		Secure:        cfg.Production(),
	}, handler.Deps{
		CheckIns: checkins,
		Codes:    codes,
		Reports:  attendance.NewReports(repo),
		Admin:    admin,
		AuditLog: auditStore,
		Limiter:  httpmiddleware.NewAttemptLimiter(counter, cfg.RateLimitMax, recorder, logger),
		Clock:    clock,
		Logger:   logger,
		Health:   health,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "db", cfg.DBDriver, "audit", cfg.AuditBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "error", err)
	}

	// In-flight requests are done; flush queued audit events.
	stopDrain()
	drainers.Wait()

	logger.Info("server exited")
	return nil
}
