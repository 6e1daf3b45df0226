package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hirelane/proctor-backend/internal/config"
	"github.com/hirelane/proctor-backend/internal/database"
	"github.com/hirelane/proctor-backend/internal/handler"
	"github.com/hirelane/proctor-backend/internal/logger"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/hirelane/proctor-backend/internal/repository"
	"github.com/hirelane/proctor-backend/internal/router"
	"github.com/hirelane/proctor-backend/internal/service"
	"github.com/hirelane/proctor-backend/internal/store"
	"github.com/hirelane/proctor-backend/internal/validator"
	"github.com/hirelane/proctor-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Proctor Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	invitationRepo := repository.NewInvitationRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	integrityRepo := repository.NewIntegrityRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	markers := store.NewRedisStore(rdb, 24*time.Hour)

	authService := service.NewAuthService(cfg, rdb)
	loaderService := service.NewLoaderService(invitationRepo, testRepo, rdb, log)
	verificationService := service.NewVerificationService(invitationRepo, markers, log)
	mediaService := service.NewMediaService(cfg)
	sessionService := service.NewSessionService(loaderService, verificationService, rdb, log)
	submissionService := service.NewSubmissionService(sessionService, verificationService, invitationRepo, resultRepo, rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	wsHandler := handler.NewWSHandler(sessionService, submissionService, log, cfg.AllowedOrigins)
	handlers := &router.Handlers{
		Candidate: handler.NewCandidateHandler(
			authService, loaderService, verificationService,
			mediaService, sessionService, submissionService,
		),
		WS: wsHandler,
	}

	// Countdown expiry is pushed to the candidate's open exam stream, and
	// the auto-submit trigger converges on the same single-flight
	// submission path as the candidate's submit press.
	sessionService.SetExpiryHandler(wsHandler.NotifyExpired)
	sessionService.SetAutoSubmitHandler(func(inv *model.Invitation) {
		submitCtx, submitCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer submitCancel()
		ack, err := submissionService.Submit(submitCtx, inv, service.SubmitTriggerTimeout)
		if err != nil {
			log.Error().Err(err).Str("invitation_id", inv.ID.String()).Msg("Auto-submit failed")
			return
		}
		wsHandler.NotifySubmitted(inv.ID, ack)
	})

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	integrityWorker := worker.NewIntegrityWorker(integrityRepo, rdb, log)
	resultWorker := worker.NewResultWorker(resultRepo, pool, rdb, log)

	go integrityWorker.Start(workerCtx)
	go resultWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
