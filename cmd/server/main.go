package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"imagecaster/internal/app"
	"imagecaster/internal/config"
	"imagecaster/internal/handlers"
	"imagecaster/internal/logging"
	"imagecaster/internal/middleware"
	"imagecaster/internal/pipeline"
	"imagecaster/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

// maxUploadBytes bounds audio uploaded through the API.
const maxUploadBytes = 1 << 30

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("could not load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	logger := *logging.GlobalLogger()

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	ctx := context.Background()
	p, err := app.NewPipeline(ctx, cfg, client, logger)
	if err != nil {
		logging.Fatal().Err(err).Msg("could not build pipeline")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, p, client, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("port", cfg.Port).Str("commit", CommitSHA).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("forced shutdown")
	}
	logging.Info().Msg("Server stopped")
}

func newRouter(cfg *config.Config, p *pipeline.Pipeline, enqueuer tasks.TaskEnqueuer, logger zerolog.Logger) http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	auth := middleware.NewAuth(cfg.TelegramBotToken, cfg.IsAdmin, 24*time.Hour, logger)
	limiter := middleware.NewRateLimiterMiddleware(rate.Limit(5), 20, logger)
	api.Use(auth.Middleware, limiter.Middleware)

	handlers.New(p, enqueuer, maxUploadBytes, logger).Register(r, api)
	return r
}
