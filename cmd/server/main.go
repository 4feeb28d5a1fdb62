package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/paircast/relay/internal/config"
	"github.com/paircast/relay/internal/database"
	"github.com/paircast/relay/internal/handler"
	"github.com/paircast/relay/internal/jobs"
	"github.com/paircast/relay/internal/middleware"
	"github.com/paircast/relay/internal/redis"
	"github.com/paircast/relay/internal/repository"
	"github.com/paircast/relay/internal/service"
	"github.com/paircast/relay/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	codeRepo := repository.NewAccessCodeRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	codeService := service.NewCodeService(codeRepo, cfg.CodeTTL())
	relayService := service.NewRelayService(codeService, broker)

	rateLimitMiddleware := middleware.NewIPRateLimitMiddleware(redisClient.Client, cfg.CodeRateLimitPerMin)

	var checkOrigin func(r *http.Request) bool
	if cfg.AllowAllOrigins {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	wsHandler := handler.NewWSHandler(relayService, checkOrigin)
	eventsHandler := handler.NewEventsHandler(broker)
	codeHandler := handler.NewCodeHandler(codeService, codeRepo, broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/ws/", wsHandler.ServeHTTP)
	r.Get("/sse/", eventsHandler.ServeHTTP)

	r.Route("/code", func(r chi.Router) {
		r.Use(rateLimitMiddleware.Handler)
		r.Get("/", codeHandler.ServeHTTP)
	})

	rotateJob := jobs.NewRotateJob(codeService, broker, cfg.CodeTTL())
	rotateJob.Start()
	defer rotateJob.Stop()

	cleanupJob := jobs.NewCleanupJob(codeRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// WriteTimeout stays zero: the push endpoint holds its response
		// open for the life of the subscription.
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
