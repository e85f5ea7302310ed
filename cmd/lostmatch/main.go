package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lostmatch/internal/config"
	dbRedis "github.com/kailas-cloud/lostmatch/internal/db/redis"
	"github.com/kailas-cloud/lostmatch/internal/lock"
	logpkg "github.com/kailas-cloud/lostmatch/internal/logger"
	"github.com/kailas-cloud/lostmatch/internal/metrics"
	"github.com/kailas-cloud/lostmatch/internal/repository/embcache"
	matchrepo "github.com/kailas-cloud/lostmatch/internal/repository/match"
	notifrepo "github.com/kailas-cloud/lostmatch/internal/repository/notification"
	reportrepo "github.com/kailas-cloud/lostmatch/internal/repository/report"
	userrepo "github.com/kailas-cloud/lostmatch/internal/repository/user"
	chiTransport "github.com/kailas-cloud/lostmatch/internal/transport/chi"
	"github.com/kailas-cloud/lostmatch/internal/transport/imagematch"
	openaiText "github.com/kailas-cloud/lostmatch/internal/transport/openai"
	"github.com/kailas-cloud/lostmatch/internal/transport/smtp"
	"github.com/kailas-cloud/lostmatch/internal/transport/sse"
	"github.com/kailas-cloud/lostmatch/internal/transport/textmatch"
	compareuc "github.com/kailas-cloud/lostmatch/internal/usecase/compare"
	healthuc "github.com/kailas-cloud/lostmatch/internal/usecase/health"
	matchinguc "github.com/kailas-cloud/lostmatch/internal/usecase/matching"
	matchrecorduc "github.com/kailas-cloud/lostmatch/internal/usecase/matchrecord"
	notifyuc "github.com/kailas-cloud/lostmatch/internal/usecase/notify"
	preferencesuc "github.com/kailas-cloud/lostmatch/internal/usecase/preferences"
	projectionuc "github.com/kailas-cloud/lostmatch/internal/usecase/projection"
	"github.com/kailas-cloud/lostmatch/internal/usecase/rematch"
	thresholduc "github.com/kailas-cloud/lostmatch/internal/usecase/threshold"
	"github.com/kailas-cloud/lostmatch/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lostmatch",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Valkey and Redis speak the same protocol; the driver only picks topology.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		Standalone: cfg.Database.Driver == "redis",
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	metrics.RegisterMatchingMetrics()

	prefix := cfg.Storage.KeyPrefix
	reports := reportrepo.New(store, prefix)
	users := userrepo.New(store, prefix)
	matches := matchrepo.New(store, prefix).WithTopN(cfg.Matching.TopN)
	inbox := notifrepo.New(store, prefix, cfg.Notifications.MaxRecords).WithLogger(logger)

	images := imagematch.New(&imagematch.Config{
		BaseURL: cfg.ImageComparator.BaseURL,
		Timeout: time.Duration(cfg.ImageComparator.TimeoutSec) * time.Second,
		Logger:  logger,
	})
	comparer := compareuc.New(images, logger)
	textBackend := buildTextBackend(&cfg.TextSimilarity, store, prefix, logger)
	if textBackend != nil {
		comparer.WithText(textBackend, time.Duration(cfg.TextSimilarity.ProbeTTLSec)*time.Second)
	}
	logger.Info("Comparators ready",
		zap.String("image_comparator", cfg.ImageComparator.BaseURL),
		zap.String("text_provider", comparer.TextProvider()),
	)

	mailer := smtp.New(&smtp.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		Logger:   logger,
	})
	dispatcher := notifyuc.New(inbox, logger)
	if mailer.Enabled() {
		// The mail server is probed once; an unreachable server leaves email off
		// instead of failing every dispatch.
		if err := mailer.HealthCheck(ctx); err != nil {
			logger.Warn("SMTP server unreachable, email notifications disabled", zap.Error(err))
		} else {
			dispatcher.WithEmail(mailer, cfg.Email.PublicURL)
			logger.Info("Email notifications enabled", zap.String("smtp_host", cfg.Email.Host))
		}
	} else {
		logger.Info("Email notifications disabled, SMTP credentials missing")
	}

	var hub *sse.Hub
	if cfg.Notifications.RealtimeEnabled {
		hub = sse.NewHub(time.Duration(cfg.Notifications.HeartbeatSec)*time.Second, logger)
		dispatcher.WithRealtime(hub)
		defer hub.Close()
	}

	thresholds := thresholduc.New(users, cfg.Matching.DefaultThreshold, logger)
	matcher := matchinguc.New(reports, comparer, thresholds, matches, logger).
		WithNotifier(dispatcher, users).
		WithConcurrency(cfg.Matching.MaxConcurrency).
		WithCompareTimeout(time.Duration(cfg.Matching.CompareTimeoutSec) * time.Second).
		WithTextMatching(cfg.Matching.TextEnabled).
		WithTopN(cfg.Matching.TopN)

	scheduler := rematch.New(matcher, users, reports, logger).
		WithInterval(cfg.Scheduler.Interval()).
		WithLocker(buildLocker(&cfg.Scheduler, store, prefix))
	if cfg.Scheduler.Enabled {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	healthSvc := healthuc.New(store).
		WithCheck("image_comparator", images).
		WithCheck("text_service", textBackend)
	if mailer.Enabled() {
		healthSvc.WithCheck("email", mailer)
	}

	services := chiTransport.Services{
		Matching:    matcher,
		Matches:     matchrecorduc.New(matches, logger),
		Projections: projectionuc.New(reports, users, matcher, logger),
		Preferences: preferencesuc.New(users, scheduler, logger),
		Scheduler:   scheduler,
		Inbox:       inbox,
		Health:      healthSvc,
	}
	if hub != nil {
		services.Events = hub
	}
	server := chiTransport.NewServer(services, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	chiTransport.HandlerWithOptions(server, chiTransport.ServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
				Code:    chiTransport.ErrorCodeBadRequest,
				Message: err.Error(),
			})
		},
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	// Close realtime streams first so Shutdown does not wait on them.
	if hub != nil {
		hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildTextBackend returns nil for the local provider, which uses token overlap only.
func buildTextBackend(
	cfg *config.TextSimilarityConfig, store *dbRedis.Store, prefix string, logger *zap.Logger,
) compareuc.TextBackend {
	switch cfg.Provider {
	case "http":
		return textmatch.New(&textmatch.Config{
			URL:            cfg.URL,
			HealthTimeout:  time.Duration(cfg.HealthTimeoutSec) * time.Second,
			CompareTimeout: time.Duration(cfg.CompareTimeout) * time.Second,
		})
	case "openai":
		sim := openaiText.NewSimilarity(&openaiText.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			User:    "lostmatch",
			Logger:  logger,
		})
		if cfg.OpenAI.CacheTTLSec > 0 {
			sim.WithCache(embcache.New(store, prefix, time.Duration(cfg.OpenAI.CacheTTLSec)*time.Second, logger))
		}
		return sim
	default:
		return nil
	}
}

func buildLocker(cfg *config.SchedulerConfig, store *dbRedis.Store, prefix string) lock.Locker {
	switch cfg.Lock {
	case "file":
		return lock.NewFile(cfg.LockPath)
	case "redis":
		return lock.NewLease(store, prefix+"lock:rematch", time.Duration(cfg.LockTTLSec)*time.Second)
	default:
		return lock.Noop{}
	}
}
