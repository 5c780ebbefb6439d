// Package main runs the public ttemp-link redirect service.
package main

import (
	"context"
	"errors"
	lg "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ttemp-link/internal/analytics"
	"ttemp-link/internal/cache"
	"ttemp-link/internal/config"
	"ttemp-link/internal/database"
	"ttemp-link/internal/geo"
	httpHandler "ttemp-link/internal/handler/http"
	"ttemp-link/internal/repository/postgres"
	"ttemp-link/pkg/logger"
	"ttemp-link/pkg/useragent"
)

const version = "1.0.0"

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env).With(zap.String("service", "redirect"))
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting ttemp-link redirect", zap.String("env", cfg.Env))

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	storage := postgres.New(db, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	uaParser, err := useragent.NewParser(cfg.Analytics.UARegexesPath, log)
	if err != nil {
		log.Warn("failed to load User-Agent regexes, using embedded set", zap.Error(err))
		if uaParser, err = useragent.NewParser("", log); err != nil {
			log.Fatal("failed to initialize User-Agent parser", zap.Error(err))
		}
	}

	var linkCache *cache.LinkCache
	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, serving lookups from the database", zap.Error(err))
		} else {
			defer func(c *redis.Client) { _ = c.Close() }(client)
			linkCache = cache.NewLinkCache(client, cfg.Redis, log)
		}
	}

	countryReader := geo.NewReader(storage, geo.OpenMMDB, cfg.GeoIP.VersionCheckInterval, log)
	resolver := analytics.NewResolver(uaParser, countryReader, log)
	settings := analytics.NewSettingsProvider(storage, cfg.Analytics.SettingsTTL, log)
	recorder := analytics.NewRecorder(storage, log)

	var sink analytics.ClickSink = recorder
	var processor *analytics.Processor
	if cfg.Analytics.AsyncRecording {
		procCfg := analytics.DefaultConfig()
		procCfg.WorkerCount = cfg.Analytics.Workers
		procCfg.BufferSize = cfg.Analytics.BufferSize
		procCfg.RetryAttempts = cfg.Analytics.RetryAttempts
		procCfg.RetryDelay = cfg.Analytics.RetryDelay
		processor = analytics.NewProcessor(recorder, log, procCfg)
		if err := processor.Start(); err != nil {
			log.Fatal("failed to start click processor", zap.Error(err))
		}
		sink = processor
	}

	redirectHandler := httpHandler.NewRedirectHandler(
		cache.NewLinkLookup(linkCache, storage, log),
		settings,
		resolver,
		sink,
		cfg.Admin.PublicURL,
		log,
	)
	healthHandler := httpHandler.NewHealthHandler(storage, version, log)

	server := &http.Server{
		Addr:         cfg.HTTPServer.RedirectAddress,
		Handler:      httpHandler.RedirectRoutes(redirectHandler, healthHandler, log),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("redirect HTTP server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("redirect HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down ttemp-link redirect")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown redirect HTTP server", zap.Error(err))
	}

	if processor != nil {
		if err := processor.Stop(); err != nil {
			log.Error("failed to stop click processor", zap.Error(err))
		}
	}
	log.Info("redirect service stopped")
}
