// Package main runs the ttemp-link admin API.
//
//	@title			ttemp-link Admin API
//	@version		1.0.0
//	@description	Short link management and click analytics.
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Authorization header. Format: "Bearer {token}"
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
	"ttemp-link/internal/auth"
	"ttemp-link/internal/cache"
	"ttemp-link/internal/config"
	"ttemp-link/internal/database"
	"ttemp-link/internal/geo"
	httpHandler "ttemp-link/internal/handler/http"
	"ttemp-link/internal/repository/postgres"
	"ttemp-link/internal/service"
	"ttemp-link/pkg/logger"

	_ "ttemp-link/docs"
)

const version = "1.0.0"

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env).With(zap.String("service", "admin"))
	defer func() {
		if err := log.Sync(); err != nil {
			lg.Printf("ERROR: failed to sync zap logger: %v\n", err)
		}
	}()

	log.Info("starting ttemp-link admin", zap.String("env", cfg.Env))

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("failed to close database connection", zap.Error(err))
		}
	}()

	if cfg.Database.AutoMigrate {
		log.Info("running database migrations (auto_migrate: true)")
		if err := database.AutoMigrate(db, log); err != nil {
			log.Fatal("failed to run database migrations", zap.Error(err))
		}
	}
	if err := database.SeedData(db, log); err != nil {
		log.Fatal("failed to seed database", zap.Error(err))
	}

	storage := postgres.New(db, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var linkCache *cache.LinkCache
	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, link cache invalidation disabled", zap.Error(err))
		} else {
			defer func(c *redis.Client) { _ = c.Close() }(client)
			linkCache = cache.NewLinkCache(client, cfg.Redis, log)
		}
	}
	lookup := cache.NewLinkLookup(linkCache, storage, log)

	updater := geo.NewUpdater(storage, cfg.GeoIP, nil, log)
	go updater.Run(ctx)

	linkService := service.NewLinkService(storage, service.NewTitleFetcher(cfg.Admin.TitleFetchTimeout, log), lookup, log)
	settingsService := service.NewSettingsService(storage, updater, log)
	aggregator := analytics.NewAggregator(storage, storage, log)

	jwtService := auth.NewJWTService(&auth.JWTConfig{
		SecretKey:           []byte(cfg.Auth.JWTSecret),
		AccessTokenDuration: cfg.Auth.AccessTokenTTL,
		Issuer:              cfg.Auth.Issuer,
	})

	adminServer := &httpHandler.AdminServer{
		Auth:           auth.NewAuthHandlers(storage, jwtService, auth.NewPasswordService(cfg.Auth.BcryptCost), cfg.Auth.AllowSignup, log),
		AuthMiddleware: auth.NewMiddleware(jwtService, log),
		Links:          httpHandler.NewLinksHandler(linkService, aggregator, cfg.Admin.ShortBaseURL, log),
		Analytics:      httpHandler.NewAnalyticsHandler(aggregator, log),
		Settings:       httpHandler.NewSettingsHandler(settingsService, log),
		Health:         httpHandler.NewHealthHandler(storage, version, log),
		AllowedOrigins: cfg.Admin.AllowedOrigins,
		LoginRateLimit: cfg.Auth.LoginRateLimit,
		Log:            log,
	}

	server := &http.Server{
		Addr:         cfg.HTTPServer.AdminAddress,
		Handler:      adminServer.Routes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("admin HTTP server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down ttemp-link admin")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown admin HTTP server", zap.Error(err))
	} else {
		log.Info("admin HTTP server stopped")
	}
}
