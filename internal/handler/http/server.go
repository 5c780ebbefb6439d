package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"ttemp-link/internal/auth"
)

// AdminServer groups the admin API handlers.
type AdminServer struct {
	Auth           *auth.AuthHandlers
	AuthMiddleware *auth.Middleware
	Links          *LinksHandler
	Analytics      *AnalyticsHandler
	Settings       *SettingsHandler
	Health         *HealthHandler

	AllowedOrigins []string
	// LoginRateLimit is the number of auth requests allowed per IP per minute; 0 disables it.
	LoginRateLimit int
	Log            *zap.Logger
}

// Routes builds the admin router.
func (s *AdminServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger("admin", s.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.Health.Health)
	r.Get("/ready", s.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.LoginRateLimit > 0 {
				r.Use(httprate.LimitByIP(s.LoginRateLimit, time.Minute))
			}
			r.Post("/auth/register", s.Auth.Register)
			r.Post("/auth/login", s.Auth.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware.RequireAuth)

			r.Route("/links", func(r chi.Router) {
				r.Get("/", s.Links.ListLinks)
				r.Post("/", s.Links.CreateLink)
				r.Get("/{id}", s.Links.GetLink)
				r.Patch("/{id}", s.Links.UpdateLink)
				r.Delete("/{id}", s.Links.DeleteLink)
				r.Get("/{id}/stats", s.Links.GetLinkStats)
				r.Post("/{id}/tags", s.Links.AddTag)
				r.Delete("/{id}/tags/{tag}", s.Links.RemoveTag)
			})

			r.Get("/dashboard", s.Analytics.Dashboard)
			r.Get("/analytics", s.Analytics.Analytics)

			r.Get("/settings", s.Settings.GetSettings)
			r.Put("/settings", s.Settings.SaveSettings)
			r.Post("/settings/geoip/refresh", s.Settings.RefreshGeoDatabase)
		})
	})

	return r
}

// RedirectRoutes builds the public redirect router.
func RedirectRoutes(redirect *RedirectHandler, health *HealthHandler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger("redirect", log))
	r.Use(middleware.Recoverer)

	r.Get("/health", health.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", redirect.HandleRoot)
	r.Head("/", redirect.HandleRoot)
	r.Get("/{slug}", redirect.HandleRedirect)
	r.Head("/{slug}", redirect.HandleRedirect)

	return r
}
