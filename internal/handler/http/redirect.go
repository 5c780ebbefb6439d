package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ttemp-link/internal/analytics"
	"ttemp-link/internal/domain"
	"ttemp-link/internal/metrics"
	"ttemp-link/internal/repository"
)

// LinkFinder resolves a slug to its link, active or not.
type LinkFinder interface {
	GetLinkBySlug(ctx context.Context, slug string) (*domain.Link, error)
}

// SettingsGetter returns the current analytics settings. It never fails.
type SettingsGetter interface {
	Get(ctx context.Context) *domain.AnalyticsSettings
}

// ClickResolver classifies the visitor of a redirect.
type ClickResolver interface {
	Resolve(ctx context.Context, req *http.Request, settings *domain.AnalyticsSettings) analytics.ClickInfo
}

// RedirectHandler serves public short links: lookup, classify, record, then 302.
type RedirectHandler struct {
	links     LinkFinder
	settings  SettingsGetter
	resolver  ClickResolver
	clicks    analytics.ClickSink
	publicURL string
	log       *zap.Logger
}

func NewRedirectHandler(
	links LinkFinder,
	settings SettingsGetter,
	resolver ClickResolver,
	clicks analytics.ClickSink,
	publicURL string,
	log *zap.Logger,
) *RedirectHandler {
	return &RedirectHandler{
		links:     links,
		settings:  settings,
		resolver:  resolver,
		clicks:    clicks,
		publicURL: strings.TrimSpace(publicURL),
		log:       log.With(zap.String("component", "http.redirect")),
	}
}

// HandleRedirect sends the visitor to the link destination. Unknown and inactive slugs
// are 404 and record nothing. HEAD requests get the same response without a click.
func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	slug := chi.URLParam(r, "slug")

	link, err := h.links.GetLinkBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			metrics.ObserveRedirect("not_found", time.Since(start))
			http.NotFound(w, r)
			return
		}
		metrics.ObserveRedirect("error", time.Since(start))
		h.log.Error("failed to look up slug", zap.String("slug", slug), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !link.IsActive {
		metrics.ObserveRedirect("not_found", time.Since(start))
		http.NotFound(w, r)
		return
	}

	// HEAD comes from link previews and uptime probes, not visitors.
	if r.Method != http.MethodHead {
		h.recordClick(r, link, start)
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, link.DestinationURL, http.StatusFound)
	metrics.ObserveRedirect("redirected", time.Since(start))
}

func (h *RedirectHandler) recordClick(r *http.Request, link *domain.Link, start time.Time) {
	// The click must be recorded even if the visitor disconnects first.
	ctx := context.WithoutCancel(r.Context())
	settings := h.settings.Get(ctx)
	info := h.resolver.Resolve(ctx, r, settings)
	h.clicks.Submit(ctx, analytics.ClickData{
		LinkID:     link.ID,
		Slug:       link.Slug,
		OccurredAt: start,
		Info:       info,
	})
}

// HandleRoot sends visitors of the bare short domain to the public admin app, when one
// is configured and is not this very host.
func (h *RedirectHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if h.publicURL == "" || sameOrigin(h.publicURL, r) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, h.publicURL, http.StatusFound)
}

func sameOrigin(target string, r *http.Request) bool {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	self := scheme + "://" + r.Host
	return strings.EqualFold(strings.TrimRight(target, "/"), self)
}
