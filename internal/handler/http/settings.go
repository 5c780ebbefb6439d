package http

import (
	"net/http"

	"go.uber.org/zap"

	"ttemp-link/internal/service"
)

// SettingsHandler serves analytics settings and the geo dataset refresh.
type SettingsHandler struct {
	settings *service.SettingsService
	log      *zap.Logger
}

func NewSettingsHandler(settings *service.SettingsService, log *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		log:      log.With(zap.String("component", "http.settings")),
	}
}

type SaveSettingsRequest struct {
	TrackCountry       bool   `json:"track_country"`
	UseGeoLiteFallback bool   `json:"use_geolite_fallback"`
	MaxMindLicenseKey  string `json:"maxmind_license_key" validate:"max=256"`
}

// GetSettings returns the settings and geo dataset status.
//
//	@Summary	Get analytics settings
//	@Tags		Settings
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	service.SettingsView
//	@Router		/api/settings [get]
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	view, err := h.settings.View(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, view, http.StatusOK)
}

// SaveSettings stores the settings. A blank license key keeps the stored one.
//
//	@Summary	Save analytics settings
//	@Tags		Settings
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		SaveSettingsRequest	true	"Settings"
//	@Success	200		{object}	service.SettingsView
//	@Router		/api/settings [put]
func (h *SettingsHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req SaveSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	view, err := h.settings.Save(r.Context(), service.SaveSettingsInput{
		TrackCountry:       req.TrackCountry,
		UseGeoLiteFallback: req.UseGeoLiteFallback,
		MaxMindLicenseKey:  req.MaxMindLicenseKey,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, view, http.StatusOK)
}

// RefreshGeoDatabase downloads the latest country dataset.
//
//	@Summary	Refresh the GeoLite2 Country dataset
//	@Tags		Settings
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	service.SettingsView
//	@Failure	400	{object}	ErrorResponse	"No license key"
//	@Failure	500	{object}	ErrorResponse	"Archive without MMDB"
//	@Router		/api/settings/geoip/refresh [post]
func (h *SettingsHandler) RefreshGeoDatabase(w http.ResponseWriter, r *http.Request) {
	view, err := h.settings.RefreshGeoDatabase(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, view, http.StatusOK)
}
