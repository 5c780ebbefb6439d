package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ttemp-link/internal/analytics"
	"ttemp-link/internal/auth"
	"ttemp-link/internal/domain"
	"ttemp-link/internal/service"
)

// LinksHandler serves the admin link endpoints.
type LinksHandler struct {
	links      *service.LinkService
	aggregator *analytics.Aggregator
	baseURL    string
	log        *zap.Logger
}

func NewLinksHandler(links *service.LinkService, aggregator *analytics.Aggregator, baseURL string, log *zap.Logger) *LinksHandler {
	return &LinksHandler{
		links:      links,
		aggregator: aggregator,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log.With(zap.String("component", "http.links")),
	}
}

type CreateLinkRequest struct {
	Destination string   `json:"destination" validate:"required"`
	Slug        string   `json:"slug,omitempty"`
	Title       string   `json:"title,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type UpdateLinkRequest struct {
	Destination *string `json:"destination,omitempty"`
	Slug        *string `json:"slug,omitempty"`
	Title       *string `json:"title,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type TagRequest struct {
	Tag string `json:"tag"`
}

// LinkResponse is a link plus its public short URL.
type LinkResponse struct {
	ID             uuid.UUID `json:"id"`
	Slug           string    `json:"slug"`
	ShortURL       string    `json:"short_url"`
	DestinationURL string    `json:"destination_url"`
	Title          *string   `json:"title"`
	Tags           []string  `json:"tags"`
	IsActive       bool      `json:"is_active"`
	TotalClicks    int64     `json:"total_clicks"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ListLinksResponse struct {
	Links []LinkResponse `json:"links"`
}

type LinkDetailResponse struct {
	Link  LinkResponse         `json:"link"`
	Stats *analytics.LinkStats `json:"stats"`
}

// ListLinks returns the caller's links, newest first.
//
//	@Summary	List links
//	@Tags		Links
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	ListLinksResponse
//	@Failure	401	{object}	ErrorResponse
//	@Router		/api/links [get]
func (h *LinksHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	links, err := h.links.List(r.Context(), owner)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	resp := ListLinksResponse{Links: make([]LinkResponse, 0, len(links))}
	for _, link := range links {
		resp.Links = append(resp.Links, h.toResponse(link))
	}
	writeJSON(w, h.log, resp, http.StatusOK)
}

// CreateLink shortens a destination URL.
//
//	@Summary	Create a short link
//	@Tags		Links
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		CreateLinkRequest	true	"Link creation request"
//	@Success	201		{object}	LinkResponse
//	@Failure	400		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse	"Field validation failed"
//	@Router		/api/links [post]
func (h *LinksHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req CreateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	link, err := h.links.Create(r.Context(), owner, service.CreateLinkInput{
		Destination: req.Destination,
		Slug:        req.Slug,
		Title:       req.Title,
		Tags:        req.Tags,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, h.toResponse(link), http.StatusCreated)
}

// GetLink returns one link with its last-7-days stats.
//
//	@Summary	Get a link
//	@Tags		Links
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Link ID"
//	@Success	200	{object}	LinkDetailResponse
//	@Failure	403	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/links/{id} [get]
func (h *LinksHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	link, err := h.links.Get(r.Context(), owner, id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	stats, err := h.aggregator.LinkRangeStats(r.Context(), link.ID, analytics.DefaultDashboardRange)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, LinkDetailResponse{Link: h.toResponse(link), Stats: stats}, http.StatusOK)
}

// GetLinkStats compares the last range with the one before it.
//
//	@Summary	Link range stats
//	@Tags		Links
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string	true	"Link ID"
//	@Param		range	query		int		false	"Days (7, 15, 30)"
//	@Success	200		{object}	analytics.LinkStats
//	@Failure	404		{object}	ErrorResponse
//	@Router		/api/links/{id}/stats [get]
func (h *LinksHandler) GetLinkStats(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}
	if _, err := h.links.Get(r.Context(), owner, id); err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	days := analytics.ParseRange(r.URL.Query().Get("range"), analytics.DashboardRanges, analytics.DefaultDashboardRange)
	stats, err := h.aggregator.LinkRangeStats(r.Context(), id, days)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, stats, http.StatusOK)
}

// UpdateLink changes slug, destination, title or active flag.
//
//	@Summary	Update a link
//	@Tags		Links
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string				true	"Link ID"
//	@Param		request	body		UpdateLinkRequest	true	"Changes"
//	@Success	200		{object}	LinkResponse
//	@Failure	403		{object}	ErrorResponse
//	@Failure	404		{object}	ErrorResponse
//	@Failure	422		{object}	ErrorResponse
//	@Router		/api/links/{id} [patch]
func (h *LinksHandler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	var req UpdateLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	link, err := h.links.Update(r.Context(), owner, id, service.UpdateLinkInput{
		Destination: req.Destination,
		Slug:        req.Slug,
		Title:       req.Title,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, h.toResponse(link), http.StatusOK)
}

// DeleteLink removes a link and its analytics.
//
//	@Summary	Delete a link
//	@Tags		Links
//	@Security	BearerAuth
//	@Param		id	path	string	true	"Link ID"
//	@Success	204
//	@Failure	403	{object}	ErrorResponse
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/links/{id} [delete]
func (h *LinksHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}
	if err := h.links.Delete(r.Context(), owner, id); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddTag adds a tag to a link.
//
//	@Summary	Add a tag
//	@Tags		Links
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string		true	"Link ID"
//	@Param		request	body		TagRequest	true	"Tag"
//	@Success	200		{object}	service.TagResult
//	@Router		/api/links/{id}/tags [post]
func (h *LinksHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	var req TagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	res, err := h.links.AddTag(r.Context(), owner, id, req.Tag)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, res, tagStatus(res))
}

// RemoveTag removes a tag from a link.
//
//	@Summary	Remove a tag
//	@Tags		Links
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Link ID"
//	@Param		tag	path		string	true	"Tag"
//	@Success	200	{object}	service.TagResult
//	@Router		/api/links/{id}/tags/{tag} [delete]
func (h *LinksHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := h.ownerAndID(w, r)
	if !ok {
		return
	}

	res, err := h.links.RemoveTag(r.Context(), owner, id, chi.URLParam(r, "tag"))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, h.log, res, tagStatus(res))
}

func tagStatus(res *service.TagResult) int {
	if res.OK {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func (h *LinksHandler) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	owner, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.log, "Authorization required", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return owner, true
}

func (h *LinksHandler) ownerAndID(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	owner, ok := h.owner(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, "Link not found", http.StatusNotFound)
		return uuid.Nil, uuid.Nil, false
	}
	return owner, id, true
}

func (h *LinksHandler) toResponse(link *domain.Link) LinkResponse {
	tags := []string(link.Tags)
	if tags == nil {
		tags = []string{}
	}
	return LinkResponse{
		ID:             link.ID,
		Slug:           link.Slug,
		ShortURL:       h.baseURL + "/" + link.Slug,
		DestinationURL: link.DestinationURL,
		Title:          link.Title,
		Tags:           tags,
		IsActive:       link.IsActive,
		TotalClicks:    link.TotalClicks,
		CreatedAt:      link.CreatedAt,
		UpdatedAt:      link.UpdatedAt,
	}
}
