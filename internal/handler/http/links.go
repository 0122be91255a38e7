package http

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"shrimp/internal/clock"
	"shrimp/internal/service"
)

// LinksHandler serves the public shorten/report endpoints and the admin
// link API.
type LinksHandler struct {
	links   *service.LinkService
	log     *zap.Logger
	baseURL string
}

// NewLinksHandler creates a links handler. baseURL, when set, is used to
// build short_url in shorten responses.
func NewLinksHandler(links *service.LinkService, log *zap.Logger, baseURL string) *LinksHandler {
	return &LinksHandler{
		links:   links,
		log:     log,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// ShortenResponse is the body of a successful POST /api/shorten.
type ShortenResponse struct {
	ID        int64        `json:"id"`
	Slug      string       `json:"slug"`
	URL       string       `json:"url"`
	ShortURL  string       `json:"short_url,omitempty"`
	CreatedAt clock.Stamp  `json:"created_at"`
	ExpiresAt *clock.Stamp `json:"expires_at"`
}

// Shorten creates a link from the public form.
//
//	@Summary		Shorten a URL
//	@Description	Create a short link. Rate limited per client.
//	@Tags			Links
//	@Accept			json
//	@Produce		json
//	@Param			request	body		service.CreateLinkInput	true	"Link to shorten"
//	@Success		201		{object}	ShortenResponse
//	@Failure		400		{object}	ErrorResponse	"Invalid request data"
//	@Failure		409		{object}	ErrorResponse	"Slug already in use"
//	@Failure		429		{object}	ErrorResponse	"Too many requests"
//	@Router			/api/shorten [post]
func (h *LinksHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLinkInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.log.Debug("invalid shorten request", zap.Error(err))
		writeError(w, h.log, "Invalid request format", http.StatusBadRequest)
		return
	}

	link, err := h.links.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "failed to shorten url")
		return
	}

	resp := ShortenResponse{
		ID:        link.ID,
		Slug:      link.Slug,
		URL:       link.URL,
		CreatedAt: link.CreatedAt,
		ExpiresAt: link.ExpiresAt,
	}
	if h.baseURL != "" {
		resp.ShortURL = h.baseURL + "/" + link.Slug
	}
	writeJSON(w, h.log, resp, http.StatusCreated)
}

// Report flags a link for admin review.
//
//	@Summary		Report a link
//	@Tags			Links
//	@Produce		json
//	@Param			slug	path		string	true	"Link slug"
//	@Success		200		{object}	SuccessResponse
//	@Failure		404		{object}	ErrorResponse	"Link not found"
//	@Failure		429		{object}	ErrorResponse	"Too many requests"
//	@Router			/api/report/{slug} [post]
func (h *LinksHandler) Report(w http.ResponseWriter, r *http.Request) {
	if err := h.links.Report(r.Context(), r.PathValue("slug")); err != nil {
		writeServiceError(w, h.log, err, "failed to report link")
		return
	}
	writeJSON(w, h.log, SuccessResponse{Success: true}, http.StatusOK)
}

// CreateLink creates a link from the admin dashboard.
//
//	@Summary		Create a link
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		service.CreateLinkInput	true	"Link"
//	@Success		201		{object}	domain.Link
//	@Failure		400		{object}	ErrorResponse	"Invalid request data"
//	@Failure		401		{object}	ErrorResponse	"Unauthorized"
//	@Failure		409		{object}	ErrorResponse	"Slug already in use"
//	@Router			/api/links [post]
func (h *LinksHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLinkInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.log.Debug("invalid create link request", zap.Error(err))
		writeError(w, h.log, "Invalid request format", http.StatusBadRequest)
		return
	}

	link, err := h.links.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "failed to create link")
		return
	}
	writeJSON(w, h.log, link, http.StatusCreated)
}

// ListLinks returns every link with its click count, newest first.
//
//	@Summary		List links
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		domain.LinkWithClicks
//	@Failure		401	{object}	ErrorResponse	"Unauthorized"
//	@Router			/api/links [get]
func (h *LinksHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.links.List(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "failed to list links")
		return
	}
	writeJSON(w, h.log, links, http.StatusOK)
}

// UpdateLink edits a link.
//
//	@Summary		Update a link
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		int						true	"Link ID"
//	@Param			request	body		service.UpdateLinkInput	true	"Changes"
//	@Success		200		{object}	domain.Link
//	@Failure		400		{object}	ErrorResponse	"Invalid request data"
//	@Failure		404		{object}	ErrorResponse	"Link not found"
//	@Failure		409		{object}	ErrorResponse	"Slug already in use"
//	@Router			/api/links/{id} [put]
func (h *LinksHandler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	var req service.UpdateLinkInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.log.Debug("invalid update link request", zap.Error(err))
		writeError(w, h.log, "Invalid request format", http.StatusBadRequest)
		return
	}

	link, err := h.links.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, h.log, err, "failed to update link")
		return
	}
	writeJSON(w, h.log, link, http.StatusOK)
}

// DeleteLink removes a link and its clicks.
//
//	@Summary		Delete a link
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Link ID"
//	@Success		200	{object}	SuccessResponse
//	@Failure		404	{object}	ErrorResponse	"Link not found"
//	@Router			/api/links/{id} [delete]
func (h *LinksHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	if err := h.links.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err, "failed to delete link")
		return
	}
	h.log.Info("link deleted", zap.Int64("id", id))
	writeJSON(w, h.log, SuccessResponse{Success: true}, http.StatusOK)
}

// GetLink returns one link in any state.
//
//	@Summary		Get a link
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Link ID"
//	@Success		200	{object}	domain.Link
//	@Failure		404	{object}	ErrorResponse	"Link not found"
//	@Router			/api/links/{id} [get]
func (h *LinksHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	link, err := h.links.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "failed to get link")
		return
	}
	writeJSON(w, h.log, link, http.StatusOK)
}

// ToggleLink flips a link between enabled and disabled.
//
//	@Summary		Toggle a link
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Link ID"
//	@Success		200	{object}	domain.Link
//	@Failure		404	{object}	ErrorResponse	"Link not found"
//	@Router			/api/links/{id}/disable [patch]
func (h *LinksHandler) ToggleLink(w http.ResponseWriter, r *http.Request) {
	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	link, err := h.links.ToggleDisabled(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "failed to toggle link")
		return
	}
	writeJSON(w, h.log, link, http.StatusOK)
}

// Analytics returns click statistics for a link.
//
//	@Summary		Link analytics
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		int	true	"Link ID"
//	@Success		200	{object}	domain.LinkAnalytics
//	@Failure		404	{object}	ErrorResponse	"Link not found"
//	@Router			/api/links/{id}/analytics [get]
func (h *LinksHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.linkID(w, r)
	if !ok {
		return
	}

	stats, err := h.links.Analytics(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "failed to get link analytics")
		return
	}
	writeJSON(w, h.log, stats, http.StatusOK)
}

// linkID parses the {id} path value. Malformed ids are reported as not
// found, like any other unknown link.
func (h *LinksHandler) linkID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, h.log, "Link not found", http.StatusNotFound)
		return 0, false
	}
	return id, true
}
