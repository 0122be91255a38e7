package http

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"shrimp/internal/domain"
	"shrimp/internal/ratelimit"
	"shrimp/internal/service"
)

// RedirectHandler resolves slugs to their destination.
type RedirectHandler struct {
	links      *service.LinkService
	trustProxy bool
	log        *zap.Logger
}

// NewRedirectHandler creates a redirect handler.
func NewRedirectHandler(links *service.LinkService, trustProxy bool, log *zap.Logger) *RedirectHandler {
	return &RedirectHandler{
		links:      links,
		trustProxy: trustProxy,
		log:        log,
	}
}

// HandleRedirect answers GET /{slug} with a 301 to the link target.
// Unknown, disabled and expired links all get the same plain-text 404.
func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	visit := visitFromRequest(r, h.trustProxy)

	// the click must be stored even if the client goes away mid-request
	ctx := context.WithoutCancel(r.Context())

	target, err := h.links.Resolve(ctx, slug, visit)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.log.Debug("slug not found", zap.String("slug", slug))
			http.Error(w, "Link not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to process redirect", zap.String("slug", slug), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.log.Debug("redirect",
		zap.String("slug", slug),
		zap.String("ip", visit.IP),
		zap.String("country", visit.Country))

	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

// visitFromRequest captures the click metadata verbatim; absent headers
// leave the field empty. The IP is the same client key the rate limiters use.
func visitFromRequest(r *http.Request, trustProxy bool) domain.Visit {
	return domain.Visit{
		Referrer:  firstHeader(r, "Referer", "Referrer"),
		UserAgent: r.UserAgent(),
		IP:        ratelimit.ClientKey(r, trustProxy),
		Country:   firstHeader(r, "Fly-Client-Country", "Cf-Ipcountry"),
		City:      firstHeader(r, "Fly-Client-City", "Cf-Ipcity"),
	}
}

func firstHeader(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := r.Header.Get(name); v != "" {
			return v
		}
	}
	return ""
}
