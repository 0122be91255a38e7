package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	"shrimp/internal/auth"
	"shrimp/internal/ratelimit"
	"shrimp/internal/repository"
	"shrimp/internal/service"
)

// Version is reported by /health.
const Version = "1.0.0"

// Server is the shrimp HTTP API: public shortening, admin link management
// and redirects.
type Server struct {
	authHandlers    *auth.AuthHandlers
	linksHandler    *LinksHandler
	redirectHandler *RedirectHandler
	healthHandler   *HealthHandler
	authMiddleware  *auth.Middleware
	shortenLimiter  *ratelimit.Limiter
	reportLimiter   *ratelimit.Limiter
	corsOrigin      string
	trustProxy      bool
	log             *zap.Logger
}

// NewServer creates the shrimp HTTP server. maintenance may be nil.
// trustProxy makes client identification use the proxy-appended
// X-Forwarded-For hop instead of the connection address.
func NewServer(
	links *service.LinkService,
	storage repository.Pinger,
	authHandlers *auth.AuthHandlers,
	authMiddleware *auth.Middleware,
	shortenLimiter *ratelimit.Limiter,
	reportLimiter *ratelimit.Limiter,
	maintenance MaintenanceStats,
	log *zap.Logger,
	baseURL string,
	corsOrigin string,
	trustProxy bool,
) *Server {
	return &Server{
		authHandlers:    authHandlers,
		linksHandler:    NewLinksHandler(links, log, baseURL),
		redirectHandler: NewRedirectHandler(links, trustProxy, log),
		healthHandler:   NewHealthHandler(storage, maintenance, log, Version, shortenLimiter, reportLimiter),
		authMiddleware:  authMiddleware,
		shortenLimiter:  shortenLimiter,
		reportLimiter:   reportLimiter,
		corsOrigin:      corsOrigin,
		trustProxy:      trustProxy,
		log:             log,
	}
}

// SetupRoutes builds the router.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health checks
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)

	// Swagger documentation
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Public endpoints
	shortenLimit := ratelimit.Middleware(s.shortenLimiter, "", s.trustProxy, s.log)
	reportLimit := ratelimit.Middleware(s.reportLimiter, "", s.trustProxy, s.log)
	mux.Handle("POST /api/shorten", shortenLimit(http.HandlerFunc(s.linksHandler.Shorten)))
	mux.Handle("POST /api/report/{slug}", reportLimit(http.HandlerFunc(s.linksHandler.Report)))
	mux.HandleFunc("POST /api/auth/verify", s.authHandlers.Verify)

	// Admin endpoints
	admin := s.authMiddleware.RequireAdmin
	mux.Handle("GET /api/links", admin(http.HandlerFunc(s.linksHandler.ListLinks)))
	mux.Handle("POST /api/links", admin(http.HandlerFunc(s.linksHandler.CreateLink)))
	mux.Handle("GET /api/links/{id}", admin(http.HandlerFunc(s.linksHandler.GetLink)))
	mux.Handle("PUT /api/links/{id}", admin(http.HandlerFunc(s.linksHandler.UpdateLink)))
	mux.Handle("DELETE /api/links/{id}", admin(http.HandlerFunc(s.linksHandler.DeleteLink)))
	mux.Handle("PATCH /api/links/{id}/disable", admin(http.HandlerFunc(s.linksHandler.ToggleLink)))
	mux.Handle("GET /api/links/{id}/analytics", admin(http.HandlerFunc(s.linksHandler.Analytics)))

	// Redirects
	mux.HandleFunc("GET /{slug}", s.redirectHandler.HandleRedirect)

	return chain(mux, Recover(s.log), RequestLogger(s.log), CORS(s.corsOrigin))
}

// StatsServer is the tide-charts HTTP API.
type StatsServer struct {
	statsHandler  *StatsHandler
	healthHandler *HealthHandler
	corsOrigin    string
	log           *zap.Logger
}

// NewStatsServer creates the tide-charts HTTP server.
func NewStatsServer(
	stats *service.StatsService,
	aggregator *service.Aggregator,
	storage repository.Pinger,
	log *zap.Logger,
	corsOrigin string,
) *StatsServer {
	return &StatsServer{
		statsHandler:  NewStatsHandler(stats, aggregator, log),
		healthHandler: NewHealthHandler(storage, nil, log, Version),
		corsOrigin:    corsOrigin,
		log:           log,
	}
}

// SetupRoutes builds the router.
func (s *StatsServer) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	mux.HandleFunc("GET /api/stats", s.statsHandler.Summary)
	mux.HandleFunc("GET /api/stats/timeline", s.statsHandler.Timeline)
	mux.HandleFunc("POST /api/stats/activity", s.statsHandler.RecordActivity)
	mux.HandleFunc("POST /api/stats/messages", s.statsHandler.RecordMessages)
	mux.HandleFunc("POST /api/stats/tools", s.statsHandler.RecordTools)
	mux.HandleFunc("POST /api/stats/sessions", s.statsHandler.RecordSession)

	return chain(mux, Recover(s.log), RequestLogger(s.log), CORS(s.corsOrigin))
}
