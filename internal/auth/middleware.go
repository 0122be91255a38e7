package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ContextKey is the type of context keys set by this package.
type ContextKey string

const (
	// ClaimsKey holds the validated *Claims of an admin request.
	ClaimsKey ContextKey = "admin_claims"

	// HeaderAdminToken is the alternative to a Bearer Authorization header.
	HeaderAdminToken = "X-Admin-Token"
)

// Middleware guards admin routes.
type Middleware struct {
	jwtService *JWTService
	log        *zap.Logger
}

// NewMiddleware creates the admin middleware.
func NewMiddleware(jwtService *JWTService, log *zap.Logger) *Middleware {
	return &Middleware{
		jwtService: jwtService,
		log:        log,
	}
}

// TokenFromRequest finds a token in the Authorization header, the
// X-Admin-Token header or the token query parameter, in that order.
func TokenFromRequest(r *http.Request) string {
	if token := ExtractTokenFromBearer(r.Header.Get("Authorization")); token != "" {
		return token
	}
	if token := r.Header.Get(HeaderAdminToken); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}

// RequireAdmin rejects requests without a valid admin token.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := TokenFromRequest(r)
		if tokenString == "" {
			m.log.Debug("missing admin token", zap.String("path", r.URL.Path))
			unauthorized(w)
			return
		}

		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.log.Debug("invalid admin token", zap.String("path", r.URL.Path), zap.Error(err))
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the admin claims set by RequireAdmin.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(ErrorResponse{Error: "Unauthorized"})
}
