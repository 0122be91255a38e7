package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"shrimp/internal/config"
)

const tokenIssuer = "shrimp"

// AuthHandlers exchanges the admin password for a token.
type AuthHandlers struct {
	passwordHash    string
	jwtService      *JWTService
	passwordService *PasswordService
	log             *zap.Logger
}

// NewAuthHandlers creates the handlers from admin configuration. A
// configured hash is used as is; otherwise the plain password is hashed
// once here.
func NewAuthHandlers(cfg *config.Admin, jwtService *JWTService, passwordService *PasswordService, log *zap.Logger) (*AuthHandlers, error) {
	hash := cfg.PasswordHash
	if hash != "" {
		if err := CheckHash(hash); err != nil {
			return nil, err
		}
	} else {
		var err error
		if hash, err = passwordService.HashPassword(cfg.Password); err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	}

	return &AuthHandlers{
		passwordHash:    hash,
		jwtService:      jwtService,
		passwordService: passwordService,
		log:             log,
	}, nil
}

// NewJWTServiceFromConfig builds the token service for cfg, generating a
// secret when none is configured.
func NewJWTServiceFromConfig(cfg *config.Admin, log *zap.Logger) (*JWTService, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		var err error
		if secret, err = NewSecret(); err != nil {
			return nil, err
		}
		log.Warn("JWT_SECRET not set, generated an ephemeral secret; admin tokens will not survive a restart")
	}

	return NewJWTService(&JWTConfig{
		SecretKey:     secret,
		TokenDuration: cfg.TokenTTL,
		Issuer:        tokenIssuer,
	}), nil
}

// VerifyRequest is the body of POST /api/auth/verify.
type VerifyRequest struct {
	Password string `json:"password"`
}

// VerifyResponse carries the issued admin token.
type VerifyResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Verify checks the admin password and issues a token.
//
//	@Summary		Verify admin password
//	@Description	Exchange the admin password for a signed token
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		VerifyRequest	true	"Admin password"
//	@Success		200		{object}	VerifyResponse
//	@Failure		400		{object}	ErrorResponse	"Invalid request data"
//	@Failure		401		{object}	ErrorResponse	"Wrong password"
//	@Router			/api/auth/verify [post]
func (h *AuthHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid verify request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if req.Password == "" {
		h.writeError(w, "Password is required", http.StatusBadRequest)
		return
	}

	if err := h.passwordService.VerifyPassword(h.passwordHash, req.Password); err != nil {
		if !errors.Is(err, ErrInvalidPassword) {
			h.log.Error("failed to verify admin password", zap.Error(err))
		}
		h.log.Info("admin login rejected", zap.String("remote_addr", r.RemoteAddr))
		h.writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := h.jwtService.GenerateAdminToken()
	if err != nil {
		h.log.Error("failed to generate admin token", zap.Error(err))
		h.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.log.Info("admin login accepted", zap.String("remote_addr", r.RemoteAddr))
	h.writeJSON(w, VerifyResponse{Success: true, Token: token}, http.StatusOK)
}

func (h *AuthHandlers) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("failed to encode response", zap.Error(err))
	}
}

func (h *AuthHandlers) writeError(w http.ResponseWriter, message string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: message}, statusCode)
}
