package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pgsteward/pgsteward/internal/auth"
	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/pkg/config"
)

// AuthHandler exchanges the configured API key for short-lived JWTs.
type AuthHandler struct {
	jwtManager *auth.JWTManager
	cfg        *config.AuthConfig
	logger     *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(jwtManager *auth.JWTManager, cfg *config.AuthConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		jwtManager: jwtManager,
		cfg:        cfg,
		logger:     logger.With("handler", "auth"),
	}
}

// Token exchanges the API key for a bearer token.
// POST /api/v1/auth/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if h.cfg.APIKeyHash == "" {
		writeJSON(w, http.StatusBadRequest, models.APIError{
			Code:    models.ErrCodeBadRequest,
			Message: "Authentication is disabled; no API key is configured",
		})
		return
	}

	var req struct {
		APIKey string `json:"api_key"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.APIKey == "" {
		writeJSON(w, http.StatusBadRequest, models.APIError{
			Code:    models.ErrCodeValidation,
			Message: "api_key is required",
		})
		return
	}

	if err := auth.VerifyAPIKey(h.cfg.APIKeyHash, req.APIKey); err != nil {
		if errors.Is(err, models.ErrInvalidAPIKey) {
			writeJSON(w, http.StatusUnauthorized, models.APIError{
				Code:    models.ErrCodeUnauthorized,
				Message: "Invalid API key",
			})
			return
		}
		h.logger.Error("API key verification failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Token issuance failed",
		})
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateAccessToken("api")
	if err != nil {
		h.logger.Error("token generation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Token issuance failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(h.jwtManager.AccessTokenTTL().Seconds()),
		"expires_at":   expiresAt,
	})
}
