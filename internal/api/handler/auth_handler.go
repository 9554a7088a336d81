package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"greenloan-engine/internal/api/handler/dto"
	"greenloan-engine/internal/config"
	"greenloan-engine/internal/pkg/apperrors"
)

type AuthHandler struct {
	cfg    config.Config
	logger *slog.Logger
}

func NewAuthHandler(cfg config.Config, l *slog.Logger) *AuthHandler {
	return &AuthHandler{
		cfg:    cfg,
		logger: l.With("component", "AuthHandler"),
	}
}

// GenerateBearerToken generates a JWT bearer token for a user ID and role.
//
// @Summary Generate a JWT bearer token
// @Description Issues a signed bearer token carrying the user's ID and role.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "user identity"
// @Success 200 {object} map[string]string "Token successfully generated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request parameters"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/token [post]
func (h *AuthHandler) GenerateBearerToken(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	h.logger.Info("Generating bearer token")
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Error("failed to decode request body", "error", err)
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	if req.UserID <= 0 {
		h.logger.Error("userId is required")
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, "userId is required"))
		return
	}
	if req.Role == "" {
		req.Role = "customer"
	}

	claims := jwt.MapClaims{
		"sub":  req.UserID,
		"role": req.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(h.cfg.Server.Auth.JWTSecret))
	if err != nil {
		h.logger.Error("failed to sign token", "error", err)
		respondError(w, fmt.Errorf("%w: could not sign token", apperrors.ErrInternalServer))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": fmt.Sprintf("Bearer %s", tokenString)})
}
