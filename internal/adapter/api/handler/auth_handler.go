package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/trailwatch/internal/adapter/api/middleware"
	"github.com/V4T54L/trailwatch/internal/domain"
	"github.com/V4T54L/trailwatch/internal/usecase"
)

// AuthService is the account use case behind AuthHandler.
type AuthService interface {
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) (string, error)
	ChangePassword(ctx context.Context, email, newPassword string) error
}

// AuthHandler handles registration, login and password changes.
type AuthHandler struct {
	svc    AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger.With("component", "auth_handler")}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account.
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	err := h.svc.Register(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		respondWithMessage(w, h.logger, http.StatusCreated, "User registered")
	case errors.Is(err, usecase.ErrInvalidInput):
		respondWithMessage(w, h.logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondWithMessage(w, h.logger, http.StatusConflict, "User already exists")
	default:
		h.logger.Error("failed to register user", "error", err)
		respondWithMessage(w, h.logger, http.StatusInternalServerError, "Internal server error")
	}
}

// Login exchanges credentials for a bearer token.
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			respondWithMessage(w, h.logger, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("failed to log in", "error", err)
		respondWithMessage(w, h.logger, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"token": token})
}

// ChangePassword sets a new password for the authenticated account.
// PUT /api/account/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	email, ok := middleware.UserEmail(r.Context())
	if !ok {
		respondWithMessage(w, h.logger, http.StatusUnauthorized, "Token is missing")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	err := h.svc.ChangePassword(r.Context(), email, req.Password)
	switch {
	case err == nil:
		respondWithMessage(w, h.logger, http.StatusOK, "Password updated")
	case errors.Is(err, usecase.ErrInvalidInput):
		respondWithMessage(w, h.logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondWithMessage(w, h.logger, http.StatusNotFound, "User not found")
	default:
		h.logger.Error("failed to change password", "error", err)
		respondWithMessage(w, h.logger, http.StatusInternalServerError, "Internal server error")
	}
}
