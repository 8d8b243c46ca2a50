package server

import (
	"context"
	"errors"
	"net/http"
	"unicode"

	"github.com/unvios/memory-service/internal/auth"
	"github.com/unvios/memory-service/internal/models"
	"github.com/unvios/memory-service/internal/storage"
	"go.uber.org/zap"
)

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=100"`
	Name     string `json:"name" validate:"max=100"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !passwordMeetsPolicy(req.Password) {
		respondError(w, http.StatusBadRequest,
			"Password must contain at least one uppercase letter, one lowercase letter, and one number")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create user. Please try again.")
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Email, req.Name, hash)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			respondError(w, http.StatusBadRequest,
				"Email already registered. Please use a different email or sign in.")
			return
		}
		s.logger.Error("signup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to create user. Please try again.")
		return
	}

	s.startSession(w, r, user, models.ActivitySignUp)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.ComparePasswords(req.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "Invalid email or password. Please try again.")
		return
	}

	s.startSession(w, r, user, models.ActivitySignIn)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := s.sessions.TokenFromRequest(r); token != "" {
		if userID, err := s.sessions.VerifyToken(token); err == nil {
			s.logActivity(r.Context(), userID, models.ActivitySignOut, clientIP(r))
		}
	}
	s.sessions.ClearCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,min=8,max=100"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=100"`
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !auth.ComparePasswords(req.CurrentPassword, user.PasswordHash) {
		respondError(w, http.StatusBadRequest, "Current password is incorrect.")
		return
	}
	if req.CurrentPassword == req.NewPassword {
		respondError(w, http.StatusBadRequest,
			"New password must be different from the current password.")
		return
	}
	if !passwordMeetsPolicy(req.NewPassword) {
		respondError(w, http.StatusBadRequest,
			"Password must contain at least one uppercase letter, one lowercase letter, and one number")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}
	if err := s.store.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		s.logger.Error("password update failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}
	s.logActivity(r.Context(), user.ID, models.ActivityUpdatePassword, clientIP(r))

	respondJSON(w, http.StatusOK, map[string]string{"success": "Password updated successfully."})
}

type deleteAccountRequest struct {
	Password string `json:"password" validate:"required,min=8,max=100"`
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req deleteAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !auth.ComparePasswords(req.Password, user.PasswordHash) {
		respondError(w, http.StatusBadRequest, "Incorrect password. Account deletion failed.")
		return
	}

	s.logActivity(r.Context(), user.ID, models.ActivityDeleteAccount, clientIP(r))

	// Soft delete: memories are intentionally left in place.
	if err := s.store.SoftDeleteUser(r.Context(), user.ID); err != nil {
		s.logger.Error("account deletion failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	s.sessions.ClearCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user *models.User, activity models.ActivityType) {
	token, expires, err := s.sessions.SignToken(user.ID)
	if err != nil {
		s.logger.Error("failed to sign session token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	s.sessions.SetCookie(w, token, expires)
	s.logActivity(r.Context(), user.ID, activity, clientIP(r))

	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

// logActivity is best-effort: audit rows never block an auth flow.
func (s *Server) logActivity(ctx context.Context, userID int64, action models.ActivityType, ip string) {
	err := s.store.LogActivity(ctx, &models.ActivityLog{UserID: userID, Action: action, IPAddress: ip})
	if err != nil {
		s.logger.Warn("activity log skipped", zap.Error(err))
	}
}

func passwordMeetsPolicy(password string) bool {
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

func clientIP(r *http.Request) string {
	// RealIP middleware already folded X-Forwarded-For into RemoteAddr.
	return r.RemoteAddr
}
