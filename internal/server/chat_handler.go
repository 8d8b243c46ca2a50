package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/unvios/memory-service/internal/auth"
	"github.com/unvios/memory-service/internal/llm"
	"github.com/unvios/memory-service/internal/models"
	"go.uber.org/zap"
)

// handleChat runs one retrieval-augmented chat turn. The only upstream
// failure surfaced to the client is the LLM call; everything else degrades
// inside the service.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, chatValidationMessage(err))
		return
	}

	output, err := s.chat.Chat(r.Context(), user.ID, req.Message)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.logger.Error("chat turn failed", zap.Int64("user_id", user.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.ChatResponse{Output: output})
}

// chatValidationMessage maps validator failures onto the messages the API has
// always returned for this endpoint.
func chatValidationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}

	fe := fieldErrs[0]
	switch {
	case fe.Field() == "Message" && (fe.Tag() == "required" || fe.Tag() == "min"):
		return "Message is required"
	case fe.Field() == "Message" && fe.Tag() == "max":
		return "Message too long"
	case fe.Field() == "ConversationHistory" && fe.Tag() == "max":
		return "Conversation history too long"
	case fe.Field() == "Content" && fe.Tag() == "max":
		return "Conversation history entry too long"
	}
	return fe.Error()
}
