package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/unvios/memory-service/internal/auth"
	"github.com/unvios/memory-service/internal/memory"
	"github.com/unvios/memory-service/internal/models"
	"github.com/unvios/memory-service/internal/storage"
	"go.uber.org/zap"
)

type memoryRequest struct {
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	items, err := s.store.ListMemories(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("failed to list memories", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch memories")
		return
	}
	if items == nil {
		items = []*models.Memory{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"grouped": memory.GroupByCategory(items),
		"items":   items,
	})
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req memoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mem, err := s.chat.SaveMemory(r.Context(), user.ID, req.Content, req.Category, req.Tags)
	if err != nil {
		s.logger.Error("failed to create memory", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to create memory")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"memory": mem})
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	id, ok := memoryID(w, r)
	if !ok {
		return
	}

	var req memoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mem, err := s.store.UpdateMemory(r.Context(), user.ID, id, req.Content, req.Category, req.Tags)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Memory not found or unauthorized")
			return
		}
		s.logger.Error("failed to update memory", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to update memory")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"memory": mem})
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	id, ok := memoryID(w, r)
	if !ok {
		return
	}

	if err := s.store.DeleteMemory(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Memory not found or unauthorized")
			return
		}
		s.logger.Error("failed to delete memory", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete memory")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func memoryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid memory ID")
		return 0, false
	}
	return id, true
}
