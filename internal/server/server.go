package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/unvios/memory-service/internal/auth"
	"github.com/unvios/memory-service/internal/memory"
	"github.com/unvios/memory-service/internal/storage"
	"go.uber.org/zap"
)

// Server wires the HTTP surface around the chat pipeline and stores.
type Server struct {
	store    storage.Storage
	sessions *auth.SessionManager
	chat     *memory.Service
	validate *validator.Validate
	logger   *zap.Logger
}

func New(store storage.Storage, sessions *auth.SessionManager, chat *memory.Service, logger *zap.Logger) *Server {
	return &Server{
		store:    store,
		sessions: sessions,
		chat:     chat,
		validate: validator.New(),
		logger:   logger,
	}
}

// Handler builds the router with all middleware and routes.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(s.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", s.handleHealth)

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", s.handleSignUp)
			r.Post("/signin", s.handleSignIn)
			r.Post("/signout", s.handleSignOut)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(s.sessions, s.store))

			r.Route("/user", func(r chi.Router) {
				r.Get("/", s.handleGetUser)
				r.Get("/export", s.handleExport)
				r.Put("/password", s.handleUpdatePassword)
				r.Delete("/", s.handleDeleteAccount)
				r.Post("/mobile", s.handleSetMobile)
				r.Post("/mobile/verify", s.handleVerifyMobile)
			})

			r.Route("/memories", func(r chi.Router) {
				r.Get("/", s.handleListMemories)
				r.Post("/", s.handleCreateMemory)
				r.Put("/{id}", s.handleUpdateMemory)
				r.Delete("/{id}", s.handleDeleteMemory)
			})

			r.Post("/llm/chat", s.handleChat)
		})
	})

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
