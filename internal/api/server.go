package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chatwire/internal/auth"
	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// HealthChecker is implemented by the store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PresenceStats is implemented by the session manager.
type PresenceStats interface {
	Stats() map[string]int
}

// Server is the HTTP surface: account registration and login, profile
// access, and health. No chat logic lives here; realtime traffic goes
// over the WebSocket endpoint.
type Server struct {
	provider *auth.Provider
	users    interfaces.UserStore
	health   HealthChecker
	presence PresenceStats
	router   *mux.Router
}

// NewServer creates the API server and wires its routes.
func NewServer(provider *auth.Provider, users interfaces.UserStore, health HealthChecker, presence PresenceStats) *Server {
	s := &Server{
		provider: provider,
		users:    users,
		health:   health,
		presence: presence,
		router:   mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware, s.jsonMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.register).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/users/me", s.profile).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/users/me", s.updateProfile).Methods(http.MethodPut, http.MethodOptions)

	s.router.HandleFunc("/health", s.healthCheck).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	DisplayColor string `json:"messageColor"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	creds, err := s.provider.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrUsernameTaken), errors.Is(err, interfaces.ErrEmailTaken):
			s.sendError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, types.ErrInvalidUsername),
			errors.Is(err, types.ErrInvalidEmail),
			errors.Is(err, auth.ErrPasswordTooShort):
			s.sendError(w, err.Error(), http.StatusBadRequest)
		default:
			s.sendError(w, "registration failed", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(creds)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	creds, err := s.provider.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.sendError(w, "invalid credentials", http.StatusUnauthorized)
		} else {
			s.sendError(w, "login failed", http.StatusInternalServerError)
		}
		return
	}

	_ = json.NewEncoder(w).Encode(creds)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(user)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if req.DisplayColor != "" {
		if !types.IsValidDisplayColor(req.DisplayColor) {
			s.sendError(w, types.ErrInvalidColor.Error(), http.StatusBadRequest)
			return
		}
		if err := s.users.UpdateDisplayColor(r.Context(), user.ID, req.DisplayColor); err != nil {
			s.sendError(w, "profile update failed", http.StatusInternalServerError)
			return
		}
	}

	updated, err := s.users.UserByID(r.Context(), user.ID)
	if err != nil {
		s.sendError(w, "profile update failed", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(updated)
}

// authenticate resolves the bearer token on profile routes.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*types.User, bool) {
	identity, err := s.provider.VerifyToken(r.Header.Get("Authorization"))
	if err != nil {
		s.sendError(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	user, err := s.users.UserByID(r.Context(), identity.ID)
	if err != nil {
		s.sendError(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

type healthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Database    string         `json:"database"`
	Connections map[string]int `json:"connections"`
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.health.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = fmt.Sprintf("error: %v", err)
	}

	response := healthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.presence.Stats(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
