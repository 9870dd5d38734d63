package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"chatwire/internal/api"
	"chatwire/internal/auth"
	"chatwire/internal/config"
	"chatwire/internal/conversation"
	"chatwire/internal/database"
	"chatwire/internal/router"
	"chatwire/internal/session"
	"chatwire/internal/websocket"
	dbconfig "chatwire/pkg/database"
)

// Application coordinates all system components. Initialization follows
// dependency order: Store → Auth → Registry → Session → Conversation →
// Router → API → HTTP.
type Application struct {
	config     *config.Config
	store      *database.Store
	provider   *auth.Provider
	registry   *websocket.Registry
	sessions   *session.Manager
	engine     *conversation.Engine
	msgRouter  *router.Router
	apiServer  *api.Server
	httpServer *http.Server
}

// NewApplication creates an application with all components wired.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbCfg := dbconfig.DefaultConfig()
	dbCfg.DatabasePath = cfg.Database.Path

	store, err := database.NewStore(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	validator := dbconfig.NewSchemaValidator(store.DB())
	if err := validator.ValidateTablesExist(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	provider, err := auth.NewProvider(store, []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize auth provider: %w", err)
	}

	registry := websocket.NewRegistry()
	sessions := session.NewManager(provider, registry)
	engine := conversation.NewEngine(store, store, sessions)
	typing := conversation.NewTypingTracker(conversation.DefaultTypingTimeout)
	msgRouter := router.NewRouter(sessions, store, store, engine, typing)

	apiServer := api.NewServer(provider, store, store, sessions)
	wsHandler := websocket.NewHandler(sessions, msgRouter, cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      store,
		provider:   provider,
		registry:   registry,
		sessions:   sessions,
		engine:     engine,
		msgRouter:  msgRouter,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start begins serving. It returns once the listener is up or startup
// failed.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("starting chatwire on %s", app.httpServer.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("chatwire started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP first so no new
// connections arrive, then the store.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("shutting down chatwire")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.store.Close(); err != nil {
		log.Printf("store shutdown error: %v", err)
	}

	log.Printf("chatwire shutdown complete")
	return nil
}

// Addr returns the server address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
