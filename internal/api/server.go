package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/danghamo/accountd/docs"
	"github.com/danghamo/accountd/internal/api/handlers"
	"github.com/danghamo/accountd/internal/api/middleware"
	"github.com/danghamo/accountd/internal/app/session"
	events "github.com/danghamo/accountd/internal/cqrs"
	cqrshandlers "github.com/danghamo/accountd/internal/cqrs/handlers"
	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/internal/domain/preference"
	"github.com/danghamo/accountd/pkg/autorouter"
	"github.com/danghamo/accountd/pkg/config"
	"github.com/danghamo/accountd/pkg/logger"
	"github.com/danghamo/accountd/pkg/redisx"
	"github.com/danghamo/accountd/pkg/sse"
)

const (
	apiPrefix  = "/api/v1/"
	streamPath = "/api/v1/stream/account"
)

// Dependencies are the collaborators the server is built from. Redis and Bus may be nil.
type Dependencies struct {
	Redis           *redisx.Client
	Session         *session.Session
	Bus             *events.Bus
	PreferenceStore preference.Store
}

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	logger         *logger.Logger
	config         *config.Config
	serverID       string
	mux            *http.ServeMux
	router         *autorouter.AutoRouter
	redisClient    *redisx.Client
	session        *session.Session
	authMiddleware *middleware.AuthMiddleware
	sseBroadcaster *sse.SSEBroadcaster
	bus            *events.Bus
	relay          *events.AccountEventRelay

	accountHandler    *handlers.AccountHandler
	authHandler       *handlers.AuthHandler
	preferenceHandler *handlers.PreferenceHandler
	serverHandler     *handlers.ServerHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, logger *logger.Logger, deps Dependencies) (*Server, error) {
	if deps.Session == nil {
		return nil, errors.New("session is required")
	}
	if deps.PreferenceStore == nil {
		deps.PreferenceStore = preference.NewMemoryStore(nil)
	}

	apiLogger := logger.WithComponent("api")
	mux := http.NewServeMux()
	ctx, cancel := context.WithCancel(context.Background())
	provider := deps.Session.Provider()

	jwtService := account.NewJWTService(
		cfg.Auth.JWTSecret,
		cfg.Auth.JWTIssuer,
		cfg.Auth.JWTExpiration,
		cfg.Session.FilesRoot,
	)

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Server.GetServerAddr(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		logger:         apiLogger,
		config:         cfg,
		serverID:       newServerID(),
		mux:            mux,
		redisClient:    deps.Redis,
		session:        deps.Session,
		authMiddleware: middleware.NewAuthMiddleware(jwtService, apiLogger),
		sseBroadcaster: sse.NewSSEBroadcaster(sse.Config{}, apiLogger),
		bus:            deps.Bus,
		ctx:            ctx,
		cancel:         cancel,
	}
	s.router = autorouter.NewAutoRouter(mux, autorouter.RegistrationOptions{
		Prefix: apiPrefix,
		Logger: apiLogger,
	})

	var notifier handlers.Notifier
	if s.bus != nil {
		if err := s.setupEvents(provider); err != nil {
			cancel()
			return nil, err
		}
		notifier = events.NewSSEBroadcastHelper(s.bus)
	}

	s.accountHandler = handlers.NewAccountHandler(apiLogger, provider)
	s.authHandler = handlers.NewAuthHandler(apiLogger, provider, jwtService, deps.Session.Fallback())
	s.preferenceHandler = handlers.NewPreferenceHandler(apiLogger, provider, deps.PreferenceStore, notifier)
	s.serverHandler = handlers.NewServerHandler(s.serverID, cfg.Server.Host, cfg.Server.Port, cfg.Server.Environment, s.router.Routes)

	if err := s.setupRoutes(); err != nil {
		cancel()
		return nil, err
	}
	s.setupMiddleware()

	return s, nil
}

func newServerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
}

// setupEvents registers bus consumers and prepares the relay that feeds the bus
func (s *Server) setupEvents(provider *session.Provider) error {
	sseEventHandler := cqrshandlers.NewSSEEventHandler(s.sseBroadcaster, s.logger)

	err := s.bus.AddHandlers(
		cqrs.NewEventHandler("CurrentAccountChangedEvent", sseEventHandler.HandleCurrentAccountChangedEvent),
		cqrs.NewEventHandler("AccountsRemovedEvent", sseEventHandler.HandleAccountsRemovedEvent),
		cqrs.NewEventHandler("SSENotificationEvent", sseEventHandler.HandleSSENotificationEvent),
	)
	if err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	s.relay = events.NewAccountEventRelay(provider, s.bus, s.serverID, s.logger)
	return nil
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes() error {
	healthPath := s.config.Server.HealthCheckPath
	if healthPath == "" {
		healthPath = "/health"
	}
	s.mux.HandleFunc(healthPath, s.healthCheckHandler)
	s.mux.Handle("/swagger/", httpSwagger.WrapHandler)
	s.mux.Handle(streamPath, s.sseBroadcaster.HandleAccountStream(s.session.Provider()))

	requireAuth := autorouter.Middleware(s.authMiddleware.RequireAuth)

	registrations := []func() error{
		func() error { return s.router.WithMethodPrefix("account.").RegisterHandlers(s.accountHandler) },
		func() error {
			return s.router.RegisterSingleMethodWithAuth(s.accountHandler, "HandleRemove", "account.Remove", requireAuth)
		},
		func() error { return s.router.WithMethodPrefix("auth.").RegisterHandlers(s.authHandler) },
		func() error {
			return s.router.RegisterSingleMethodWithAuth(s.authHandler, "HandleSignOut", "auth.SignOut", requireAuth)
		},
		func() error { return s.router.WithMethodPrefix("preference.").RegisterHandlers(s.preferenceHandler) },
		func() error { return s.router.WithMethodPrefix("server.").RegisterHandlers(s.serverHandler) },
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return fmt.Errorf("failed to register routes: %w", err)
		}
	}

	return nil
}

// setupMiddleware applies middleware to all routes
func (s *Server) setupMiddleware() {
	middlewareChain := middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.ErrorAdapter(s.logger),
		middleware.CORS(),
		middleware.Logging(s.logger),
		middleware.RateLimit(s.ctx, middleware.RateLimitConfig{
			RequestsPerSecond: s.config.Server.RateLimitRPS,
			Burst:             s.config.Server.RateLimitBurst,
		}, s.logger),
	)

	s.httpServer.Handler = middlewareChain(s.mux)
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the event bus and the HTTP server until ctx is done, then shuts down
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", s.httpServer.Addr),
		zap.String("server_id", s.serverID))

	if err := s.startEvents(ctx); err != nil {
		return s.Shutdown()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		_ = s.Shutdown()
		return err
	}

	return s.Shutdown()
}

// startEvents runs the event router and starts relaying account changes once it is running
func (s *Server) startEvents(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}

	go func() {
		if err := s.bus.Run(s.ctx); err != nil {
			s.logger.Error("Event router error", zap.Error(err))
		}
	}()

	select {
	case <-s.bus.Running():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.relay.Start(s.ctx)
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")

	if s.relay != nil {
		s.relay.Stop()
	}

	// Close SSE clients first so long-lived streams do not hold the shutdown
	s.sseBroadcaster.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var shutdownErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Server shutdown error", zap.Error(err))
		shutdownErr = err
	}

	if s.bus != nil {
		s.logger.Info("Closing event bus")
		if err := s.bus.Close(); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}

	s.cancel()
	s.logger.Info("HTTP server stopped")
	return shutdownErr
}

// GetAddr returns the server address
func (s *Server) GetAddr() string {
	return s.httpServer.Addr
}

// HealthResponse is the body of the health check
type HealthResponse struct {
	Status         string                 `json:"status"`
	ServerID       string                 `json:"server_id"`
	CurrentAccount string                 `json:"current_account,omitempty"`
	SSEClients     int                    `json:"sse_clients"`
	Checks         map[string]HealthCheck `json:"checks"`
}

// HealthCheck is the state of one dependency
type HealthCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// healthCheckHandler handles health check requests
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:     "healthy",
		ServerID:   s.serverID,
		SSEClients: s.sseBroadcaster.GetClientCount(),
		Checks:     map[string]HealthCheck{},
	}
	if current, ok := s.session.Provider().CurrentAccount(); ok {
		response.CurrentAccount = current.Key()
	}

	status := http.StatusOK
	if s.redisClient != nil {
		latency, err := s.redisClient.HealthCheck(r.Context())
		if err != nil {
			s.logger.Error("Redis health check failed", zap.Error(err))
			response.Status = "unhealthy"
			response.Checks["redis"] = HealthCheck{Status: "down", Error: err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			response.Checks["redis"] = HealthCheck{Status: "up", Latency: latency.String()}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
