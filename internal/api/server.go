package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/hard/internal/automation"
	"github.com/nerrad567/hard/internal/device"
	"github.com/nerrad567/hard/internal/infrastructure/config"
	"github.com/nerrad567/hard/internal/infrastructure/logging"
	"github.com/nerrad567/hard/internal/onewire"
	"github.com/nerrad567/hard/internal/process"
	"github.com/nerrad567/hard/internal/stats"
)

const shutdownTimeout = 10 * time.Second

// HealthChecker is implemented by every infrastructure client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// CounterSource lists persisted counters.
type CounterSource interface {
	Counters(ctx context.Context, kind string) ([]stats.Counter, error)
	Cesspool(ctx context.Context) (*stats.CesspoolLevel, error)
}

// LoopStatus reports control loop state.
type LoopStatus interface {
	Status() onewire.Status
}

// PoolStatus reports worker pool counters.
type PoolStatus interface {
	Stats() process.PoolStats
}

// Deps holds the server dependencies. Registry, Tasks and Logger are
// required.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Tasks    *automation.TaskQueue
	Counters CounterSource
	Loop     LoopStatus
	Pool     PoolStatus
	Hub      *Hub
	// Components are probed by GET /health, keyed by name.
	Components map[string]HealthChecker
	Version    string
}

// Server is the HTTP API server.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	registry   *device.Registry
	tasks      *automation.TaskQueue
	counters   CounterSource
	loop       LoopStatus
	pool       PoolStatus
	components map[string]HealthChecker
	version    string
	hub        *Hub
	ownHub     bool
	upgrader   *websocket.Upgrader

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New validates deps and creates a Server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("device registry is required")
	}
	if deps.Tasks == nil {
		return nil, errors.New("task queue is required")
	}
	if deps.Config.Auth.Secret == "" {
		return nil, errors.New("auth secret is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		registry:   deps.Registry,
		tasks:      deps.Tasks,
		counters:   deps.Counters,
		loop:       deps.Loop,
		pool:       deps.Pool,
		components: deps.Components,
		version:    deps.Version,
		hub:        deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
		s.ownHub = true
	}
	s.upgrader = s.newUpgrader()
	return s, nil
}

// Hub returns the websocket hub used by the server.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the router without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	if s.ownHub {
		go s.hub.Run(srvCtx)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close waits up to 10 seconds for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
