package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/presence-core/internal/audit"
	"github.com/nerrad567/presence-core/internal/device"
	"github.com/nerrad567/presence-core/internal/infrastructure/config"
	"github.com/nerrad567/presence-core/internal/infrastructure/logging"
	"github.com/nerrad567/presence-core/internal/panel"
	"github.com/nerrad567/presence-core/internal/presence"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// BusStatus reports the message bus connection. *mqtt.Client satisfies it.
type BusStatus interface {
	IsConnected() bool
}

// IngestMonitor exposes the ingest loop to the metrics endpoint.
type IngestMonitor interface {
	State() presence.LoopState
	Stats() presence.IngestStats
}

// PublishMonitor exposes the publish loop to the metrics endpoint.
type PublishMonitor interface {
	State() presence.LoopState
	Stats() presence.PublishStats
}

// Deps holds the dependencies required by the web server.
type Deps struct {
	Config      config.WebConfig
	SiteName    string
	Logger      *logging.Logger
	Coordinator *presence.Coordinator
	Registry    *device.Registry

	// Settings defaults to a service over Coordinator and Registry.
	Settings *presence.SettingsService

	// Pages defaults to the templates loaded from Config.TemplatesDir.
	Pages *panel.Pages

	// Hub, if set, is used instead of a server-owned hub so the publish
	// loop can feed it.
	Hub *Hub

	// History, if set, records accepted settings submissions and serves
	// them at /api/v1/history.
	History audit.Repository

	Bus     BusStatus
	Ingest  IngestMonitor
	Publish PublishMonitor
	Version string
}

// Server serves the settings page, the JSON endpoints and the live
// presence WebSocket.
//
// When the HTTP listener stops for any reason the coordinator is shut
// down, which stops the ingest and publish loops.
type Server struct {
	cfg       config.WebConfig
	siteName  string
	logger    *logging.Logger
	coord     *presence.Coordinator
	registry  *device.Registry
	settings  *presence.SettingsService
	pages     *panel.Pages
	static    http.Handler
	hub       *Hub
	ownHub    bool
	bus       BusStatus
	ingest    IngestMonitor
	publish   PublishMonitor
	version   string
	startTime time.Time

	history     audit.Repository
	historyCh   chan *audit.Change
	historyDone chan struct{}

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	done     chan struct{}
	closeMu  sync.Mutex
}

// New creates a web server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	pages := deps.Pages
	if pages == nil {
		var err error
		pages, err = panel.Load(deps.Config.TemplatesDir)
		if err != nil {
			return nil, fmt.Errorf("loading page templates: %w", err)
		}
	}

	settings := deps.Settings
	if settings == nil {
		settings = presence.NewSettingsService(deps.Coordinator, deps.Registry)
		settings.SetLogger(deps.Logger)
	}

	s := &Server{
		cfg:       deps.Config,
		siteName:  deps.SiteName,
		logger:    deps.Logger,
		coord:     deps.Coordinator,
		registry:  deps.Registry,
		settings:  settings,
		pages:     pages,
		static:    panel.Static(deps.Config.TemplatesDir),
		hub:       deps.Hub,
		bus:       deps.Bus,
		ingest:    deps.Ingest,
		publish:   deps.Publish,
		version:   deps.Version,
		startTime: time.Now(),
		done:      make(chan struct{}),
		history:   deps.History,
	}
	if s.history != nil {
		s.historyCh = make(chan *audit.Change, historyChanSize)
		s.historyDone = make(chan struct{})
	}
	if s.hub == nil {
		s.hub = NewHub(deps.Logger)
		s.ownHub = true
	}

	return s, nil
}

// Hub returns the WebSocket hub, for registering it as a summary observer.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background. A bind failure
// (port in use, bad address) is returned directly.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.ownHub {
		go s.hub.Run(srvCtx)
	}
	if s.history != nil {
		go s.drainHistory(srvCtx)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("web server starting", "address", listener.Addr().String())

	go func() {
		defer close(s.done)
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web server error", "error", err)
		}
		s.coord.Shutdown()
	}()

	return nil
}

// Addr is the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done is closed once the listener has stopped.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("web server shutting down")
	shutdownErr := s.server.Shutdown(ctx)
	<-s.done

	// In-flight requests are finished, so nothing queues history after
	// the writer is told to drain and stop.
	if s.cancel != nil {
		s.cancel()
	}
	if s.historyDone != nil {
		<-s.historyDone
	}

	if shutdownErr != nil {
		return fmt.Errorf("shutting down web server: %w", shutdownErr)
	}
	return nil
}

// HealthCheck reports whether the server is accepting connections.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("web health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("web server not started")
	}
	select {
	case <-s.done:
		return fmt.Errorf("web server stopped")
	default:
	}
	return nil
}
