package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/c360/i3xbridge/config"
	"github.com/c360/i3xbridge/errors"
	"github.com/c360/i3xbridge/health"
	"github.com/c360/i3xbridge/ingest"
	"github.com/c360/i3xbridge/mapping"
	"github.com/c360/i3xbridge/metric"
	"github.com/c360/i3xbridge/mqttclient"
	"github.com/c360/i3xbridge/pkg/tlsutil"
	"github.com/c360/i3xbridge/store"
	"github.com/c360/i3xbridge/subscription"
)

// Broker is the slice of the MQTT transport the API needs: the admin
// mapping surface reconciles subscriptions, health reads the state.
type Broker interface {
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	Topics() []string
	Status() mqttclient.ConnectionStatus
	Reconnects() int64
}

// Deps are the collaborators behind the HTTP surface. Objects,
// Subscriptions, and Engine are required; the rest degrade gracefully
// when absent.
type Deps struct {
	Objects       *store.Store
	Subscriptions *subscription.Manager
	Engine        *mapping.Engine
	Pipeline      *ingest.Pipeline
	Broker        Broker
	Metrics       *metric.Metrics
	Registry      *metric.MetricsRegistry
}

// Server serves the bridge's HTTP surface. Create with NewServer, run
// with Start, stop with Shutdown.
type Server struct {
	cfg    config.ServerConfig
	auth   config.AuthConfig
	apiKey map[string]struct{}

	objects  *store.Store
	subs     *subscription.Manager
	engine   *mapping.Engine
	pipeline *ingest.Pipeline
	broker   Broker
	metrics  *metric.Metrics
	registry *metric.MetricsRegistry

	monitor   *health.Monitor
	startTime time.Time
	logger    *slog.Logger

	httpServer *http.Server

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	upgrader websocket.Upgrader
	wsMu     sync.Mutex
	wsConns  map[*wsConn]struct{}
}

// NewServer wires the HTTP surface. It registers a store change
// listener for the WebSocket firehose; the caller owns the store.
func NewServer(cfg config.ServerConfig, auth config.AuthConfig, deps Deps) (*Server, error) {
	if deps.Objects == nil || deps.Subscriptions == nil || deps.Engine == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("store, subscription manager, and mapping engine are required"),
			"api", "NewServer", "validate dependencies")
	}
	if auth.Enabled && len(auth.APIKeys) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("auth enabled with no api keys"),
			"api", "NewServer", "validate dependencies")
	}

	s := &Server{
		cfg:       cfg,
		auth:      auth,
		apiKey:    make(map[string]struct{}, len(auth.APIKeys)),
		objects:   deps.Objects,
		subs:      deps.Subscriptions,
		engine:    deps.Engine,
		pipeline:  deps.Pipeline,
		broker:    deps.Broker,
		metrics:   deps.Metrics,
		registry:  deps.Registry,
		monitor:   health.NewMonitor(),
		startTime: time.Now(),
		logger:    slog.Default().With("component", "api"),
		limiters:  make(map[string]*rate.Limiter),
		wsConns:   make(map[*wsConn]struct{}),
	}
	for _, key := range auth.APIKeys {
		s.apiKey[key] = struct{}{}
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkWSOrigin,
	}

	deps.Objects.AddChangeListener(s.broadcastChange)
	return s, nil
}

// Router builds the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.recordRequest)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	// Probes and scrapers stay outside auth and rate limiting.
	r.Get("/health", s.handleHealth)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", s.registry.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		if s.cfg.RateLimit.Enabled {
			r.Use(s.rateLimit)
		}

		r.Get("/namespaces", s.handleListNamespaces)
		r.Get("/objecttypes", s.handleListObjectTypes)
		r.Post("/objecttypes/query", s.handleQueryObjectTypes)
		r.Get("/relationshiptypes", s.handleListRelationshipTypes)
		r.Post("/relationshiptypes/query", s.handleQueryRelationshipTypes)

		r.Get("/objects", s.handleListObjects)
		r.Post("/objects/list", s.handleObjectsList)
		r.Post("/objects/related", s.handleObjectsRelated)
		r.Post("/objects/value", s.handleObjectsValue)
		r.Post("/objects/history", s.handleObjectsHistory)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", s.handleCreateSubscription)
			r.Get("/", s.handleListSubscriptions)
			r.Route("/{subscriptionID}", func(r chi.Router) {
				r.Get("/", s.handleGetSubscription)
				r.Delete("/", s.handleDeleteSubscription)
				r.Post("/register", s.handleRegisterItems)
				r.Post("/unregister", s.handleUnregisterItems)
				r.Get("/stream", s.handleStream)
				r.Post("/sync", s.handleSync)
			})
		})

		r.Get("/stream/ws", s.handleWebSocket)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", s.handleStats)
			r.Route("/objecttypes", func(r chi.Router) {
				r.Post("/", s.handleCreateObjectType)
				r.Get("/", s.handleAdminListObjectTypes)
				r.Get("/{typeID}", s.handleGetObjectType)
				r.Put("/{typeID}", s.handleUpdateObjectType)
				r.Delete("/{typeID}", s.handleDeleteObjectType)
			})
			r.Route("/mappings", func(r chi.Router) {
				r.Post("/", s.handleCreateMapping)
				r.Get("/", s.handleListMappings)
				r.Get("/{ruleID}", s.handleGetMapping)
				r.Put("/{ruleID}", s.handleUpdateMapping)
				r.Delete("/{ruleID}", s.handleDeleteMapping)
			})
		})
	})

	return r
}

// Start runs the listener until Shutdown or a listen error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout.Std(),
		WriteTimeout: s.cfg.WriteTimeout.Std(),
	}

	tlsConfig, err := tlsutil.LoadServerTLSConfig(s.cfg.TLS)
	if err != nil {
		return err
	}

	s.logger.Info("http server starting", "addr", addr, "tls", tlsConfig != nil)
	if tlsConfig != nil {
		s.httpServer.TLSConfig = tlsConfig
		err = s.httpServer.ListenAndServeTLS("", "")
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "api", "Start", "serve http")
	}
	return nil
}

// Shutdown drains in-flight requests and closes every firehose client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeAllWS()
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "api", "Shutdown", "drain http server")
	}
	return nil
}
