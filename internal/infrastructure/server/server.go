package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arcadia-launcher/arcadia/backend/internal/api/http"
	"github.com/arcadia-launcher/arcadia/backend/internal/api/middleware"
	"github.com/arcadia-launcher/arcadia/backend/internal/api/ws"
	"github.com/arcadia-launcher/arcadia/backend/internal/domain/registry"
	"github.com/arcadia-launcher/arcadia/backend/internal/domain/store"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/config"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/logging"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/monitoring"
	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/tracing"
	"github.com/arcadia-launcher/arcadia/backend/internal/storage"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router      *gin.Engine
	registry    *registry.Manager
	sources     *store.Sources
	aggregator  *store.Aggregator
	broadcaster *ws.Broadcaster
	store       storage.Store
	logger      *logging.Logger
	config      *config.Config
	metrics     *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing extension runtime",
		zap.String("port", cfg.Server.Port),
		zap.String("storage_path", cfg.Storage.Path),
	)

	metrics := monitoring.NewMetrics()

	// Durable store; empty path keeps everything in memory
	var backing storage.Store
	if cfg.Storage.Path == "" {
		backing = storage.NewMemory()
		logger.Warn("Using in-memory storage; state will not survive restarts")
	} else {
		var err error
		backing, err = storage.OpenSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		logger.Info("Storage opened", zap.String("path", cfg.Storage.Path))
	}

	broadcaster := ws.NewBroadcaster(logger).WithMetrics(metrics)

	ctx := context.Background()
	reg := registry.NewManager(backing, logger).
		WithMetrics(metrics).
		WithEvents(broadcaster)
	if err := reg.Load(ctx); err != nil {
		backing.Close()
		return nil, fmt.Errorf("failed to load extensions: %w", err)
	}

	sources := store.NewSources(backing, logger)
	if err := sources.Load(ctx); err != nil {
		backing.Close()
		return nil, fmt.Errorf("failed to load store sources: %w", err)
	}
	if err := sources.Seed(ctx, cfg.Store.SeedFile); err != nil {
		logger.Warn("Failed to seed store sources", zap.Error(err))
	}

	catalog := store.NewClient(cfg.Store.FetchTimeout)
	aggregator := store.NewAggregator(sources, catalog, reg, logger, store.Options{
		FetchTimeout: cfg.Store.FetchTimeout,
		MaxPageSize:  cfg.Store.MaxPageSize,
		CacheTTL:     cfg.Store.DetailsCacheTTL,
	}).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	tracer := tracing.New("extension-runtime", logger.Logger)

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := http.NewHandlers(reg, aggregator, sources, logger)
	registerRoutes(router, handlers, broadcaster, metrics)

	logger.Info("Server initialized",
		zap.Int("extensions", len(reg.List())),
		zap.Int("sources", len(sources.List())),
	)

	return &Server{
		router:      router,
		registry:    reg,
		sources:     sources,
		aggregator:  aggregator,
		broadcaster: broadcaster,
		store:       backing,
		logger:      logger,
		config:      cfg,
		metrics:     metrics,
	}, nil
}

func registerRoutes(router *gin.Engine, handlers *http.Handlers, broadcaster *ws.Broadcaster, metrics *monitoring.Metrics) {
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Extension lifecycle
	router.GET("/extensions", handlers.ListExtensions)
	router.POST("/extensions", handlers.InstallExtension)
	router.GET("/extensions/menu", handlers.Menu)
	router.GET("/extensions/:id", handlers.GetExtension)
	router.PUT("/extensions/:id", handlers.UpdateExtension)
	router.DELETE("/extensions/:id", handlers.UninstallExtension)
	router.POST("/extensions/:id/enable", handlers.EnableExtension)
	router.POST("/extensions/:id/disable", handlers.DisableExtension)
	router.POST("/extensions/:id/api/:name", handlers.CallAPI)

	// Permissions
	router.GET("/extensions/:id/permissions", handlers.ListPermissions)
	router.POST("/extensions/:id/permissions/:perm/grant", handlers.GrantPermission)
	router.POST("/extensions/:id/permissions/:perm/revoke", handlers.RevokePermission)

	// Settings
	router.GET("/extensions/:id/settings", handlers.ListSettings)
	router.GET("/extensions/:id/settings/:key", handlers.GetSetting)
	router.PUT("/extensions/:id/settings/:key", handlers.PutSetting)
	router.DELETE("/extensions/:id/settings/:key", handlers.DeleteSetting)

	// Host-fired hooks
	router.POST("/hooks/:name", handlers.InvokeHook)

	// Store
	router.GET("/store/extensions", handlers.QueryStore)
	router.GET("/store/extensions/:id", handlers.StoreDetails)
	router.POST("/store/extensions/:id/install", handlers.InstallFromStore)
	router.GET("/store/updates", handlers.CheckUpdates)

	// Store sources
	router.GET("/store/sources", handlers.ListSources)
	router.POST("/store/sources", handlers.AddSource)
	router.DELETE("/store/sources/:id", handlers.RemoveSource)
	router.POST("/store/sources/:id/enable", handlers.EnableSource)
	router.POST("/store/sources/:id/disable", handlers.DisableSource)
	router.PUT("/store/sources/:id/priority", handlers.SetSourcePriority)

	// Event stream
	router.GET("/ws", broadcaster.HandleConnection)
}

// Run starts the HTTP server and fires the startup hook
func (s *Server) Run() error {
	ctx := context.Background()
	s.registry.InvokeHook(ctx, "on_startup", nil)

	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close fires the shutdown hook and releases resources
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.registry.InvokeHook(context.Background(), "on_shutdown", nil)

	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close storage", zap.Error(err))
		return fmt.Errorf("failed to close storage: %w", err)
	}

	s.logger.Sync()
	return nil
}
