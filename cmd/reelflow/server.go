package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bharm16/reelflow/api/handlers"
	"github.com/bharm16/reelflow/config"
	"github.com/bharm16/reelflow/continuity"
	constore "github.com/bharm16/reelflow/continuity/store"
	"github.com/bharm16/reelflow/internal/cache"
	"github.com/bharm16/reelflow/internal/database"
	"github.com/bharm16/reelflow/internal/metrics"
	"github.com/bharm16/reelflow/internal/pool"
	"github.com/bharm16/reelflow/internal/server"
	"github.com/bharm16/reelflow/internal/telemetry"
	"github.com/bharm16/reelflow/media"
	"github.com/bharm16/reelflow/providers"
	"github.com/bharm16/reelflow/providers/luma"
	"github.com/bharm16/reelflow/providers/pika"
	"github.com/bharm16/reelflow/providers/runway"
)

// Server wires configuration, storage, providers, and the continuity core
// into the HTTP and metrics listeners.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger

	db *gorm.DB

	httpManager    *server.Manager
	metricsManager *server.Manager

	collector *metrics.Collector
	otel      *telemetry.Providers

	dbPool       *database.PoolManager
	cacheManager *cache.Manager
	workers      *pool.GoroutinePool

	healthHandler  *handlers.HealthHandler
	sessionHandler *handlers.SessionHandler
	shotHandler    *handlers.ShotHandler

	configWatcher     *config.FileWatcher
	watcherCancel     context.CancelFunc
	rateLimiterCancel context.CancelFunc
}

// NewServer creates a server instance. db may be nil only when running
// without persistence is acceptable; serve refuses to start in that case.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, otel *telemetry.Providers, db *gorm.DB) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		otel:       otel,
		db:         db,
	}
}

// Start brings up all components and both listeners.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("reelflow", s.logger)

	if err := s.initServices(); err != nil {
		return fmt.Errorf("failed to init services: %w", err)
	}

	if err := s.initConfigWatcher(); err != nil {
		return fmt.Errorf("failed to init config watcher: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// initServices builds the session store, the provider registry, and the
// continuity pipeline, then the HTTP handlers on top of them.
func (s *Server) initServices() error {
	if s.db == nil {
		return fmt.Errorf("database is required")
	}

	dbPool, err := database.NewPoolManager(s.db, database.PoolConfig{
		MaxIdleConns:    s.cfg.Database.MaxIdleConns,
		MaxOpenConns:    s.cfg.Database.MaxOpenConns,
		ConnMaxLifetime: s.cfg.Database.ConnMaxLifetime,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	s.dbPool = dbPool

	// Redis is optional: the store falls back to uncached reads.
	cacheManager, err := cache.NewManager(cache.Config{
		Addr:         s.cfg.Redis.Addr,
		Password:     s.cfg.Redis.Password,
		DB:           s.cfg.Redis.DB,
		PoolSize:     s.cfg.Redis.PoolSize,
		MinIdleConns: s.cfg.Redis.MinIdleConns,
		DefaultTTL:   s.cfg.Continuity.CacheTTL,
	}, s.logger)
	if err != nil {
		s.logger.Warn("Redis not available, session cache disabled", zap.Error(err))
	} else {
		s.cacheManager = cacheManager
	}

	store := constore.NewSessionStore(dbPool, s.cacheManager, s.collector, constore.Config{
		DualWrite: s.cfg.Continuity.DualWrite,
		CacheTTL:  s.cfg.Continuity.CacheTTL,
	}, s.logger)

	mediaClient := media.NewClient(media.ClientConfig{
		BaseURL: s.cfg.Media.BaseURL,
		APIKey:  s.cfg.Media.APIKey,
		Timeout: s.cfg.Media.Timeout,
	})

	generators := s.buildGenerators()
	if len(generators) == 0 {
		s.logger.Warn("no video providers configured, generation requests will fail")
	}

	gate := continuity.NewQualityGate(mediaClient, mediaClient, mediaClient.Histogram(), mediaClient, s.logger)
	post := continuity.NewPostProcessor(mediaClient, mediaClient, gate, s.logger)

	generator := continuity.NewShotGenerator(continuity.GeneratorConfig{
		Store:      store,
		Generators: generators,
		Frames:     mediaClient,
		Styles:     mediaClient,
		Post:       post,
		Seeds:      continuity.NewSeedService(s.logger),
		Anchors:    continuity.NewAnchorService(s.logger),
		Metrics:    s.collector,
		Logger:     s.logger,
	})

	sessionService := continuity.NewSessionService(store, mediaClient, post, generator, s.logger)

	s.workers = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
		MaxWorkers:  16,
		QueueSize:   256,
		IdleTimeout: time.Minute,
	})

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("database", dbPool.Ping))
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("redis", s.cacheManager.Ping))
	}

	s.sessionHandler = handlers.NewSessionHandler(sessionService, s.logger)
	s.shotHandler = handlers.NewShotHandler(sessionService, s.workers, s.logger)

	s.logger.Info("Services initialized",
		zap.Int("providers", len(generators)),
		zap.Bool("cache", s.cacheManager != nil),
		zap.Bool("dual_write", s.cfg.Continuity.DualWrite),
	)
	return nil
}

// buildGenerators creates one provider client per configured API key.
func (s *Server) buildGenerators() map[string]providers.VideoGenerator {
	out := make(map[string]providers.VideoGenerator)

	if key := s.cfg.Providers.Runway.APIKey; key != "" {
		cfg := providers.DefaultRunwayConfig()
		cfg.APIKey = key
		if s.cfg.Providers.Runway.BaseURL != "" {
			cfg.BaseURL = s.cfg.Providers.Runway.BaseURL
		}
		if s.cfg.Providers.Runway.Timeout > 0 {
			cfg.Timeout = s.cfg.Providers.Runway.Timeout
		}
		out[providers.ProviderRunway] = runway.New(cfg)
	}

	if key := s.cfg.Providers.Luma.APIKey; key != "" {
		cfg := providers.DefaultLumaConfig()
		cfg.APIKey = key
		if s.cfg.Providers.Luma.BaseURL != "" {
			cfg.BaseURL = s.cfg.Providers.Luma.BaseURL
		}
		if s.cfg.Providers.Luma.Timeout > 0 {
			cfg.Timeout = s.cfg.Providers.Luma.Timeout
		}
		out[providers.ProviderLuma] = luma.New(cfg)
	}

	if key := s.cfg.Providers.Pika.APIKey; key != "" {
		cfg := providers.DefaultPikaConfig()
		cfg.APIKey = key
		if s.cfg.Providers.Pika.BaseURL != "" {
			cfg.BaseURL = s.cfg.Providers.Pika.BaseURL
		}
		if s.cfg.Providers.Pika.Timeout > 0 {
			cfg.Timeout = s.cfg.Providers.Pika.Timeout
		}
		out[providers.ProviderPika] = pika.New(cfg)
	}

	return out
}

// initConfigWatcher watches the config file and logs change notices.
// Applying changes requires a restart; the notice tells operators one is
// pending.
func (s *Server) initConfigWatcher() error {
	if s.configPath == "" {
		return nil
	}

	watcher, err := config.NewFileWatcher([]string{s.configPath},
		config.WithWatcherLogger(s.logger))
	if err != nil {
		return err
	}

	watcher.OnChange(func(ev config.FileEvent) {
		s.logger.Info("configuration file changed, restart to apply",
			zap.String("path", ev.Path),
			zap.String("op", ev.Op.String()),
		)
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.watcherCancel = cancel
	if err := watcher.Start(ctx); err != nil {
		cancel()
		return err
	}
	s.configWatcher = watcher
	return nil
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("POST /api/v1/sessions", s.sessionHandler.HandleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions", s.sessionHandler.HandleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.sessionHandler.HandleGetSession)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}", s.sessionHandler.HandleUpdateSessionMeta)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.sessionHandler.HandleDeleteSession)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/settings", s.sessionHandler.HandleUpdateSettings)
	mux.HandleFunc("POST /api/v1/sessions/{id}/archive", s.sessionHandler.HandleArchiveSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/style-reference", s.sessionHandler.HandleSetStyleReference)
	mux.HandleFunc("POST /api/v1/sessions/{id}/scene-proxy", s.sessionHandler.HandleCreateSceneProxy)
	mux.HandleFunc("GET /api/v1/sessions/{id}/credits", s.sessionHandler.HandleCreditUsage)

	mux.HandleFunc("POST /api/v1/sessions/{id}/shots", s.shotHandler.HandleAddShot)
	mux.HandleFunc("GET /api/v1/sessions/{id}/shots/{shotID}", s.shotHandler.HandleGetShot)
	mux.HandleFunc("POST /api/v1/sessions/{id}/shots/{shotID}/generate", s.shotHandler.HandleGenerateShot)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		CORS(s.cfg.Server.AllowedOrigin),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		JWTAuth(s.cfg.Server.JWTSecret, skipAuthPaths, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a termination signal, then shuts down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops the listeners and releases every resource, worker pool
// last so queued generations can still persist their outcome.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.configWatcher != nil {
		if err := s.configWatcher.Stop(); err != nil {
			s.logger.Error("Config watcher shutdown error", zap.Error(err))
		}
	}
	if s.watcherCancel != nil {
		s.watcherCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.workers != nil {
		s.workers.Close()
	}

	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}

	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Error("Database shutdown error", zap.Error(err))
		}
	}

	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
