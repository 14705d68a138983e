package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"smc-engine/config"
	"smc-engine/internal/cache"
	"smc-engine/internal/database"
	"smc-engine/internal/events"
	"smc-engine/internal/logging"
	"smc-engine/internal/scanner"
	"smc-engine/internal/smc"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Analysis submissions allowed per client per window
const (
	analyzeRateLimit  = 120
	analyzeRateWindow = time.Minute
	archiveTimeout    = 5 * time.Second
	cacheTimeout      = 2 * time.Second
)

// RateLimiter provides simple in-memory rate limiting per client
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	// Filter out old requests
	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	config      config.ServerConfig
	engine      *smc.Engine
	scanner     *scanner.Scanner
	cache       *cache.AnalysisCache // nil when Redis is disabled
	archive     database.Archive
	eventBus    *events.EventBus
	hub         *WSHub
	rateLimiter *RateLimiter
	logger      *logging.Logger

	// in-flight archive writes, drained on Shutdown
	pending sync.WaitGroup
}

// NewServer creates a new API server. analysisCache may be nil and archive
// defaults to a no-op archive.
func NewServer(
	cfg config.ServerConfig,
	scanCfg config.ScannerConfig,
	engine *smc.Engine,
	analysisCache *cache.AnalysisCache,
	archive database.Archive,
	eventBus *events.EventBus,
) *Server {
	if archive == nil {
		archive = database.NewNoopArchive()
	}

	router := gin.New()

	// Middleware
	router.Use(requestLogger())
	router.Use(gin.Recovery())

	// CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins(cfg.AllowedOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:      router,
		config:      cfg,
		engine:      engine,
		cache:       analysisCache,
		archive:     archive,
		eventBus:    eventBus,
		hub:         NewWSHub(),
		rateLimiter: NewRateLimiter(analyzeRateLimit, analyzeRateWindow),
		logger:      logging.WithComponent("api"),
	}
	s.scanner = scanner.NewScanner(engine, scanner.ScannerConfig{
		WorkerCount:  scanCfg.WorkerCount,
		MaxBatchSize: scanCfg.MaxBatchSize,
	}, s.persist)

	go s.hub.Run()
	if eventBus != nil {
		eventBus.SubscribeAll(s.hub.BroadcastEvent)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  secondsOr(cfg.ReadTimeout, 15),
		WriteTimeout: secondsOr(cfg.WriteTimeout, 15),
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// allowedOrigins splits the comma separated origin list, defaulting to any origin
func allowedOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// requestLogger logs every request through the api logging context
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := logging.APIContext(c.Request.Method, c.FullPath(), c.Writer.Status()).
			WithDuration(time.Since(start))
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("Request failed", "client_ip", c.ClientIP())
			return
		}
		log.Debug("Request served", "client_ip", c.ClientIP())
	}
}

// rateLimit rejects clients exceeding the analysis submission rate
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			errorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	api.GET("/health", s.handleHealth)

	smcGroup := api.Group("/smc")
	{
		smcGroup.POST("/analyze", s.rateLimit(), s.handleAnalyze)
		smcGroup.POST("/analyze/batch", s.rateLimit(), s.handleAnalyzeBatch)

		smcGroup.GET("/symbols", s.handleGetSymbols)
		smcGroup.GET("/symbols/:symbol", s.handleGetAnalysis)
		smcGroup.GET("/symbols/:symbol/structure", s.handleGetStructure)
		smcGroup.GET("/symbols/:symbol/order-blocks", s.handleGetOrderBlocks)
		smcGroup.GET("/symbols/:symbol/fvgs", s.handleGetFairValueGaps)
		smcGroup.GET("/symbols/:symbol/liquidity", s.handleGetLiquidityPools)
		smcGroup.GET("/symbols/:symbol/flow", s.handleGetInstitutionalFlow)
		smcGroup.GET("/symbols/:symbol/breaks", s.handleGetStructureBreaks)
		smcGroup.POST("/symbols/:symbol/revalidate", s.handleRevalidate)

		smcGroup.GET("/opportunities", s.handleGetOpportunities)
		smcGroup.GET("/opportunities/history", s.handleGetOpportunityHistory)
	}
}

// Router exposes the gin engine, used by tests and embedding servers
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func secondsOr(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// Shutdown gracefully shuts down the server and waits for pending archive writes
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	err := s.httpServer.Shutdown(ctx)
	s.hub.Stop()

	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Shutdown deadline reached with archive writes pending")
	}

	return err
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	archiveStatus := "healthy"
	if err := s.archive.HealthCheck(ctx); err != nil {
		archiveStatus = "unhealthy"
	}

	cacheStatus := "disabled"
	if s.cache != nil {
		cacheStatus = "degraded"
		if s.cache.Healthy() {
			cacheStatus = "healthy"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if archiveStatus != "healthy" {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":          status,
		"symbols_tracked": len(s.engine.Symbols()),
		"cache":           cacheStatus,
		"archive":         archiveStatus,
		"ws_clients":      s.hub.GetClientCount(),
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

// statusForError maps engine and scanner errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case smc.IsValidationError(err),
		errors.Is(err, smc.ErrNoCandles),
		errors.Is(err, smc.ErrSymbolRequired),
		errors.Is(err, scanner.ErrEmptyBatch),
		errors.Is(err, scanner.ErrDuplicateSymbol),
		errors.Is(err, scanner.ErrBatchTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, smc.ErrUnknownSymbol):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// errorFromErr sends err with the status it maps to
func errorFromErr(c *gin.Context, err error) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		logging.APIContext(c.Request.Method, c.FullPath(), code).WithError(err).Error("Request error")
	}
	errorResponse(c, code, err.Error())
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
