// Package api serves the read-only HTTP surface: signal state, risk
// figures and a live event stream. All writes stay on the Discord side;
// the only mutating endpoint re-renders the summary message.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"trade-signal-bot/config"
	"trade-signal-bot/internal/auth"
	"trade-signal-bot/internal/bot"
	"trade-signal-bot/internal/events"
	"trade-signal-bot/internal/logging"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RateLimiter provides simple in-memory rate limiting per client key.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
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
	bot         *bot.Bot
	eventBus    *events.EventBus
	authService *auth.Service
	config      config.ServerConfig
	rateLimiter *RateLimiter
	wsHub       *WSHub
	logger      *logging.Logger
}

// NewServer creates a new API server. authService may be nil when auth is
// disabled; every /api route is then open.
func NewServer(
	cfg config.ServerConfig,
	b *bot.Bot,
	eventBus *events.EventBus,
	authService *auth.Service,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	if cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowOrigins = nil
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		bot:         b,
		eventBus:    eventBus,
		authService: authService,
		config:      cfg,
		rateLimiter: NewRateLimiter(120, time.Minute),
		logger:      logging.WithComponent("api"),
	}

	server.wsHub = NewWSHub(eventBus)
	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	if s.authService != nil {
		s.router.POST("/api/auth/login", s.handleLogin)
	}

	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	if s.authService != nil {
		api.Use(auth.Middleware(s.authService.JWTManager()))
	}

	api.GET("/signals", s.handleListSignals)
	api.GET("/signals/:id", s.handleGetSignal)
	api.GET("/signals/:id/risk", s.handleGetRisk)
	api.POST("/summary/refresh", s.handleRefreshSummary)
	api.GET("/ws", s.handleWebSocket)
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.rateLimiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go s.wsHub.Run()
	go func() {
		s.logger.Info("API server listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed", "error", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
