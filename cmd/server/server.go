package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"checkers-platform/backend/internal/auth"
	"checkers-platform/backend/internal/db"
	"checkers-platform/backend/internal/locks"
	"checkers-platform/backend/internal/match"
	"checkers-platform/backend/internal/middleware"
	"checkers-platform/backend/internal/migrations"
	"checkers-platform/backend/internal/redis"
	"checkers-platform/backend/internal/server/handlers"
	"checkers-platform/backend/internal/server/matchmaking"
	"checkers-platform/backend/internal/server/session"
	ws "checkers-platform/backend/internal/server/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Server holds all dependencies and configuration for the checkers platform server
type Server struct {
	config Config
	db     *db.DB
	redis  *redis.Client // nil when Redis is not configured

	// Services
	authService  *auth.Service
	matchService *match.Service
	matchmaking  *matchmaking.Service
	session      *session.Handler

	// Connection registry
	hub *ws.Hub

	rateLimiter *middleware.RateLimiter
	httpServer  *http.Server
}

// NewServer creates and initializes a new Server instance
func NewServer(config Config) (*Server, error) {
	// Run schema migrations before any ORM traffic
	err := migrations.Run(migrations.Config{
		Host:     config.DBConfig.Host,
		Port:     config.DBConfig.Port,
		User:     config.DBConfig.User,
		Password: config.DBConfig.Password,
		DBName:   config.DBConfig.DBName,
	})
	if err != nil {
		return nil, err
	}

	// Initialize database
	database, err := db.New(config.DBConfig)
	if err != nil {
		return nil, err
	}

	// Redis is optional: matchmaking falls back to transaction-only
	// serialization when it is absent.
	var redisClient *redis.Client
	var lockManager *locks.Manager
	if config.RedisEnabled {
		redisClient, err = redis.New(config.RedisConfig)
		if err != nil {
			return nil, err
		}
		lockManager = locks.NewManager(redisClient.Client)
	} else {
		log.Println("[REDIS] Not configured, matchmaking locks disabled")
	}

	// Initialize services
	authSvc := auth.NewService(config.JWTSecret)
	matchSvc := match.NewService(database.DB)
	hub := ws.NewHub()
	matchmakingSvc := matchmaking.NewService(matchSvc, lockManager, hub)
	sessionHandler := session.NewHandler(database, matchSvc, hub, authSvc)

	return &Server{
		config:       config,
		db:           database,
		redis:        redisClient,
		authService:  authSvc,
		matchService: matchSvc,
		matchmaking:  matchmakingSvc,
		session:      sessionHandler,
		hub:          hub,
		rateLimiter:  middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig),
	}, nil
}

// Run starts the HTTP server and blocks until it is shut down.
func (s *Server) Run() error {
	// Set Gin mode based on environment
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:    s.config.ServerHost + ":" + s.config.ServerPort,
		Handler: r,
	}

	log.Printf("[SERVER] Listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains the HTTP listener, closes every match room, and releases
// the server's resources. Upgraded websocket connections are hijacked from
// the HTTP server, so the rooms have to be closed explicitly.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	if s.httpServer != nil {
		shutdownErr = s.httpServer.Shutdown(ctx)
	}

	s.hub.CloseAllRooms(websocket.CloseGoingAway)
	s.rateLimiter.Stop()

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("[REDIS] Close failed: %v", err)
		}
	}
	if err := s.db.Close(); err != nil {
		log.Printf("[DB] Close failed: %v", err)
	}

	return shutdownErr
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *gin.Engine {
	r := gin.Default()

	// Configure CORS
	corsConfig := cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400 * time.Second,
	}
	r.Use(cors.New(corsConfig))

	r.GET("/health", s.handleHealth)

	api := r.Group("/api/v1")
	api.Use(s.rateLimiter.GinMiddleware())

	// Public routes
	api.POST("/auth/register", func(c *gin.Context) { handlers.HandleRegister(c, s.db, s.authService) })
	api.POST("/auth/login", func(c *gin.Context) { handlers.HandleLogin(c, s.db, s.authService) })
	api.POST("/auth/refresh", func(c *gin.Context) { handlers.HandleRefresh(c, s.db, s.authService) })

	// Protected routes
	authorized := api.Group("/")
	authorized.Use(handlers.AuthMiddleware(s.db, s.authService))
	{
		authorized.GET("/auth/me", func(c *gin.Context) { handlers.HandleGetCurrentUser(c, s.db) })
		authorized.POST("/auth/logout", func(c *gin.Context) { handlers.HandleLogout(c, s.db) })

		authorized.POST("/matchmaking/find", func(c *gin.Context) { matchmaking.HandleFind(c, s.matchmaking) })
		authorized.POST("/matchmaking/:matchid/resign", func(c *gin.Context) { matchmaking.HandleResign(c, s.matchmaking) })

		authorized.GET("/matches/me", func(c *gin.Context) { handlers.HandleListMyMatches(c, s.db) })
		authorized.GET("/matches/:matchid", func(c *gin.Context) { handlers.HandleGetMatch(c, s.db) })
		authorized.GET("/matches/:matchid/moves", func(c *gin.Context) { handlers.HandleGetMatchMoves(c, s.db) })
	}

	// WebSocket endpoint (handles auth internally, after the upgrade)
	r.GET("/api/v1/ws/match/:matchid", s.session.HandleMatchSocket)

	return r
}

// handleHealth reports liveness for container orchestration probes.
func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.HealthCheck(ctx); err != nil {
			status = "degraded"
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "time": time.Now().UTC()})
}
