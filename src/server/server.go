package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"trading-simulator/src/helpers"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"

	"github.com/gin-gonic/gin"
)

// HistoryService is the part of the simulation engine exposed over HTTP.
type HistoryService interface {
	AddHistory(lobby string) models.MHistory
	GetHistory(lobby string) (models.MHistoryUpdate, bool)
	Change(cmd models.MChangeCommand) error
}

// OrderService exposes the shared order book.
type OrderService interface {
	Get() models.MOrderBook
}

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

type Server struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	History HistoryService
	Orders  OrderService

	engine     *gin.Engine
	httpServer *http.Server

	// WebSocket clients, written by the hub loop only
	clients    map[*Client]struct{}
	clientsMu  sync.RWMutex
	broadcast  chan *models.MEvent // Buffered queue
	register   chan *Client
	unregister chan *Client
	direct     chan directMessage
	quit       chan struct{}
	stopOnce   sync.Once
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, history HistoryService, orders OrderService, log *logger.Logger) *Server {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Config:     cfg,
		Logger:     log.Named("Server"),
		History:    history,
		Orders:     orders,
		engine:     gin.New(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan *models.MEvent, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan directMessage),
		quit:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery())

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.getHealth)
	api.GET("/config", s.getConfig)
	api.GET("/orders", s.getOrders)
	api.GET("/lobbies/:lobby/history", s.getLobbyHistory)
	api.POST("/lobbies/:lobby/change", s.postLobbyChange)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// RunHub runs the websocket hub loop until Stop is called.
func (s *Server) RunHub() {
	s.handleWebsockets()
}

// Start runs the hub and serves HTTP until Stop. It returns nil on a clean
// stop, including when Stop ran first.
func (s *Server) Start() error {
	s.Logger.Info("Starting server on %s", s.httpServer.Addr)

	go s.RunHub()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the HTTP listener down and stops the hub.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.stopOnce.Do(func() { close(s.quit) })
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	s.clientsMu.RLock()
	connections := len(s.clients)
	s.clientsMu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": connections,
		"lobbies":     len(s.ActiveLobbyIDs()),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getConfig(c *gin.Context) {
	ranges := make([]string, 0, len(s.Config.DataSource.Ranges))
	for _, r := range s.Config.DataSource.Ranges {
		ranges = append(ranges, r.Label)
	}

	c.JSON(http.StatusOK, gin.H{
		"symbols":       s.Config.Trading.Symbols,
		"ranges":        ranges,
		"primary_range": s.Config.Trading.PrimaryRange,
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getOrders(c *gin.Context) {
	c.JSON(http.StatusOK, s.Orders.Get())
}

// -----------------------------------------------------------------------------

func (s *Server) getLobbyHistory(c *gin.Context) {
	lobby := c.Param("lobby")

	s.History.AddHistory(lobby)
	update, _ := s.History.GetHistory(lobby)
	c.JSON(http.StatusOK, update)
}

// -----------------------------------------------------------------------------

func (s *Server) postLobbyChange(c *gin.Context) {
	var cmd models.MChangeCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd.Lobby = c.Param("lobby")

	err := s.History.Change(cmd)

	var validationErr *helpers.ValidationError
	var dataErr *helpers.DataSourceError
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "lobby": cmd.Lobby, "symbol": cmd.Symbol})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &dataErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.Logger.Error("Change on %s failed: %v", cmd.Lobby, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
