// Package http exposes the procurement workflow over a JSON API. It is a
// thin adapter: handlers normalize identity, bind payloads, and translate
// sentinel errors to status codes, while every decision stays in the
// application layer.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/procurahq/procura/internal/domain/identity"
)

// Logger is the key-value logging surface the server writes to.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// ServerConfig carries the listener settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig listens on all interfaces at port 8080.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server serves the API over net/http with a gin router.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer wires the router around the given handlers. The normalizer is
// shared with the identity middleware so header assertions and configured
// role aliases fold the same way everywhere.
func NewServer(config ServerConfig, handlers *Handlers, normalizer *identity.Normalizer, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		handlers: handlers,
		logger:   logger,
	}

	s.router.Use(gin.Recovery(), s.accessLog())
	s.registerRoutes(normalizer)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:           s.router,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// accessLog emits one line per request. Health probes are skipped, they
// would dominate the log at typical probe intervals.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		s.logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) registerRoutes(normalizer *identity.Normalizer) {
	// Health check stays outside the identity gate so probes need no headers
	s.router.GET("/health", s.handlers.HealthCheck)

	api := s.router.Group("/api")
	api.Use(identityMiddleware(normalizer))

	requests := api.Group("/requests")
	{
		requests.POST("", s.handlers.CreateRequest)
		requests.GET("", s.handlers.ListRequests)
		requests.GET("/mine", s.handlers.ListMyRequests)
		requests.GET("/:id", s.handlers.GetRequest)
		requests.PUT("/:id", s.handlers.UpdateRequest)
		requests.DELETE("/:id", s.handlers.DeleteRequest)

		requests.POST("/:id/submit-review", s.handlers.SubmitForReview)
		requests.POST("/:id/approve", s.handlers.ApproveRequest)
		requests.POST("/:id/reject", s.handlers.RejectRequest)
		requests.POST("/:id/submit-bidding", s.handlers.SubmitForBidding)
		requests.POST("/:id/reactivate", s.handlers.ReactivateRequest)
		requests.POST("/:id/recommend", s.handlers.RecommendOffer)
		requests.POST("/:id/send-to-ordering", s.handlers.SendToOrdering)
		requests.POST("/:id/order", s.handlers.PlaceOrder)

		requests.POST("/:id/offers", s.handlers.SubmitOffer)
		requests.GET("/:id/offers", s.handlers.ListOffers)
		requests.GET("/:id/offers/ranked", s.handlers.RankOffers)

		requests.GET("/:id/history", s.handlers.GetHistory)
		requests.GET("/:id/order-document", s.handlers.DownloadOrderDocument)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", s.handlers.ListNotifications)
		notifications.GET("/unread-count", s.handlers.UnreadCount)
		notifications.POST("/:id/read", s.handlers.MarkNotificationRead)
	}
}

// Start serves until ctx is cancelled or the listener fails, then shuts
// down gracefully. It blocks for the lifetime of the server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server", "address", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP listener failed", "error", err)
		return err
	}
}

// Stop gives in-flight requests a grace period before closing the listener.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Graceful shutdown failed", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router exposes the gin engine so tests can drive requests through the
// full middleware chain without a listener.
func (s *Server) Router() *gin.Engine {
	return s.router
}
