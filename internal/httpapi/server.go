// Package httpapi is the /push HTTP surface: subscription management, delivery
// history, digest settings and test sends.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/delivery"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/domain"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/store"
)

// Store is the persistence the handlers need.
type Store interface {
	store.PreferenceRepo
	store.SubscriptionRepo
	store.DeliveryLogRepo
}

// Sender delivers a one-off notification to a single user.
type Sender interface {
	DeliverToUser(ctx context.Context, userID string, n domain.Notification) delivery.UserResult
}

// Options configures the server.
type Options struct {
	JWTSecret   string
	CORSOrigins []string
	// PublicKey is the VAPID public key; empty means push is not configured.
	PublicKey string
}

// Server serves the HTTP API.
type Server struct {
	store     Store
	sender    Sender
	publicKey string
	log       *zap.Logger
	router    *gin.Engine
}

// NewServer builds the gin engine and registers every route.
// sender may be nil when push is not configured.
func NewServer(st Store, sender Sender, log *zap.Logger, opts Options) *Server {
	router := gin.New()
	router.Use(Recovery(log))
	router.Use(RequestLogger(log))
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))

	s := &Server{
		store:     st,
		sender:    sender,
		publicKey: opts.PublicKey,
		log:       log,
		router:    router,
	}
	s.setupRoutes(JWTAuth(opts.JWTSecret))
	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

// Handler returns the http.Handler for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/push")
	api.Use(auth)
	{
		// subscription management and test sends need VAPID keys
		configured := api.Group("")
		configured.Use(s.requirePush())
		{
			configured.POST("/subscribe", s.handleSubscribe())
			configured.DELETE("/unsubscribe", s.handleUnsubscribe())
			configured.GET("/vapid-public-key", s.handleVAPIDPublicKey())
			configured.POST("/test", s.handleTest())
		}

		notifications := api.Group("/notifications")
		{
			notifications.GET("", s.handleListNotifications())
			notifications.PUT("/read-all", s.handleMarkAllRead())
			notifications.PUT("/:id/read", s.handleMarkRead())
		}

		api.GET("/settings", s.handleGetSettings())
		api.PUT("/settings", s.handlePutSettings())
	}
}

func (s *Server) pushConfigured() bool {
	return s.sender != nil && s.publicKey != ""
}

func (s *Server) requirePush() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.pushConfigured() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are not configured"})
			return
		}
		c.Next()
	}
}
