// Package api exposes the roster over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wolfeidau/payroll/internal/notify"
	"github.com/wolfeidau/payroll/internal/roster"
)

const defaultHeartbeat = 15 * time.Second

// Config wires the router.
type Config struct {
	Roster        *roster.Service
	Hub           notify.Hub
	Authenticator Authenticator

	// Tokens enables POST /auth/token when set.
	Tokens TokenIssuer

	// Heartbeat is the interval of keep-alive comments on the event stream.
	Heartbeat time.Duration

	// Middleware runs before every route.
	Middleware []gin.HandlerFunc
}

type handlers struct {
	roster    *roster.Service
	hub       notify.Hub
	tokens    TokenIssuer
	heartbeat time.Duration
}

// NewRouter builds the gin engine serving the API.
func NewRouter(cfg Config) *gin.Engine {
	h := &handlers{
		roster:    cfg.Roster,
		hub:       cfg.Hub,
		tokens:    cfg.Tokens,
		heartbeat: cfg.Heartbeat,
	}
	if h.heartbeat <= 0 {
		h.heartbeat = defaultHeartbeat
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cfg.Middleware...)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if h.tokens != nil {
		r.POST("/auth/token", h.issueToken)
	}

	api := r.Group("/api", requireManager(cfg.Authenticator))
	{
		api.GET("/employees", h.listEmployees)
		api.POST("/employees", h.createEmployee)
		api.GET("/employees/:id", h.getEmployee)
		api.PUT("/employees/:id", h.updateEmployee)
		api.DELETE("/employees/:id", h.deleteEmployee)
		api.GET("/events", h.streamEvents)
	}

	return r
}
