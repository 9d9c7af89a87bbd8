// Package api exposes the registry and its auctions over HTTP, plus a
// websocket stream of notifications. Error responses carry the machine
// -readable kind of the domain error so callers can branch on it.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"auction_go/internal/events"
	"auction_go/internal/infra"
	"auction_go/internal/infra/storage"
	"auction_go/internal/mint"
	"auction_go/internal/registry"
)

// Server carries the handler dependencies.
type Server struct {
	registry *registry.Registry
	journal  *storage.Journal    // optional
	minter   *mint.Minter        // optional
	media    *infra.MediaFetcher // optional
	hub      *events.Hub
	metrics  *infra.Metrics
	upgrader websocket.Upgrader
}

// New creates a server over the given registry. journal, minter and media may
// be nil.
func New(reg *registry.Registry, journal *storage.Journal, minter *mint.Minter, media *infra.MediaFetcher, hub *events.Hub, metrics *infra.Metrics) *Server {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Server{
		registry: reg,
		journal:  journal,
		minter:   minter,
		media:    media,
		hub:      hub,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Control-plane surface; origin policy belongs to the fronting proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the gin handler.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/metrics", s.handleMetrics)
	api.GET("/events", s.handleEventLog)
	api.GET("/events/stream", s.handleEventStream)

	auctions := api.Group("/auctions")
	auctions.POST("", s.handleCreate)
	auctions.GET("", s.handleList)

	one := auctions.Group("/:collection/:tokenID")
	one.GET("", s.handleGet)
	one.GET("/media", s.handleMedia)
	one.DELETE("", s.handleRemove)
	one.POST("/start", s.handleStart)
	one.POST("/bid", s.handleBid)
	one.POST("/withdraw", s.handleWithdraw)
	one.POST("/cancel", s.handleCancel)
	one.POST("/end", s.handleEnd)

	if s.minter != nil {
		m := api.Group("/mint")
		m.GET("", s.handleMintInfo)
		m.POST("", s.handleMint)
		m.POST("/allowlist", s.handleMintAllowlist)
		m.POST("/advance", s.handleMintAdvance)
	}

	return r
}
