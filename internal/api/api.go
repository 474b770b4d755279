// Package api exposes the market snapshot over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketfeed/internal/aggregate"
	"marketfeed/internal/market"
)

// MarketService is satisfied by *poller.Poller.
type MarketService interface {
	Current() aggregate.Snapshot
	Latest(ctx context.Context) aggregate.Snapshot
	Refresh(ctx context.Context) aggregate.Snapshot
}

type Options struct {
	Service MarketService
	Logger  *zap.Logger
	// RequestTimeout bounds fetches triggered by a request. Zero means no limit
	// beyond the client connection.
	RequestTimeout time.Duration
	// Metrics and Stream are mounted at /metrics and /ws when set.
	Metrics http.Handler
	Stream  http.HandlerFunc
}

type handler struct {
	svc     MarketService
	timeout time.Duration
}

func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(requestLogger(logger), recovery(logger), cors())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.Stream != nil {
		r.GET("/ws", gin.WrapF(opts.Stream))
	}

	h := &handler{svc: opts.Service, timeout: opts.RequestTimeout}
	g := r.Group("/api/market", limitBody(), withGzip())
	g.GET("", h.snapshot)
	g.POST("/refresh", h.refresh)
	g.GET("/:instrument", h.instrument)
	return r
}

func (h *handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *handler) snapshot(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	c.JSON(http.StatusOK, h.svc.Latest(ctx))
}

func (h *handler) refresh(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	c.JSON(http.StatusOK, h.svc.Refresh(ctx))
}

func (h *handler) instrument(c *gin.Context) {
	inst, err := market.ParseInstrument(c.Param("instrument"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry, ok := h.svc.Current()[inst]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no reading for " + string(inst) + " yet"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
