// Package server exposes the dashboard core over HTTP and WebSocket.
package server

import (
	"context"
	"net/http"
	"net/http/pprof"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
	"crypto_dash/internal/view"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// StateStore is the part of engine.Store the handlers need.
type StateStore interface {
	State() domain.State
	LastSeq() uint64
	Snapshot() (domain.State, uint64)
	DispatchWait(ctx context.Context, a event.Action) (domain.State, uint64, error)
}

// ChartProvider serves price histories.
type ChartProvider interface {
	Chart(ctx context.Context, assetID string, days int) (domain.ChartSeries, error)
	Charts(ctx context.Context, assetIDs []string, days int) (map[string]domain.ChartSeries, error)
}

// IconProvider looks up cached icons.
type IconProvider interface {
	Path(id string) (string, bool)
}

// Deps wires the router. Charts, Icons, Hub and Gatherer are optional.
type Deps struct {
	Store       StateStore
	Selectors   *view.Selectors
	Charts      ChartProvider
	Icons       IconProvider
	Hub         *Hub
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Pprof       bool
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := &handlers{
		store:     d.Store,
		selectors: d.Selectors,
		charts:    d.Charts,
		icons:     d.Icons,
		logger:    d.Logger.Named("HTTP"),
	}

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	if len(d.CORSOrigins) == 0 || (len(d.CORSOrigins) == 1 && d.CORSOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = d.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	router.Use(requestLogger(h.logger))
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		body := gin.H{"status": "ok", "seq": d.Store.LastSeq()}
		if d.Hub != nil {
			body["streamClients"] = d.Hub.Clients()
		}
		c.JSON(http.StatusOK, body)
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/view", h.getView)
		v1.GET("/state", h.getState)
		v1.POST("/actions", h.postAction)
		if d.Charts != nil {
			v1.GET("/charts", h.getCharts)
			v1.GET("/charts/:id", h.getChart)
		}
		if d.Icons != nil {
			v1.GET("/icons/:id", h.getIcon)
		}
	}

	if d.Hub != nil {
		router.GET("/ws", d.Hub.Serve)
	}

	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	if d.Pprof {
		// Make sure to protect these in a production environment
		pprofRouter := router.Group("/debug/pprof")
		{
			pprofRouter.GET("/", gin.WrapF(pprof.Index))
			pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
			pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
			pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
			pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
			pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		}
	}

	return router
}
