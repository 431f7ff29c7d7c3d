package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/library-admin/internal/handler"
	"github.com/jwalitptl/library-admin/internal/middleware"
	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine  *gin.Engine
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

type RouterConfig struct {
	RateLimit     rate.Limit
	RateBurst     int
	MaxBodySize   int64
	CORSConfig    middleware.CORSConfig
	MetricsPrefix string
	// Registerer receives the HTTP metrics; nil leaves them unregistered
	Registerer prometheus.Registerer
	Logger     *logger.Logger
}

func NewRouter(config RouterConfig) *Router {
	engine := gin.New()
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	if config.MetricsPrefix == "" {
		config.MetricsPrefix = "library_dashboard"
	}

	r := &Router{
		engine:  engine,
		metrics: initRouterMetrics(config.MetricsPrefix, config.Registerer),
	}
	middleware.RegisterValidators()

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		r.metricsMiddleware(),
		middleware.ErrorHandler(log),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.MaxBodySize),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	engine.NoRoute(func(c *gin.Context) {
		handler.RespondError(c, apperrors.NotFound("route not found"))
	})
	return r
}

// Setup mounts root handlers (health, metrics) at / and api handlers
// under /api.
func (r *Router) Setup(root []Handler, api []Handler) {
	base := r.engine.Group("")
	for _, h := range root {
		h.RegisterRoutes(base)
	}
	group := r.engine.Group("/api")
	for _, h := range api {
		h.RegisterRoutes(group)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string, reg prometheus.Registerer) *routerMetrics {
	factory := promauto.With(reg)
	return &routerMetrics{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_http_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
