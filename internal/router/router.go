package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jwalitptl/report-assistant/internal/middleware"
	"github.com/jwalitptl/report-assistant/pkg/validator"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// PublicHandler also exposes endpoints that need a signed-in caller.
type PublicHandler interface {
	Handler
	RegisterProtectedRoutes(*gin.RouterGroup)
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	health  Handler
	authH   PublicHandler
	handler []Handler
	limiter *middleware.RateLimiter
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type RouterConfig struct {
	Mode          string
	RateLimit     middleware.RateLimiterConfig
	RateEnabled   bool
	CORSConfig    middleware.CORSConfig
	SizeLimit     middleware.SizeLimitConfig
	MetricsPrefix string
	Registerer    prometheus.Registerer
}

// NewRouter builds the engine and its global middleware. Protected handlers
// are mounted behind auth in Setup.
func NewRouter(
	auth *middleware.AuthMiddleware,
	health Handler,
	authH PublicHandler,
	config RouterConfig,
	protected ...Handler,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	validator.Register()

	engine := gin.New()

	r := &Router{
		engine:  engine,
		auth:    auth,
		health:  health,
		authH:   authH,
		handler: protected,
		metrics: initRouterMetrics(config.MetricsPrefix, config.Registerer),
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.SizeLimit),
	)

	if config.RateEnabled {
		r.limiter = middleware.NewRateLimiter(config.RateLimit)
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Health check endpoints
	r.health.RegisterRoutes(api)

	// Public routes
	public := api.Group("")
	if r.limiter != nil {
		public.Use(r.limiter.RateLimit())
	}
	r.authH.RegisterRoutes(public)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	if r.limiter != nil {
		protected.Use(r.limiter.RateLimit())
	}
	r.authH.RegisterProtectedRoutes(protected)
	for _, h := range r.handler {
		h.RegisterRoutes(protected)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string, reg prometheus.Registerer) *routerMetrics {
	if prefix == "" {
		prefix = "http"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &routerMetrics{
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
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
		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		switch {
		case c.Writer.Status() >= 500:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "server").Inc()
		case c.Writer.Status() >= 400:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "client").Inc()
		}
	}
}
