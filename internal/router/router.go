package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/internal/handler"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	promhandler "github.com/jwalitptl/booking-api/internal/handler/prometheus"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

const welcomeMessage = "Welcome to the Bike Service Station API"

// Handler mounts a resource's routes. authn must guard every route that
// needs a caller.
type Handler interface {
	RegisterRoutes(r *gin.RouterGroup, authn gin.HandlerFunc)
}

type Config struct {
	CORS        middleware.CORSConfig
	Security    middleware.SecurityConfig
	MaxBodySize int64
}

type Router struct {
	engine   *gin.Engine
	authn    gin.HandlerFunc
	health   *health.Handler
	metrics  *promhandler.Handler
	handlers []Handler
}

func NewRouter(
	l *logger.Logger,
	tokens middleware.TokenValidator,
	healthH *health.Handler,
	metricsH *promhandler.Handler,
	config Config,
	handlers ...Handler,
) (*Router, error) {
	if err := middleware.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("Route not found"))
	})

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(l),
		middleware.Logger(l),
		metricsH.Middleware(),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORS),
		middleware.SizeLimit(config.MaxBodySize),
	)

	return &Router{
		engine:   engine,
		authn:    middleware.Authenticate(tokens),
		health:   healthH,
		metrics:  metricsH,
		handlers: handlers,
	}, nil
}

func (r *Router) Setup() {
	r.engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, welcomeMessage)
	})
	r.engine.GET("/metrics", r.metrics.Handler())
	r.health.RegisterRoutes(r.engine)

	api := r.engine.Group("/api")
	for _, h := range r.handlers {
		h.RegisterRoutes(api, r.authn)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
