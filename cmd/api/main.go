package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/booking-api/internal/app"
	"github.com/jwalitptl/booking-api/internal/config"
	authhandler "github.com/jwalitptl/booking-api/internal/handler/auth"
	bookinghandler "github.com/jwalitptl/booking-api/internal/handler/booking"
	cataloghandler "github.com/jwalitptl/booking-api/internal/handler/catalog"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	promhandler "github.com/jwalitptl/booking-api/internal/handler/prometheus"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/internal/router"
	authservice "github.com/jwalitptl/booking-api/internal/service/auth"
	"github.com/jwalitptl/booking-api/internal/service/catalog"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/security"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := app.NewLogger(cfg)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, registry, err := app.NewMetrics()
	if err != nil {
		log.Fatal(err, "failed to set up metrics")
	}

	db, err := app.OpenDatabase(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	repos := postgres.NewRepositories(db)

	jwtSvc, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.TTL())
	if err != nil {
		log.Fatal(err, "failed to create token service")
	}
	authSvc := authservice.NewService(repos.Users, security.NewBcryptHasher(cfg.Security.BcryptCost), jwtSvc, log)
	catalogSvc := catalog.NewService(repos.Services, repos.Users, cfg.Catalog.CacheTTL, log)
	core := app.NewCore(cfg, repos, log, m)

	checks := map[string]health.Check{"database": db.PingContext}

	var wg sync.WaitGroup
	if cfg.Worker.Embedded {
		broker, brokerCheck, err := app.NewBroker(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal(err, "failed to connect to redis")
		}
		defer broker.Close()
		if brokerCheck != nil {
			checks["redis"] = brokerCheck
		}

		bg, err := app.NewBackground(cfg, repos, core, broker, app.NewMailer(cfg.SMTP, log), log, m)
		if err != nil {
			log.Fatal(err, "failed to create background workers")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			bg.Run(ctx)
		}()
	}

	var limiter gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		}).RateLimit()
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.Security.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.Security.AllowedOrigins
	}
	sec := middleware.DefaultSecurityConfig()
	sec.HSTS = cfg.IsProduction()

	r, err := router.NewRouter(
		log,
		authSvc,
		health.NewHandler(checks),
		promhandler.New(registry, m),
		router.Config{CORS: cors, Security: sec, MaxBodySize: middleware.DefaultMaxBodySize},
		authhandler.NewHandler(authSvc, limiter),
		cataloghandler.NewHandler(catalogSvc),
		bookinghandler.NewHandler(core.Bookings),
	)
	if err != nil {
		log.Fatal(err, "failed to create router")
	}
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	wg.Wait()
	log.Info("server exited properly")
}
