package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/internal/app"
	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	promhandler "github.com/jwalitptl/booking-api/internal/handler/prometheus"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

// The worker runs the outbox processor, the deferred task runner and the
// outbox cleanup outside the API process. Set worker.embedded=false on the
// API when running it.
func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := app.NewLogger(cfg).With("worker")
	gin.SetMode(gin.ReleaseMode)

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

	broker, brokerCheck, err := app.NewBroker(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal(err, "failed to connect to redis")
	}
	defer broker.Close()

	repos := postgres.NewRepositories(db)
	core := app.NewCore(cfg, repos, log, m)

	bg, err := app.NewBackground(cfg, repos, core, broker, app.NewMailer(cfg.SMTP, log), log, m)
	if err != nil {
		log.Fatal(err, "failed to create background workers")
	}

	checks := map[string]health.Check{"database": db.PingContext}
	if brokerCheck != nil {
		checks["redis"] = brokerCheck
	}
	srv := healthServer(cfg.Worker.HealthPort, checks, promhandler.New(registry, m), log)

	if cfg.Redis.Enabled {
		go func() {
			if err := app.LogDomainEvents(ctx, broker, log); err != nil {
				log.Error(err, "domain event subscription failed")
			}
		}()
	}

	log.Info("worker started")
	bg.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "health server forced to shutdown")
	}
	log.Info("worker stopped")
}

func healthServer(port int, checks map[string]health.Check, metrics *promhandler.Handler, log *logger.Logger) *http.Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(checks).RegisterRoutes(engine)
	engine.GET("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "health server failed")
		}
	}()
	return srv
}
