package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-shelter-alerts/internal/alerts"
	"github.com/mr1hm/go-shelter-alerts/internal/api"
	"github.com/mr1hm/go-shelter-alerts/internal/config"
	"github.com/mr1hm/go-shelter-alerts/internal/events"
	"github.com/mr1hm/go-shelter-alerts/internal/fanout"
	"github.com/mr1hm/go-shelter-alerts/internal/logging"
	"github.com/mr1hm/go-shelter-alerts/internal/observability"
	"github.com/mr1hm/go-shelter-alerts/internal/push"
	"github.com/mr1hm/go-shelter-alerts/internal/repository"
	"github.com/mr1hm/go-shelter-alerts/internal/shelter"
	"github.com/mr1hm/go-shelter-alerts/internal/verification"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "shelter-alert",
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logging.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	gateway, err := push.New(cfg.Push, logger)
	if err != nil {
		logging.Fatalf("Failed to initialize push gateway: %v", err)
	}

	broadcaster := events.NewBroadcaster(cfg.Events.BufferSize, metrics.EventsDropped)

	// Optional Kafka mirror of alert events and fan-out summaries
	var (
		sink      events.ResultSink
		kafka     *events.KafkaPublisher
		kafkaDone = make(chan struct{})
	)
	if len(cfg.Events.KafkaBrokers) > 0 {
		kafka = events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, logger)
		sink = kafka
		_, kafkaEvents := broadcaster.Subscribe()
		go func() {
			defer close(kafkaDone)
			kafka.Run(ctx, kafkaEvents)
		}()
		slog.Info("kafka publisher enabled", "brokers", cfg.Events.KafkaBrokers, "topic", cfg.Events.KafkaTopic)
	} else {
		close(kafkaDone)
	}

	locator := shelter.NewLocator(db)
	pipeline := fanout.NewPipeline(db, locator, gateway, fanout.Options{
		Workers:         cfg.Fanout.Workers,
		SendTimeout:     cfg.Fanout.SendTimeout,
		ShelterSearchKm: cfg.Fanout.ShelterSearchKm,
	}, metrics, logger)

	policy := events.TriggerWhenLive
	if cfg.Fanout.DispatchOnCreate {
		policy = events.TriggerOnCreate
	}
	dispatcher := events.NewDispatcher(pipeline, db, policy, sink, cfg.Fanout.Dispatchers, clock, logger)
	_, dispatchEvents := broadcaster.SubscribeReliable()
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(ctx, dispatchEvents)
	}()
	slog.Info("fanout dispatcher started", "policy", policy, "dispatchers", cfg.Fanout.Dispatchers, "workers", cfg.Fanout.Workers)

	alertService := alerts.NewService(db, broadcaster, clock, metrics, logger)
	engine := verification.NewEngine(db, broadcaster, clock, metrics, logger)

	// Gin router
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-API-KEY", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimit))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handler := api.NewHandler(api.Deps{
		Alerts:   alertService,
		Votes:    engine,
		Shelters: locator,
		Devices:  db,
		Stats:    db,
		Clock:    clock,
		Logger:   logger,
		Version:  version,
		Debug:    cfg.Server.Debug,
		APIKey:   cfg.Server.APIKey,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Closing subscriptions lets the dispatcher finish queued fan-outs.
	broadcaster.Close()
	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		slog.Warn("fanout still running at shutdown deadline, abandoning")
	}
	cancel()
	<-dispatcherDone
	<-kafkaDone

	if kafka != nil {
		if err := kafka.Close(); err != nil {
			slog.Error("kafka close error", "error", err)
		}
	}
	observability.ShutdownTracing(shutdownTracing, logger)

	slog.Info("shutdown complete")
}
