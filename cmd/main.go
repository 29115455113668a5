package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"support-dojo/server/internal/config"
	"support-dojo/server/internal/engine"
	"support-dojo/server/internal/gateway"
	"support-dojo/server/internal/interfaces"
	"support-dojo/server/internal/llm"
	"support-dojo/server/internal/metrics"
	"support-dojo/server/internal/persona"
	"support-dojo/server/internal/resilience"
	"support-dojo/server/internal/storage"
	"support-dojo/server/internal/web"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v, using defaults\n", *configPath, err)
		cfg = config.Default()
	}

	log := newLogger(cfg.Logging)
	log.Info().Str("addr", cfg.Server.Addr()).Msg("starting support-dojo server")

	// Storage falls back to in-memory when the backing services are
	// unreachable, so a bare `go run` still works for local development.
	var kv interfaces.KVStore
	redisStore, err := storage.NewRedisStore(cfg.Database.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using in-memory store")
		memKV := storage.NewMemKV()
		defer memKV.Close()
		kv = memKV
	} else {
		kv = redisStore
	}

	var contexts interfaces.ContextStore
	mysqlStore, err := storage.NewMySQLContextStore(cfg.Database.MySQL)
	if err != nil {
		log.Warn().Err(err).Msg("mysql unavailable, using in-memory context store")
		contexts = storage.NewMemContextStore()
	} else {
		contexts = mysqlStore
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	sink := metrics.NewPrometheusSink(registry)

	client := llm.NewClient(cfg.AI)
	gw := gateway.New(client, kv, cfg.AI, cfg.Generation, log)
	guard := resilience.NewGuard(gw, cfg.Resilience, log)
	tracker := persona.NewTracker(kv, cfg.Persona, log)
	fallback := resilience.NewResponder(sink, log)

	events := make(chan engine.ExchangeEvent, 256)
	orchestrator := engine.NewOrchestrator(guard, tracker, contexts, sink, cfg.AI, cfg.Generation, events, log)

	hub := web.NewExchangeHub(events, log)
	go hub.Run()

	handlers := web.NewHandlers(orchestrator, tracker, guard, fallback, hub, log)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	router := web.NewRouter(handlers, metricsHandler, log)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	close(events)
	log.Info().Msg("server stopped")
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.Format == "console" {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}
