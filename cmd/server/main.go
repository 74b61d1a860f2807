package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"optionsdata/internal/config"
	"optionsdata/internal/httpx"
	"optionsdata/internal/insights"
	"optionsdata/internal/logging"
	"optionsdata/internal/metrics"
	"optionsdata/internal/optionsdata"
	"optionsdata/internal/provider/cache"
	"optionsdata/internal/provider/polygon"
	"optionsdata/internal/provider/ratelimit"
	"optionsdata/internal/server"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("dotenv: %v", err)
	}
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		log.Fatalf("logging: %v", err)
	}
	metrics.InitMetrics(prometheus.DefaultRegisterer)

	a, err := build(cfg, prometheus.DefaultGatherer)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	if polygon.IsPlaceholderKey(cfg.Polygon.APIKey) {
		log.Warn("POLYGON_API_KEY not set; /options-data will answer 500 until it is")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec+5) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.cron.Start()
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutting down")
	<-a.cron.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type app struct {
	handler http.Handler
	cache   *cache.QuoteCache
	cron    *cron.Cron
}

// build wires the outbound client, the cache and its sweep job, and the
// router. The cron scheduler is returned stopped.
func build(cfg config.Config, gatherer prometheus.Gatherer) (*app, error) {
	hc := httpx.New(time.Duration(cfg.Polygon.TimeoutSec) * time.Second)
	limited := ratelimit.Wrap(hc,
		cfg.Polygon.MaxRequestsPerMinute,
		cfg.Polygon.Burst,
		time.Duration(cfg.Polygon.MinRequestIntervalSec)*time.Second,
	)
	client := polygon.NewClient(cfg.Polygon.APIKey,
		polygon.WithBaseURL(cfg.Polygon.BaseURL),
		polygon.WithHTTPClient(limited),
		polygon.WithMaxConcurrency(cfg.Polygon.MaxConcurrency),
	)

	qc := cache.New(cache.Options{
		TTL:        time.Duration(cfg.Cache.TTLMillis) * time.Millisecond,
		MaxEntries: cfg.Cache.MaxEntries,
	})

	c := cron.New()
	if cfg.Cache.PurgeSpec != "" {
		if _, err := c.AddFunc(cfg.Cache.PurgeSpec, func() {
			if n := qc.PurgeExpired(); n > 0 {
				log.WithField("purged", n).Debug("cache sweep")
			}
		}); err != nil {
			return nil, err
		}
	}

	placeholder := insights.NewPlaceholder(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)
	h := server.New(server.Deps{
		Options:        optionsdata.NewHandler(client, qc),
		Analyzer:       placeholder,
		Learner:        placeholder,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Gatherer:       gatherer,
	})
	return &app{handler: h, cache: qc, cron: c}, nil
}
