package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"uptimebot/internal/auth"
	"uptimebot/internal/config"
	"uptimebot/internal/domain"
	"uptimebot/internal/httpapi"
	"uptimebot/internal/logging"
	"uptimebot/internal/notify"
	"uptimebot/internal/probe"
	"uptimebot/internal/repo/filestore"
	"uptimebot/internal/scheduler"
	"uptimebot/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := filestore.Open(cfg.StateFile(), cfg.HistoryLimit, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.Error(err))
	}

	registry := auth.Load(cfg.AdminFile(), domain.PrincipalID(cfg.PrimaryAdmin), logger)

	sinks := notify.Multi{&notify.LogSink{Logger: logger}}
	if wh := notify.NewWebhook(cfg.WebhookURL); wh != nil {
		sinks = append(sinks, wh)
	}
	dispatcher := notify.NewDispatcher(logger, sinks, cfg.DispatchQueueSize)
	go dispatcher.Run(ctx)

	tr := tracker.New(logger, store, store, store, dispatcher, tracker.Policy{
		DownAfter: cfg.DownThreshold,
		UpAfter:   cfg.UpThreshold,
	})

	prober := probe.NewHTTPProber(cfg.ProbeTimeout, cfg.MaxRedirects, probe.StatusRange{
		Min: cfg.AcceptStatusMin,
		Max: cfg.AcceptStatusMax,
	})

	sched := scheduler.New(logger, store, prober, tr, cfg.ProbeTimeout, cfg.InitialDelay)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("scheduler_start_error", zap.Error(err))
	}

	api := httpapi.NewServer(logger, store, store, store, sched, registry, registry, cfg.PingInterval)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_serve_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}

	sched.Stop()
	dispatcher.Wait()
	logger.Info("stopped")
}
