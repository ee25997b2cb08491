package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"bagsy/internal/app/engine"
	"bagsy/internal/app/negotiating"
	"bagsy/internal/app/policies"
	"bagsy/internal/domain/negotiation"
	"bagsy/internal/infra/config"
	mongodb "bagsy/internal/infra/db/mongo"
	"bagsy/internal/infra/governor"
	ginserver "bagsy/internal/infra/http/gin"
	marketinfra "bagsy/internal/infra/market"
	"bagsy/internal/infra/notify"
	"bagsy/internal/infra/obs"
	scheduleinfra "bagsy/internal/infra/schedule"
	"bagsy/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	negotiations, preferences, ready := buildStorage(cfg, logger)

	notifier, publisher, closeNotify := buildDispatch(cfg, logger)
	defer closeNotify()

	gov := governor.New(cfg.MarketCallBudget, cfg.RetryBackoff, logger)
	provider := &marketinfra.LLMProvider{
		Client:   resty.New().SetTimeout(cfg.LLMTimeout),
		Endpoint: cfg.LLMEndpoint,
		Model:    cfg.LLMModel,
		Governor: gov,
		Logger:   logger,
	}

	scheduler := scheduleinfra.NewTimerScheduler(logger)
	defer scheduler.Close()

	orchestrator := &negotiating.Orchestrator{
		Negotiations: negotiations,
		Preferences:  preferences,
		Market:       provider,
		Engine:       engine.New(),
		Notifier:     notifier,
		Events:       publisher,
		Scheduler:    scheduler,
		Logger:       logger,
		RoundDelay:   cfg.AgentRoundDelay,
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: ready}, ginserver.Handlers{
		Negotiation: ginserver.NegotiationHandler{Orchestrator: orchestrator, Negotiations: negotiations},
		Preferences: ginserver.PreferencesHandler{Preferences: preferences},
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "market_budget", cfg.MarketCallBudget)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

func buildStorage(cfg config.Config, logger *slog.Logger) (negotiation.Repository, negotiation.PreferencesRepository, func() error) {
	if cfg.MongoURI == "" {
		logger.Info("no MONGO_URI configured, using in-memory storage")
		return memory.NewNegotiationRepository(), memory.NewPreferencesRepository(), func() error { return nil }
	}
	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connect failed, falling back to in-memory storage", "error", err)
		return memory.NewNegotiationRepository(), memory.NewPreferencesRepository(), func() error { return nil }
	}
	ready := func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx)
	}
	return mongodb.NewNegotiationRepository(client.DB), mongodb.NewPreferencesRepository(client.DB), ready
}

func buildDispatch(cfg config.Config, logger *slog.Logger) (policies.Notifier, policies.EventPublisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("no KAFKA_BROKERS configured, notifications go to the log")
		d := notify.LogDispatcher{Logger: logger}
		return d, d, func() {}
	}
	dispatcher, err := notify.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, logger)
	if err != nil {
		logger.Error("kafka producer init failed, notifications go to the log", "error", err)
		d := notify.LogDispatcher{Logger: logger}
		return d, d, func() {}
	}
	return dispatcher, dispatcher, func() {
		if err := dispatcher.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	}
}
