// Nodeflow API — HTTP сервер для UI-редактора графов.
//
// API:
//   - Хранит графы в PostgreSQL и применяет правки узлов и связей
//   - Выполняет графы синхронно или ставит run в очередь RabbitMQ
//   - Отдаёт сохранённые runs и отчёты
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

	"github.com/shaiso/Nodeflow/internal/api"
	"github.com/shaiso/Nodeflow/internal/effects"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/repo"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting nodeflow-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// RabbitMQ опционален: без него недоступны async runs и события статусов.
	var sender mq.Sender
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	if conn, err := mq.Dial(mqURL, logger); err != nil {
		logger.Warn("RabbitMQ not available, async runs disabled", "error", err)
	} else {
		defer conn.Close()
		if err := mq.Setup(conn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		sender = mq.NewPublisher(conn, logger)
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	observers := engine.Observers{
		engine.LogObserver{Logger: logger},
		telemetry.NewMetricsObserver(metrics),
	}
	if sender != nil {
		observers = append(observers, mq.NewEventObserver(sender, logger))
	}

	eng := engine.New(engine.Config{
		Effects: &effects.Effects{
			FS:   effects.NewOSFileSystem(os.Getenv("NODEFLOW_ROOT")),
			HTTP: &http.Client{Timeout: 30 * time.Second},
		},
		Observer:    observers,
		NodeTimeout: envDuration("NODE_TIMEOUT", 0),
		Logger:      logger,
	})

	scheduleRepo := repo.NewScheduleRepo(pool)
	handler := api.NewHandler(api.Config{
		Graphs:    repo.NewGraphRepo(pool),
		Runs:      repo.NewRunRepo(pool),
		Schedules: scheduleRepo,
		Sender:    sender,
		Registry:  nodes.DefaultRegistry(),
		Engine:    eng,
		Logger:    logger,
		Metrics:   prometheus.DefaultGatherer,
		Health:    pool.Ping,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
