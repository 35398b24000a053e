// Nodeflow Runner — фоновое выполнение runs.
//
// Runner:
//   - Получает run.requested из RabbitMQ и опрашивает PENDING runs в БД
//   - Загружает документ графа и выполняет его движком
//   - Сохраняет итоговый отчёт и публикует статусы узлов
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Nodeflow/internal/effects"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/mq"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/repo"
	"github.com/shaiso/Nodeflow/internal/runner"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting nodeflow-runner")

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
	logger.Info("database connected")

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	observers := engine.Observers{
		engine.LogObserver{Logger: logger},
		telemetry.NewMetricsObserver(metrics),
	}

	var conn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	conn, err = mq.Dial(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer conn.Close()
		if err := mq.Setup(conn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		observers = append(observers, mq.NewEventObserver(mq.NewPublisher(conn, logger), logger))
	}

	eng := engine.New(engine.Config{
		Effects: &effects.Effects{
			FS:   effects.NewOSFileSystem(os.Getenv("NODEFLOW_ROOT")),
			HTTP: &http.Client{Timeout: 30 * time.Second},
		},
		Observer: observers,
		Logger:   logger,
	})

	r := runner.New(runner.Config{
		Graphs:   repo.NewGraphRepo(pool),
		Runs:     repo.NewRunRepo(pool),
		Registry: nodes.DefaultRegistry(),
		Engine:   eng,
		Conn:     conn,
		Logger:   logger,
	})
	r.Start(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := pool.Ping(req.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("RUNNER_PORT"); v != "" {
		port = ":" + v
	}
	server := &http.Server{Addr: port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("listening", "addr", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	r.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	logger.Info("nodeflow-runner stopped")
}
