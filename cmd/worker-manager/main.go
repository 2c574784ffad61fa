// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclient "dar-workers/internal/common/aws"
	"dar-workers/internal/common/camunda"
	"dar-workers/internal/common/config"
	"dar-workers/internal/common/database"
	"dar-workers/internal/common/logger"
	"dar-workers/internal/common/observability"
	"dar-workers/internal/coordinator"
	"dar-workers/internal/dispatch"
	"dar-workers/internal/permissions"
	"dar-workers/internal/repository"
	"dar-workers/internal/search"
	"dar-workers/internal/service"
	"dar-workers/pkg/registry"

	sn "dar-workers/internal/workers/application/send-notification"
	csd "dar-workers/internal/workers/review/check-step-deadline"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog, err := logger.Build(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger build failed: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment))

	var tracing []observability.TracingOptions
	if cfg.Tracing.Enabled {
		tracing = append(tracing, observability.TracingOptions{
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
	}
	obs := observability.New(cfg.App.Name, tracing...)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			ProcessID:              cfg.Camunda.ProcessID,
			RetryConfig: &camunda.RetryConfig{
				MaxAttempts: cfg.Camunda.RetryAttempts,
				Delay:       cfg.Camunda.RetryDelayDuration(),
			},
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("postgres schema failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Elasticsearch ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	if err := esClient.EnsureIndex(ctx, cfg.Search.Index, database.ApplicationIndexMapping); err != nil {
		zapLog.Fatal("elasticsearch index failed", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Redis ---
	redis := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(func() error {
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- AWS ---
	awsCfg, err := awsclient.LoadConfig(ctx, cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("aws config failed", zap.Error(err))
	}
	sesClient := awsclient.NewSESClient(awsCfg)
	snsClient := awsclient.NewSNSClient(awsCfg)

	reg, err := registry.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		zapLog.Warn("activity registry unavailable, job input validation disabled", zap.Error(err))
	}

	// --- Application core ---
	notifier := sn.NewHandler(sn.LoadConfig(cfg), pg.DB, redis.Client, sesClient, snsClient,
		reg.InputSchema(sn.TaskType), log)
	dispatcher := dispatch.New(camundaClient, notifier, config.GetDuration(cfg.Camunda.RequestTimeout), log)
	coord := coordinator.New(
		repository.NewApplicationRepository(pg.DB, log),
		permissions.NewResolver(pg.DB, log),
		service.New(),
		dispatcher,
		search.NewIndexer(esClient.Client, cfg.Search.Index),
		obs,
		coordinator.Options{
			MaxAttempts:         cfg.Coordinator.MaxAttempts,
			DefaultDeadlineDays: cfg.Review.DefaultDeadlineDays,
			DefaultReminderDays: cfg.Review.DefaultReminderDays,
		},
		log,
	)

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	zeebeClient := camundaClient.GetClient()

	if config.IsWorkerEnabled(cfg, sn.TaskType) {
		w := config.GetWorkerConfig(cfg, sn.TaskType)
		workers = append(workers, camunda.StartWorker(zeebeClient, sn.TaskType,
			camunda.WorkerOptions{MaxJobsActive: w.MaxJobsActive, Timeout: config.GetDuration(w.Timeout)},
			notifier.Handle, obs, zapLog))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", sn.TaskType))
	}

	if config.IsWorkerEnabled(cfg, csd.TaskType) {
		w := config.GetWorkerConfig(cfg, csd.TaskType)
		handler := csd.NewHandler(csd.LoadConfig(cfg), coord, reg.InputSchema(csd.TaskType), log)
		workers = append(workers, camunda.StartWorker(zeebeClient, csd.TaskType,
			camunda.WorkerOptions{MaxJobsActive: w.MaxJobsActive, Timeout: config.GetDuration(w.Timeout)},
			handler.Handle, obs, zapLog))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", csd.TaskType))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		rctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status, code := "ready", http.StatusOK
		if err := pg.Ping(rctx); err != nil {
			status, code = "postgres unavailable", http.StatusServiceUnavailable
		} else if err := camundaClient.HealthCheck(rctx); err != nil {
			status, code = "zeebe unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.App.MetricsPort), Handler: mux}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	dispatcher.Wait()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
