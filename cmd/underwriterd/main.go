// cmd/underwriterd/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"loan-underwriter/internal/alerting"
	"loan-underwriter/internal/api"
	"loan-underwriter/internal/camunda"
	"loan-underwriter/internal/common/aws"
	"loan-underwriter/internal/common/config"
	"loan-underwriter/internal/common/database"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/common/observability"
	"loan-underwriter/internal/engine"
	"loan-underwriter/internal/events"
	"loan-underwriter/internal/oracle"
	"loan-underwriter/internal/policy"
	"loan-underwriter/internal/store"
	"loan-underwriter/internal/underwriter"
	"loan-underwriter/pkg/catalog"
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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting loan underwriter...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	if cfg.Tracing.Enabled {
		tracing, err := observability.NewTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRate)
		if err != nil {
			zapLog.Warn("tracing init failed, continuing without traces", zap.Error(err))
		} else {
			defer tracing.Shutdown()
		}
	}

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var es *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		// Test the connection
		return es.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Load Policy Documents ---
	// Hard gates and risk scoring work without policy text, so a bad
	// policy directory degrades the oracle rather than blocking startup.
	policies := policy.NewStore(cfg.Policies.Directory, log)
	if err := policies.Load(); err != nil {
		zapLog.Warn("policy load failed, starting with an empty policy set", zap.Error(err))
	} else {
		zapLog.Info("Policies loaded", zap.Int("documents", policies.DocumentCount()))
	}

	if cfg.Policies.CatalogPath != "" {
		if cat, err := catalog.LoadCatalog(cfg.Policies.CatalogPath); err != nil {
			zapLog.Warn("policy catalog unreadable", zap.Error(err))
		} else if issues, err := catalog.CrossCheck(cat, cfg.Policies.Directory); err != nil {
			zapLog.Warn("policy catalog cross-check failed", zap.Error(err))
		} else {
			for _, issue := range issues {
				zapLog.Warn("policy catalog mismatch", zap.String("issue", issue))
			}
		}
	}

	watchCtx, stopWatcher := context.WithCancel(ctx)
	defer stopWatcher()
	if cfg.Policies.Watch {
		watcher := policy.NewWatcher(policies, log)
		go func() {
			if err := watcher.Run(watchCtx); err != nil {
				zapLog.Warn("policy watcher stopped", zap.Error(err))
			}
		}()
	}

	// --- Build the Decision Pipeline ---
	oracleClient := oracle.New(oracle.Config{
		BaseURL:     cfg.Oracle.BaseURL,
		APIKey:      cfg.Oracle.APIKey,
		Model:       cfg.Oracle.Model,
		Timeout:     config.GetDuration(cfg.Oracle.Timeout),
		MaxTokens:   cfg.Oracle.MaxTokens,
		Temperature: cfg.Oracle.Temperature,
	}, policies, log)

	eng := engine.New(engine.Config{
		MinCreditScore:      cfg.Engine.MinCreditScore,
		MaxDTIRatio:         cfg.Engine.MaxDTIRatio,
		MinEmploymentMonths: cfg.Engine.MinEmploymentMonths,
		BaseInterestRate:    cfg.Engine.BaseInterestRate,
		MaxRiskPremium:      cfg.Engine.MaxRiskPremium,
		Version:             cfg.App.Version,
	}, oracleClient, log)

	decisions := store.NewDecisionStore(pg.DB, log)
	cache := store.NewIdempotencyCache(redis.Client, time.Duration(cfg.Database.Redis.TTL)*time.Second, log)
	indexer := store.NewOutcomeIndexer(es.Client, cfg.Database.Elasticsearch.Index, log)

	// Disabled sinks stay nil interfaces. Assigning a nil concrete
	// pointer here would pass the processor's nil checks and panic later.
	var publisher underwriter.DecisionPublisher
	var kafkaPublisher *events.Publisher
	if cfg.Kafka.Enabled {
		kafkaPublisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		publisher = kafkaPublisher
		zapLog.Info("Kafka publisher initialized", zap.String("topic", cfg.Kafka.Topic))
	}

	var notifier underwriter.Notifier
	if cfg.Notifications.Enabled {
		var sesClient alerting.SESService
		var snsClient alerting.SNSService
		if cfg.Notifications.Email.Enabled {
			if c, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region); err != nil {
				zapLog.Warn("SES client init failed, email alerts disabled", zap.Error(err))
			} else {
				sesClient = c
			}
		}
		if cfg.Notifications.SMS.Enabled {
			if c, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region); err != nil {
				zapLog.Warn("SNS client init failed, SMS alerts disabled", zap.Error(err))
			} else {
				snsClient = c
			}
		}
		notifier = alerting.New(cfg.Notifications, sesClient, snsClient, log)
	}

	processor := underwriter.NewProcessor(eng, decisions, cache, indexer, publisher, notifier, obs, log)

	// --- HTTP API ---
	handlers := api.NewHandlers(api.HandlerOptions{
		App:          cfg.App,
		ModelVersion: eng.Version(),
		Processor:    processor,
		Oracle:       oracleClient,
		Policies:     policies,
		DB:           pg,
		Cache:        redis,
		Decisions:    decisions,
		Logger:       log,
	})
	server := api.NewServer(cfg.Server, handlers, log)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- err
		}
	}()
	zapLog.Info("HTTP server listening",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	// --- Init Zeebe Worker with retry ---
	var zeebeClient *camunda.Client
	var zeebeWorker *camunda.Worker
	if cfg.Camunda.Enabled && config.IsWorkerEnabled(cfg, camunda.TaskType) {
		err = retryWithBackoff(func() error {
			var err error
			zeebeClient, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")

		wcfg := config.GetWorkerConfig(cfg, camunda.TaskType)
		handler := camunda.NewHandler(processor, zeebeClient, config.GetDuration(wcfg.Timeout), log)
		zeebeWorker = camunda.NewWorker(zeebeClient, handler, wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), log)
		zapLog.Info("Zeebe worker registered", zap.String("taskType", camunda.TaskType))
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received, draining...")
	case err := <-serverErrCh:
		zapLog.Error("HTTP server failed", zap.Error(err))
	}

	stopWatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	if zeebeWorker != nil {
		zeebeWorker.Stop()
	}
	if zeebeClient != nil {
		if err := zeebeClient.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			zapLog.Error("Error closing Kafka publisher", zap.Error(err))
		}
	}

	zapLog.Info("Loan underwriter stopped gracefully")
}
