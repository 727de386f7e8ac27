package di

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	domrepo "drreport/internal/domain/repository"
	"drreport/internal/handler/api"
	internalrepo "drreport/internal/repository"
	"drreport/internal/service/provider"
	"drreport/internal/service/registry"
	"drreport/internal/service/report"
	"drreport/internal/usecase"
	"drreport/pkg/cache"
	pkgch "drreport/pkg/clickhouse"
	"drreport/pkg/config"
	xhttp "drreport/pkg/http"
	pkgkafka "drreport/pkg/kafka"
	applogger "drreport/pkg/logger"
	"drreport/pkg/metrics"
	"drreport/pkg/queue"
	"drreport/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{Level: "info", Format: "json", Output: "stdout"}
	if cfg.Environment == "development" {
		lc.Level = "debug"
		lc.Format = "console"
	}
	l, err := applogger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS drreport",
		`CREATE TABLE IF NOT EXISTS drreport.tickers (
			canonical_id String,
			display_name String,
			active UInt8,
			updated_at DateTime DEFAULT now()
		) ENGINE=ReplacingMergeTree(updated_at) ORDER BY canonical_id`,
		`CREATE TABLE IF NOT EXISTS drreport.symbol_aliases (
			canonical_id String,
			symbol_type String,
			symbol_value String,
			updated_at DateTime DEFAULT now()
		) ENGINE=ReplacingMergeTree(updated_at) ORDER BY (canonical_id, symbol_type)`,
		`CREATE TABLE IF NOT EXISTS drreport.raw_prices (
			provider_symbol String,
			trading_date Date,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			fetched_at DateTime DEFAULT now()
		) ENGINE=ReplacingMergeTree(fetched_at) ORDER BY (provider_symbol, trading_date)`,
		`CREATE TABLE IF NOT EXISTS drreport.report_artifacts (
			canonical_id String,
			business_date Date,
			status String,
			payload String,
			reason String,
			reserved_at DateTime,
			computed_at DateTime
		) ENGINE=ReplacingMergeTree(computed_at) ORDER BY (canonical_id, business_date)`,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRedisCache creates the shared Redis client wrapper. Returns nil when
// no configured component needs Redis.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if cfg.Store.Backend != "redis" && !cfg.Notify.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideArtifactStore selects the artifact store backend.
func ProvideArtifactStore(cfg *config.Config, rc *cache.RedisCache) (domrepo.ArtifactStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("artifact store: redis backend selected but no redis client")
		}
		return internalrepo.NewRedisArtifactStore(rc.Client(),
			internalrepo.WithPendingTTL(cfg.Store.PendingTTL),
			internalrepo.WithRetainFor(cfg.Store.RetainFor),
		), nil
	case "memory":
		return internalrepo.NewMemoryArtifactStore(cfg.Store.PendingTTL), nil
	default:
		return nil, fmt.Errorf("artifact store: unknown backend %q", cfg.Store.Backend)
	}
}

// ProvidePriceStore creates the raw price store and prepares its table.
func ProvidePriceStore(chClient *pkgch.Client, l *applogger.Logger) (domrepo.RawPriceStore, error) {
	store := internalrepo.NewCHPriceStore(chClient)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("price store init: %w", err)
	}
	return store, nil
}

// ProvideArtifactArchive creates the ClickHouse artifact archive.
func ProvideArtifactArchive(chClient *pkgch.Client) domrepo.ArtifactArchive {
	return internalrepo.NewCHArtifactArchive(chClient)
}

// ProvideSymbolRegistry loads the symbol registry from ClickHouse.
func ProvideSymbolRegistry(chClient *pkgch.Client, l *applogger.Logger) (domrepo.SymbolRegistry, error) {
	reg := registry.New(internalrepo.NewCHRegistrySource(chClient), l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := reg.Reload(ctx); err != nil {
		return nil, fmt.Errorf("registry load: %w", err)
	}
	return reg, nil
}

// ProvidePriceProvider creates the market data provider client.
func ProvidePriceProvider(cfg *config.Config, l *applogger.Logger) domrepo.PriceProvider {
	return provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey,
		provider.WithTimeout(cfg.Provider.Timeout),
		provider.WithMaxRPS(cfg.Provider.MaxRPS),
		provider.WithLogger(l),
	)
}

// ProvideReportGenerator creates the report service client.
func ProvideReportGenerator(cfg *config.Config) domrepo.ReportGenerator {
	return report.NewClient(cfg.Report.ServiceURL,
		report.WithTimeout(cfg.Report.Timeout),
		report.WithModel(cfg.Report.Model),
	)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideJobDispatcher creates the Kafka job dispatcher.
func ProvideJobDispatcher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.JobDispatcher {
	return internalrepo.NewKafkaDispatcher(producer, cfg.Kafka.ReportsTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideHub creates the WebSocket broadcast hub.
func ProvideHub(l *applogger.Logger) *api.Hub {
	return api.NewHub(l)
}

// ProvideNotifier fans report-ready events out to WebSocket clients and, when
// enabled, to the Redis webhook queue.
func ProvideNotifier(cfg *config.Config, l *applogger.Logger, rc *cache.RedisCache, hub *api.Hub) domrepo.Notifier {
	var pub queue.QueueService
	if cfg.Notify.Enabled && rc != nil {
		pub = queue.NewRedisPublisher(l, rc.Client())
	}
	return usecase.NewQueueNotifier(pub, hub)
}

// ProvideNotifyQueue creates the webhook delivery consumer. Returns nil when
// webhook notifications are disabled.
func ProvideNotifyQueue(cfg *config.Config, l *applogger.Logger, rc *cache.RedisCache) *queue.RedisQueue {
	if !cfg.Notify.Enabled || rc == nil {
		return nil
	}
	qc := &queue.QueueConfig{
		Workers:    cfg.Notify.Workers,
		QueueSize:  256,
		RetryLimit: cfg.Notify.RetryLimit,
		RetryDelay: 30 * time.Second,
	}
	jobs := []queue.Job{usecase.NewWebhookNotifyJob(cfg.Notify.WebhookURLs, l)}
	return queue.NewRedisConsumer(l, qc, rc.Client(), jobs)
}

// ProvideFetcher creates the market data fetcher.
func ProvideFetcher(
	reg domrepo.SymbolRegistry,
	prov domrepo.PriceProvider,
	prices domrepo.RawPriceStore,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Fetcher {
	return usecase.NewFetcher(reg, prov, prices, m, l, cfg.Provider.HistoryDays, cfg.Provider.Timeout)
}

// ProvideReportWorker creates the report computation worker.
func ProvideReportWorker(
	reg domrepo.SymbolRegistry,
	store domrepo.ArtifactStore,
	prices domrepo.RawPriceStore,
	gen domrepo.ReportGenerator,
	archive domrepo.ArtifactArchive,
	notifier domrepo.Notifier,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ReportWorker {
	return usecase.NewReportWorker(reg, store, prices, gen, archive, notifier, m, l,
		cfg.Provider.HistoryDays, cfg.Report.Timeout)
}

// ProvideOrchestrator creates the daily pipeline orchestrator.
func ProvideOrchestrator(
	reg domrepo.SymbolRegistry,
	fetcher *usecase.Fetcher,
	dispatcher domrepo.JobDispatcher,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.Orchestrator {
	return usecase.NewOrchestrator(reg, fetcher, dispatcher, m, l, cfg.MarketLocation())
}

// ProvideKafkaReportsHandler registers the handler for the reports topic.
func ProvideKafkaReportsHandler(worker *usecase.ReportWorker, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaReportsHandler {
	return usecase.NewKafkaReportsHandler(cfg.Kafka.ReportsTopic, worker, m)
}

// ProvideReadCache creates the read-path cache: layered over Redis when a
// Redis client exists, in-process only otherwise.
func ProvideReadCache(rc *cache.RedisCache) cache.Service {
	if rc != nil {
		return cache.NewLayeredCache(rc)
	}
	return cache.NewMemoryCache()
}

// ProvideReportsHandler creates the HTTP reports handler.
func ProvideReportsHandler(
	l *applogger.Logger,
	reg domrepo.SymbolRegistry,
	store domrepo.ArtifactStore,
	orch *usecase.Orchestrator,
	m domrepo.Metrics,
	readC cache.Service,
	cfg *config.Config,
) *api.ReportsEchoHandler {
	return api.NewReportsEchoHandler(l, reg, store, orch, m, readC, cfg.Report.CacheTTL, cfg.MarketLocation())
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	m domrepo.Metrics,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaReportsHandler,
	orch *usecase.Orchestrator,
	reports *api.ReportsEchoHandler,
	hub *api.Hub,
	notifyQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	rc *cache.RedisCache,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(consumerObservabilityHook(l, m))
	}
	app := server.New(cfg, l, consumer, kh, orch, notifyQueue, chClient, producer, rc)
	app.SetHTTPHandler(xhttp.Handlers{reports, hub})
	return app
}

// consumerObservabilityHook times each handled message and logs failures
// before they reach retry or DLQ handling.
func consumerObservabilityHook(l *applogger.Logger, m domrepo.Metrics) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
		After: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
			if start, ok := pkgkafka.StartTimeFrom(ctx); ok {
				m.RecordLatency("consume_"+topic, time.Since(start).Seconds())
			}
		},
		Err: func(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
			l.Error("consumer message failed",
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err),
			)
		},
	}
}
