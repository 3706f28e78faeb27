package di

import (
	"context"
	"fmt"
	"time"

	"LutherTerminal/internal/domain/repository"
	domsvc "LutherTerminal/internal/domain/service"
	"LutherTerminal/internal/handler/api"
	internalrepo "LutherTerminal/internal/repository"
	icache "LutherTerminal/internal/service/cache"
	"LutherTerminal/internal/service/ratelimit"
	"LutherTerminal/internal/services/forest"
	"LutherTerminal/internal/services/prediction"
	"LutherTerminal/internal/usecase"
	pkgch "LutherTerminal/pkg/clickhouse"
	"LutherTerminal/pkg/config"
	xhttp "LutherTerminal/pkg/http"
	pkgkafka "LutherTerminal/pkg/kafka"
	applogger "LutherTerminal/pkg/logger"
	"LutherTerminal/pkg/metrics"
	"LutherTerminal/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the bar tables exist.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if !cfg.ClickHouse.InitSchema {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.BarSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideBarStore creates the ClickHouse-backed bar store.
func ProvideBarStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.BarStore {
	s := internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database)
	s.SetLogger(l.With(applogger.String("component", "bar_store")))
	return s
}

// ProvidePublisher creates the Kafka prediction publisher, or a no-op one when Kafka is disabled.
func ProvidePublisher(cfg *config.Config) (repository.PredictionPublisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NoopPublisher{}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithTopic(cfg.Kafka.Topic),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaPredictionPublisher(producer), nil
}

// ProvideCache creates the prediction cache selected by cache.type; nil for "none".
func ProvideCache(cfg *config.Config) (icache.BytesCache, error) {
	switch cfg.Cache.Type {
	case "redis":
		rc := icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   "luther:",
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rc.Ping(ctx); err != nil {
			_ = rc.Close()
			return nil, err
		}
		return rc, nil
	case "none":
		return nil, nil
	default:
		return icache.NewTTLCache(), nil
	}
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePredictorConfig maps the predictor section onto the core configuration.
func ProvidePredictorConfig(cfg *config.Config) prediction.Config {
	p := cfg.Predictor
	return prediction.Config{
		Forest: forest.Config{
			NEstimators:     p.Trees,
			MaxDepth:        p.MaxDepth,
			MinSamplesSplit: p.MinSamplesSplit,
			MinSamplesLeaf:  p.MinSamplesLeaf,
			Seed:            p.Seed,
			Bootstrap:       true,
			Workers:         p.Workers,
		},
		MinTrainingRows: p.MinTrainingRows,
		TestFraction:    p.TestFraction,
		DefaultHorizon:  p.DefaultHorizon,
		ConfidenceMode:  p.Confidence,
		ConfidenceFloor: p.ConfidenceFloor,
		ConfidenceCeil:  p.ConfidenceCeil,
	}
}

// ProvidePredictorFactory builds one fresh predictor per registry entry.
func ProvidePredictorFactory(pc prediction.Config, l *applogger.Logger) domsvc.PredictorFactory {
	pl := l.With(applogger.String("component", "predictor"))
	return func(symbol string) domsvc.PricePredictor {
		p := prediction.NewPredictor(symbol, pc)
		p.SetLogger(pl)
		return p
	}
}

// ProvidePredictionUseCase wires the registry with its cache, publisher and metrics.
func ProvidePredictionUseCase(
	store repository.BarStore,
	factory domsvc.PredictorFactory,
	cache icache.BytesCache,
	pub repository.PredictionPublisher,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.PredictionUseCase {
	return usecase.NewPredictionUseCase(store, factory,
		usecase.WithCache(cache, cfg.Cache.PredictionTTL),
		usecase.WithPublisher(pub),
		usecase.WithMetrics(m),
		usecase.WithLogger(l.With(applogger.String("component", "predictions"))),
		usecase.WithHistory(cfg.Predictor.HistoryBars),
	)
}

func ProvideWatchlistUseCase(preds *usecase.PredictionUseCase, pub repository.PredictionPublisher, cfg *config.Config) *usecase.WatchlistUseCase {
	return usecase.NewWatchlistUseCase(preds, pub, cfg.Watchlist.Concurrency, cfg.Watchlist.Timeout)
}

func ProvideFeaturesUseCase(store repository.BarStore) *usecase.FeaturesUseCase {
	return usecase.NewFeaturesUseCase(store)
}

// ProvideHTTPHandler registers the prediction API.
func ProvideHTTPHandler(
	l *applogger.Logger,
	preds *usecase.PredictionUseCase,
	wl *usecase.WatchlistUseCase,
	feats *usecase.FeaturesUseCase,
	cfg *config.Config,
) xhttp.Handler {
	return api.NewPredictionsEchoHandler(l, preds, wl, feats, ratelimit.New(), api.TrainLimit{
		Burst:     cfg.RateLimit.TrainBurst,
		PerSecond: cfg.RateLimit.TrainPerSecond,
	})
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	h xhttp.Handler,
	preds *usecase.PredictionUseCase,
	chClient *pkgch.Client,
	pub repository.PredictionPublisher,
	cache icache.BytesCache,
) *server.App {
	app := server.New(cfg, l, h, chClient, pub)
	app.SetWarmup(preds)
	if closer, ok := cache.(interface{ Close() error }); ok {
		app.AddCloser("redis", closer)
	}
	return app
}
