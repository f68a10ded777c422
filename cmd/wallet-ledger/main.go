package main

import (
	// Go Internal Packages
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	// Local Packages
	api "wallet-ledger/api"
	config "wallet-ledger/config"
	helpers "wallet-ledger/helpers"
	kafka "wallet-ledger/kafka"
	metrics "wallet-ledger/metrics"
	notifications "wallet-ledger/notifications"
	memory "wallet-ledger/repositories/memory"
	mongodb "wallet-ledger/repositories/mongodb"
	postgres "wallet-ledger/repositories/postgres"
	redis "wallet-ledger/repositories/redis"
	processors "wallet-ledger/services/processors"
	wallet "wallet-ledger/services/wallet"

	// External Packages
	"github.com/alecthomas/kingpin/v2"
	"github.com/gin-gonic/gin"
	_ "github.com/jsternberg/zap-logfmt"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
)

// LoadSecrets Loads the secret variables and overrides the config
func LoadSecrets(k config.Config) config.Config {
	if mongoURI := os.Getenv("MONGO_URI"); mongoURI != "" {
		k.Mongo.URI = mongoURI
	}
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		k.Postgres.URL = databaseURL
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		k.Redis.Password = redisPassword
	}
	if smtpPassword := os.Getenv("SMTP_PASSWORD"); smtpPassword != "" {
		k.Notifier.SMTP.Password = smtpPassword
	}
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		k.Kafka.Brokers = strings.Split(kafkaBrokers, ",")
	}
	if isProdMode := os.Getenv("IS_PROD_MODE"); isProdMode != "" {
		k.IsProdMode = isProdMode == "true"
	}
	return k
}

// LoadConfig loads the default configuration and overrides it with the config file
// specified by the path defined in the config flag
func LoadConfig() *koanf.Koanf {
	configPathMsg := "Path to the application config file"
	configPath := kingpin.Flag("config", configPathMsg).Short('c').Default("config.yml").String()

	kingpin.Parse()
	k := koanf.New(".")
	_ = k.Load(rawbytes.Provider(config.DefaultConfig), yaml.Parser())
	if *configPath != "" {
		_ = k.Load(file.Provider(*configPath), yaml.Parser())
	}
	return k
}

// OpenStore connects the configured ledger backend. The returned func releases
// its connections.
func OpenStore(ctx context.Context, conf config.Config) (wallet.Store, api.HealthCheck, func(), error) {
	switch conf.Store.Driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, conf.Postgres.URL, conf.Postgres.MaxConns)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return postgres.NewLedgerRepository(pool), pool.Ping, pool.Close, nil

	case "memory":
		return memory.NewLedgerStore(), nil, func() {}, nil

	default:
		client, err := mongodb.Connect(ctx, conf.Mongo.URI)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := mongodb.NewLedgerRepository(client, conf.Mongo.Database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, nil, err
		}
		health := func(ctx context.Context) error { return client.Ping(ctx, nil) }
		closer := func() { _ = client.Disconnect(context.Background()) }
		return repo, health, closer, nil
	}
}

func main() {
	k := LoadConfig()
	appKonf := config.Config{}

	// Unmarshalling config into struct
	err := k.Unmarshal("", &appKonf)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Update and Validate config before starting the server
	updatedKonf := LoadSecrets(appKonf)
	if err = updatedKonf.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if !updatedKonf.IsProdMode {
		helpers.PrintStruct(updatedKonf.Redacted())
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "logfmt"
	_ = cfg.Level.UnmarshalText([]byte(updatedKonf.Logger.Level))
	cfg.InitialFields = make(map[string]any)
	cfg.InitialFields["host"], _ = os.Hostname()
	cfg.InitialFields["service"] = updatedKonf.Application
	cfg.OutputPaths = []string{"stdout"}
	logger, _ := cfg.Build()
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, health, closeStore, err := OpenStore(ctx, updatedKonf)
	if err != nil {
		logger.Fatal("cannot open ledger store", zap.String("driver", updatedKonf.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	svc := wallet.NewService(logger, store, wallet.Config{
		SessionTTL:         updatedKonf.Payments.SessionTTL,
		MaxConfirmAttempts: updatedKonf.Payments.MaxConfirmAttempts,
		NotifyTimeout:      updatedKonf.Notifier.Timeout,
	})
	svc.Metrics = metrics.NewMetrics(prometheus.DefaultRegisterer)
	metricsHandlers := map[string]http.Handler{"/metrics": promhttp.Handler()}

	// Redis Connection
	var dlQueue *redis.DeadLetterQueue
	if updatedKonf.Redis.Enabled {
		redisClient, err := redis.Connect(ctx, updatedKonf.Redis.URI, updatedKonf.Redis.Password)
		if err != nil {
			logger.Fatal("cannot create redis client", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		svc.Limiter = redis.NewAttemptCounter(redisClient, updatedKonf.Payments.SessionTTL)
		dlQueue = redis.NewDeadLetterQueue(redisClient, logger)
	} else {
		svc.Limiter = memory.NewAttemptCounter(updatedKonf.Payments.SessionTTL)
	}

	if updatedKonf.Notifier.Enabled {
		svc.Notifier = notifications.NewEmailNotifier(updatedKonf.Notifier.SMTP, updatedKonf.Notifier.Timeout, logger)
	} else {
		svc.Notifier = notifications.NewLogNotifier(logger)
	}

	if updatedKonf.Kafka.Publish {
		eventMetrics := kprom.NewMetrics("wallet_events")
		publisher, err := kafka.NewEventPublisher(updatedKonf.Kafka.Brokers, updatedKonf.Kafka.EventsTopic, logger, eventMetrics)
		if err != nil {
			logger.Fatal("cannot create ledger event publisher", zap.Error(err))
		}
		defer publisher.Close(context.Background())
		svc.Publisher = publisher
		metricsHandlers["/metrics/events"] = eventMetrics.Handler()
	}

	svc.StartExpirySweeper(ctx, updatedKonf.Payments.SweepInterval, updatedKonf.Payments.SweepBatchSize)

	if updatedKonf.Kafka.Consume {
		topupMetrics := kprom.NewMetrics("wallet_topups")
		conf := &kafka.ConsumerConfig{
			Brokers:        updatedKonf.Kafka.Brokers,
			Name:           updatedKonf.Kafka.ConsumerName,
			Topic:          updatedKonf.Kafka.Topic,
			RecordsPerPoll: updatedKonf.Kafka.RecordsPerPoll,
		}
		topupProcessor := processors.NewTopupProcessor(logger, svc, dlQueue, svc.Metrics)
		topupConsumer, err := kafka.NewTopupConsumer(conf, logger, topupProcessor, topupMetrics)
		if err != nil {
			logger.Fatal("cannot create top-up consumer", zap.Error(err))
		}
		metricsHandlers["/metrics/topups"] = topupMetrics.Handler()

		go func() {
			if err := topupConsumer.Poll(ctx); err != nil {
				logger.Error("top-up consumer stopped", zap.Error(err))
				stop()
			}
		}()
	}

	if updatedKonf.IsProdMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandler(svc, health), logger, metricsHandlers)
	server := &http.Server{
		Addr:         updatedKonf.HTTP.Address,
		Handler:      router,
		ReadTimeout:  updatedKonf.HTTP.ReadTimeout,
		WriteTimeout: updatedKonf.HTTP.WriteTimeout,
	}

	go func() {
		logger.Info("http server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), updatedKonf.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
}
