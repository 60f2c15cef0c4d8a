package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"github.com/gartstein/directory/internal/company/auth"
	"github.com/gartstein/directory/internal/company/cache"
	"github.com/gartstein/directory/internal/company/config"
	"github.com/gartstein/directory/internal/company/controller"
	"github.com/gartstein/directory/internal/company/db"
	"github.com/gartstein/directory/internal/company/docstore"
	"github.com/gartstein/directory/internal/company/events"
	"github.com/gartstein/directory/internal/company/handlers"
)

type producer interface {
	controller.EventProducer
	Close()
}

func main() {
	configPath := flag.String("config", "internal/company/config/config.yaml", "path to the YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	repo, err := initRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err), zap.String("store", cfg.Store))
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("failed to close store", zap.Error(err))
		}
	}()

	prod, err := initProducer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
	}
	defer prod.Close()

	companySvc := controller.NewCompanyService(repo, prod, logger)

	rest := handlers.NewRESTHandler(companySvc, logger, cfg.Development())
	mux, err := rest.NewMux()
	if err != nil {
		logger.Fatal("failed to register routes", zap.Error(err))
	}

	var grpcOpts []grpc.ServerOption
	var api http.Handler = mux
	if cfg.JWTSecret != "" {
		verifier := auth.NewVerifier(cfg.JWTSecret)
		grpcOpts = append(grpcOpts, grpc.UnaryInterceptor(auth.UnaryGuard(verifier, handlers.WriteMethods()...)))
		api = verifier.Middleware(mux)
	} else {
		logger.Warn("JWT_SECRET not set, write endpoints are unauthenticated")
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger, grpcOpts...)
	server.RegisterGRPCHandler(handlers.NewCompanyRPC(companySvc, logger))
	server.RegisterHTTPHandler(handlers.Chain(api,
		handlers.RequestID,
		handlers.AccessLog(logger),
		handlers.Recover(logger),
		handlers.CORS(cfg.CORSOrigins),
		handlers.RateLimit(handlers.NewIPRateLimiter(limit, cfg.RateBurst)),
	))

	if err := server.Start(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("Servers stopped properly")
}

// initLogger builds a production logger, or a development one when ENV says so.
func initLogger(cfg *config.Config) *zap.Logger {
	build := zap.NewProduction
	if cfg.Development() {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(eb, ctx)
}

func retry(ctx context.Context, logger *zap.Logger, what string, op func() error) error {
	return backoff.RetryNotify(op, retryPolicy(ctx), func(err error, wait time.Duration) {
		logger.Warn("retrying connection", zap.String("target", what), zap.Error(err), zap.Duration("wait", wait))
	})
}

// initRepository opens the configured store, waiting for it to come up, and
// puts the Redis cache in front when one is configured.
func initRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (controller.Repository, error) {
	var repo controller.Repository
	err := retry(ctx, logger, cfg.Store, func() error {
		var err error
		switch cfg.Store {
		case config.StoreSQLite:
			repo, err = db.NewSQLiteRepository(cfg.SQLitePath, logger)
		case config.StoreMongo:
			repo, err = docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, docstore.WithLogger(logger))
		default:
			repo, err = db.NewRepository(&db.Config{
				Host:     cfg.DBHost,
				Port:     cfg.DBPort,
				User:     cfg.DBUser,
				Password: cfg.DBPassword,
				DBName:   cfg.DBName,
				SSLMode:  cfg.DBSSLMode,
			}, logger)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if cfg.RedisAddr == "" {
		return repo, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := retry(ctx, logger, "redis", func() error { return rdb.Ping(ctx).Err() }); err != nil {
		_ = repo.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis unavailable: %w", err)
	}
	logger.Info("read cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
	return cache.New(repo, rdb, cfg.CacheTTL, logger), nil
}

func initProducer(cfg *config.Config, logger *zap.Logger) (producer, error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("no Kafka brokers configured, company events are discarded")
		return events.NopProducer{}, nil
	}
	return events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
}
