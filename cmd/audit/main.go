// Command audit follows the company event topic and writes every event to
// the log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gartstein/directory/internal/company/config"
	"github.com/gartstein/directory/internal/company/events"
)

func main() {
	configPath := flag.String("config", "internal/company/config/config.yaml", "path to the YAML config file")
	group := flag.String("group", "company-audit", "Kafka consumer group")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS must be set")
	}

	consumer := events.NewConsumer(cfg.KafkaBrokers, *group, cfg.Topic, logger)
	defer consumer.Close()
	consumer.RegisterHandler(events.LogHandler(logger))

	logger.Info("auditing company events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.Topic))
	if err := consumer.Run(ctx); err != nil {
		logger.Error("consumer stopped", zap.Error(err))
	}
}
