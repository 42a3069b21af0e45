package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Farewatch/internal/config/farewatch"
	"github.com/NordCoder/Farewatch/internal/repository/kafka"
)

// Creates the deal events topic (and any extra KAFKA_TOPICS) before the
// service starts publishing.
func main() {
	configPath := flag.String("config", "config/farewatch.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	brokers := cfg.Notify.Kafka.Brokers
	if b := os.Getenv("KAFKA_BROKER"); b != "" {
		brokers = []string{b}
	}
	topics := append([]string{cfg.Notify.Kafka.Topic}, strings.Split(os.Getenv("KAFKA_TOPICS"), ",")...)
	partitions := envInt("KAFKA_PARTITIONS", 1)
	rf := envInt("KAFKA_RF", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		spec := kafka.TopicSpec{Name: t, NumPartitions: partitions, ReplicationFactor: rf, MaxWait: 30 * time.Second}
		if err := kafka.EnsureTopic(ctx, brokers, spec, logger); err != nil {
			logger.Fatal("ensure topic", zap.String("topic", t), zap.Error(err))
		}
		logger.Info("topic ready", zap.String("topic", t))
	}
	logger.Info("kafka-init ok")
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
