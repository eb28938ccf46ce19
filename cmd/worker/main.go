// Worker consumes auth events from Kafka and stores them in the auth_events audit table.
// Set KAFKA_BROKERS, EVENTS_KAFKA_TOPIC, KAFKA_GROUP_ID and DATABASE_URL. The token secrets are not needed.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"xend-auth/backend/internal/audit"
	auditrepo "xend-auth/backend/internal/audit/repository"
	"xend-auth/backend/internal/config"
	"xend-auth/backend/internal/db"
	"xend-auth/backend/internal/logger"
)

func main() {
	cfg, err := config.LoadBase()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(logger.Options{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		zl.Fatal("worker: KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		zl.Info("worker: shutting down")
		cancel()
	}()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("worker: open database", zap.Error(err))
	}
	defer conn.Close()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.EventsKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	zl.Info("worker: consuming auth events",
		zap.String("topic", cfg.EventsKafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
	)
	sink := audit.NewSink(reader, auditrepo.NewPostgresRepository(conn), zl.Named("audit"))
	if err := sink.Run(ctx); err != nil {
		zl.Error("worker: sink stopped", zap.Error(err))
		return
	}
	zl.Info("worker: stopped")
}
