// Command auditlog-consumer runs the audit-log / regression-recording
// pipeline: a supervisor forks N worker processes, each hosting M
// audit-log-handler consumers that upsert testcase snapshots into the
// search index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"

	"github.com/ascendops/inquiry-pipeline/internal/config"
	"github.com/ascendops/inquiry-pipeline/pkg/kafka"
	"github.com/ascendops/inquiry-pipeline/pkg/pipelines"
	"github.com/ascendops/inquiry-pipeline/pkg/searchindex"
	"github.com/ascendops/inquiry-pipeline/pkg/supervisor"
)

func main() {
	configPath := flag.String("config", "config.hcl", "path to configuration file")
	mode := flag.String("mode", "supervisor", `"supervisor" forks worker processes; "worker" runs consumers in this process`)
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "auditlog-consumer",
		Level: config.LogLevelFromEnv(),
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	var runErr error
	switch *mode {
	case "worker":
		runErr = runWorker(ctx, cfg, logger)
	default:
		runErr = runSupervisor(ctx, cfg, *configPath, logger)
	}

	if runErr != nil && ctx.Err() == nil {
		logger.Error("auditlog-consumer failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("auditlog-consumer stopped gracefully")
}

func runSupervisor(ctx context.Context, cfg *config.Config, configPath string, logger hclog.Logger) error {
	if cfg.Supervisor == nil {
		return fmt.Errorf("supervisor configuration block is required")
	}
	sup, err := supervisor.New(supervisor.Config{
		WorkerProcesses:    cfg.Supervisor.WorkerProcesses,
		ConsumersPerWorker: cfg.Supervisor.ConsumersPerWorker,
	}, []string{"-config", configPath, "-mode", "worker"}, logger)
	if err != nil {
		return fmt.Errorf("failed to build supervisor: %w", err)
	}
	return sup.Run(ctx)
}

func runWorker(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	if cfg.Kafka == nil || cfg.SearchIndex == nil || cfg.Supervisor == nil {
		return fmt.Errorf("kafka, search_index, and supervisor configuration blocks are all required")
	}

	opts := searchindex.Options{Backend: cfg.SearchIndex.Provider}
	if cfg.SearchIndex.Bleve != nil {
		opts.Bleve = searchindex.BleveConfig{IndexPath: cfg.SearchIndex.Bleve.IndexPath}
	}
	if cfg.SearchIndex.Meilisearch != nil {
		opts.Meilisearch = searchindex.MeilisearchConfig{
			Host:      cfg.SearchIndex.Meilisearch.Host,
			APIKey:    cfg.SearchIndex.Meilisearch.APIKey,
			IndexName: cfg.SearchIndex.Meilisearch.IndexName,
		}
	}
	index, err := searchindex.New(opts)
	if err != nil {
		return fmt.Errorf("failed to build search index provider: %w", err)
	}
	defer index.Close()

	handler := pipelines.NewAuditLogHandler(index, logger)

	transport := kafka.TransportModeFromEnv()
	var tlsMaterial kafka.TLSMaterial
	if transport == kafka.TransportSecure {
		ca, cert, key, passphrase, err := config.FileBootstrap{}.TLSMaterial(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch tls material: %w", err)
		}
		tlsMaterial = kafka.TLSMaterial{CABundle: ca, ClientCert: cert, ClientKey: key, KeyPassphrase: passphrase}
	}

	numConsumers := cfg.Supervisor.ConsumersPerWorker
	consumers := make([]supervisor.StartableConsumer, 0, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consumer, err := kafka.New(kafka.Config{
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.Topic,
			ConsumerGroup:    cfg.Kafka.ConsumerGroup,
			Transport:        transport,
			TLS:              tlsMaterial,
			MaxPollRecords:   cfg.Kafka.MaxPollRecords,
			ConsumeFromStart: cfg.Kafka.ConsumeFromStart,
			Logger:           logger,
		}, handler.Handle)
		if err != nil {
			return fmt.Errorf("failed to build consumer %d: %w", i, err)
		}
		consumers = append(consumers, consumer)
	}

	supervisor.RunWorker(ctx, consumers, logger)
	return nil
}
