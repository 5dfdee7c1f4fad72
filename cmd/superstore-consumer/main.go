// Command superstore-consumer runs the super-store pipeline: a supervisor
// forks N worker processes, each hosting M super-store-handler consumers
// that PGP-encrypt and gzip allow-listed payloads into object storage.
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
	"github.com/ascendops/inquiry-pipeline/pkg/crypto"
	"github.com/ascendops/inquiry-pipeline/pkg/kafka"
	"github.com/ascendops/inquiry-pipeline/pkg/objectstore"
	"github.com/ascendops/inquiry-pipeline/pkg/pipelines"
	"github.com/ascendops/inquiry-pipeline/pkg/supervisor"
)

func main() {
	configPath := flag.String("config", "config.hcl", "path to configuration file")
	mode := flag.String("mode", "supervisor", `"supervisor" forks worker processes; "worker" runs consumers in this process`)
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "superstore-consumer",
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
		logger.Error("superstore-consumer failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("superstore-consumer stopped gracefully")
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

// runWorker bootstraps the shared object-store client and PGP encryptor,
// then hosts ConsumersPerWorker super-store consumers cooperatively in this
// process.
func runWorker(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	if cfg.Kafka == nil || cfg.ObjectStore == nil || cfg.SuperStore == nil || cfg.Supervisor == nil {
		return fmt.Errorf("kafka, object_store, super_store, and supervisor configuration blocks are all required")
	}

	bootstrap := config.FileBootstrap{}

	pgpKey, err := bootstrap.PGPPublicKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pgp public key: %w", err)
	}
	pgp, err := crypto.NewPGPEncryptor(pgpKey)
	if err != nil {
		return fmt.Errorf("failed to build pgp encryptor: %w", err)
	}

	store, err := objectstore.New(ctx, objectstore.Config{
		Bucket:         cfg.ObjectStore.Bucket,
		Region:         cfg.ObjectStore.Region,
		Endpoint:       cfg.ObjectStore.Endpoint,
		KMSKeyID:       cfg.ObjectStore.KMSKeyID,
		MaxConnections: cfg.ObjectStore.MaxConnections,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to build object store client: %w", err)
	}

	allowlist := objectstore.NewAllowlist(store, cfg.ObjectStore.ConfigObjectKey)
	handler := pipelines.NewSuperStoreHandler(store, allowlist, pgp, cfg.ObjectStore.BasePrefix, logger)

	transport := kafka.TransportModeFromEnv()
	var tlsMaterial kafka.TLSMaterial
	if transport == kafka.TransportSecure {
		ca, cert, key, passphrase, err := bootstrap.TLSMaterial(ctx)
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
