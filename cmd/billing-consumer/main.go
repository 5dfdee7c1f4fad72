// Command billing-consumer runs the billing pipeline: a supervisor forks N
// worker processes, each hosting M billing-handler consumers that encode
// and bulk-insert billing records.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/ascendops/inquiry-pipeline/internal/config"
	"github.com/ascendops/inquiry-pipeline/pkg/billing"
	"github.com/ascendops/inquiry-pipeline/pkg/crypto"
	"github.com/ascendops/inquiry-pipeline/pkg/kafka"
	"github.com/ascendops/inquiry-pipeline/pkg/pipelines"
	"github.com/ascendops/inquiry-pipeline/pkg/relational"
	"github.com/ascendops/inquiry-pipeline/pkg/supervisor"
)

func main() {
	configPath := flag.String("config", "config.hcl", "path to configuration file")
	mode := flag.String("mode", "supervisor", `"supervisor" forks worker processes; "worker" runs consumers in this process`)
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "billing-consumer",
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
		logger.Error("billing-consumer failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("billing-consumer stopped gracefully")
}

// runSupervisor forks WorkerProcesses copies of this binary in
// "-mode worker", and restarts the generation if every worker exits.
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

// runWorker bootstraps the shared relational writer and crypto pool, then
// hosts ConsumersPerWorker billing consumers cooperatively in this process.
func runWorker(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	if cfg.Kafka == nil || cfg.Relational == nil || cfg.Crypto == nil || cfg.Billing == nil || cfg.Supervisor == nil {
		return fmt.Errorf("kafka, relational, crypto, billing, and supervisor configuration blocks are all required")
	}

	bootstrap := config.FileBootstrap{}

	cryptoKey, err := bootstrap.CryptoKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch crypto key: %w", err)
	}
	cryptoPool, err := crypto.NewPool(cryptoKey, cfg.Crypto.PoolSize, logger)
	if err != nil {
		return fmt.Errorf("failed to build crypto pool: %w", err)
	}
	defer cryptoPool.Close()

	user, password, err := bootstrap.RelationalCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch relational credentials: %w", err)
	}

	numConsumers := cfg.Supervisor.ConsumersPerWorker
	db, err := relational.Connect(relational.Config{
		Host:            cfg.Relational.Host,
		Port:            cfg.Relational.Port,
		User:            user,
		Password:        password,
		DBName:          cfg.Relational.DBName,
		SSLMode:         cfg.Relational.SSLMode,
		PoolSize:        numConsumers,
		RecycleInterval: time.Duration(cfg.Relational.ConnRecycleSeconds) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to relational store: %w", err)
	}
	writer := relational.NewWriter(db, logger)

	literals := billing.Literals{
		OwningSubsystem:  cfg.Billing.OwningSubsystem,
		CallingSubsystem: cfg.Billing.CallingSubsystem,
	}

	handler := pipelines.NewBillingHandler(writer, cryptoPool, literals, cfg.Relational.SummaryTable, cfg.Relational.ProductCodesTable, logger)

	transport := kafka.TransportModeFromEnv()
	var tlsMaterial kafka.TLSMaterial
	if transport == kafka.TransportSecure {
		ca, cert, key, passphrase, err := bootstrap.TLSMaterial(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch tls material: %w", err)
		}
		tlsMaterial = kafka.TLSMaterial{CABundle: ca, ClientCert: cert, ClientKey: key, KeyPassphrase: passphrase}
	}

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
