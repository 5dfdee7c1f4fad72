// Package kafka implements the batch consumer engine: a per-worker Kafka
// consumer with manual offset commit discipline, shared by the billing,
// super-store, and audit-log pipelines.
package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// TransportMode selects how the consumer dials the broker.
type TransportMode string

const (
	TransportSecure        TransportMode = "SSL"
	TransportInsecureLocal TransportMode = "local"
)

// TLSMaterial carries the mutual-TLS material used in TransportSecure
// mode. Retrieval happens during process bootstrap; callers provide the
// already-fetched bytes.
type TLSMaterial struct {
	CABundle      []byte
	ClientCert    []byte
	ClientKey     []byte
	KeyPassphrase string
}

// Config configures a Consumer.
type Config struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string

	Transport TransportMode
	TLS       TLSMaterial

	// MaxPollRecords bounds how many records are handed to the handler in
	// one call; a larger (partition, poll) bucket is split into consecutive
	// calls. Default 50.
	MaxPollRecords int

	// PollTimeout bounds each broker poll. Default 10s.
	PollTimeout time.Duration

	// ConsumeFromStart resets to the earliest offset instead of the latest;
	// useful for integration tests.
	ConsumeFromStart bool

	Logger hclog.Logger
}

// Handler processes one partition's worth of records from a single poll.
// Returning nil commits the batch's offset; returning an error leaves the
// offset untouched so the broker redelivers on the next poll.
type Handler func(ctx context.Context, records []*kgo.Record) error

// Consumer is a single consumer instance: one Kafka client driving one
// handler.
type Consumer struct {
	client         *kgo.Client
	handler        Handler
	maxPollRecords int
	pollTimeout    time.Duration
	logger         hclog.Logger
	stopCh         chan struct{}
}

// New builds a Consumer. The handler is invoked once per batch of at most
// MaxPollRecords records taken in order from one (partition, poll) bucket,
// never across partitions.
func New(cfg Config, handler Handler) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if cfg.ConsumerGroup == "" {
		return nil, fmt.Errorf("consumer group is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.MaxPollRecords == 0 {
		cfg.MaxPollRecords = 50
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 10 * time.Second
	}

	offset := kgo.NewOffset().AtEnd()
	if cfg.ConsumeFromStart {
		offset = kgo.NewOffset().AtStart()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(offset),
		kgo.SessionTimeout(10 * time.Second),
		kgo.RebalanceTimeout(30 * time.Second),
		kgo.DisableAutoCommit(),
		kgo.FetchMaxWait(500 * time.Millisecond),
		kgo.FetchMinBytes(1),
		kgo.FetchMaxBytes(5 << 20),
	}

	if cfg.Transport == TransportSecure {
		tlsCfg, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to build tls config: %w", err)
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return &Consumer{
		client:         client,
		handler:        handler,
		maxPollRecords: cfg.MaxPollRecords,
		pollTimeout:    cfg.PollTimeout,
		logger:         cfg.Logger.Named("kafka-consumer"),
		stopCh:         make(chan struct{}),
	}, nil
}

// buildTLSConfig assembles mutual-TLS config from caller-supplied PEM
// material. A passphrase-protected private key is decrypted once here, at
// startup.
func buildTLSConfig(mat TLSMaterial) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(mat.CABundle) {
		return nil, fmt.Errorf("no certificates found in CA bundle")
	}

	keyPEM, err := decryptKeyPEM(mat.ClientKey, mat.KeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt client key: %w", err)
	}

	cert, err := tls.X509KeyPair(mat.ClientCert, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to load client keypair: %w", err)
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// decryptKeyPEM returns keyPEM decrypted with passphrase when the PEM block
// carries legacy PEM encryption headers, and keyPEM unchanged otherwise.
func decryptKeyPEM(keyPEM []byte, passphrase string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in client key")
	}
	//nolint:staticcheck // legacy encrypted PEM is what the broker deployment hands out
	if !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}
	if passphrase == "" {
		return nil, fmt.Errorf("client key is encrypted but no passphrase was provided")
	}
	//nolint:staticcheck
	der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}

// TransportModeFromEnv reads SECURITY_PROTOCOL the way the engine's
// deployment environment does, defaulting to the insecure local mode.
func TransportModeFromEnv() TransportMode {
	if os.Getenv("SECURITY_PROTOCOL") == string(TransportSecure) {
		return TransportSecure
	}
	return TransportInsecureLocal
}

// Start runs the poll loop until ctx is cancelled or Stop is called.
// Cancellation is cooperative: it is only observed at poll boundaries, so
// an in-flight batch is allowed to finish and commit.
func (c *Consumer) Start(ctx context.Context) error {
	group, _ := c.client.GroupMetadata()
	c.logger.Info("starting kafka consumer", "consumer_group", group)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped by context")
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("consumer stopped")
			return nil
		default:
		}

		pollCtx, cancel := context.WithTimeout(ctx, c.pollTimeout)
		fetches := c.client.PollFetches(pollCtx)
		cancel()

		for _, err := range fetches.Errors() {
			// The bounded poll timeout surfaces as a context error on every
			// idle cycle; only real broker errors are worth logging.
			if errors.Is(err.Err, context.DeadlineExceeded) || errors.Is(err.Err, context.Canceled) {
				continue
			}
			c.logger.Error("kafka fetch error", "topic", err.Topic, "partition", err.Partition, "error", err.Err)
		}

		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			records := p.Records
			for len(records) > 0 {
				n := c.maxPollRecords
				if n > len(records) {
					n = len(records)
				}
				batch := records[:n]
				records = records[n:]
				if !c.dispatch(ctx, batch) {
					// The failed batch's offset was not committed and the
					// consume position was rewound; the rest of this
					// partition bucket redelivers with it on a later poll.
					return
				}
			}
		})
	}
}

// dispatch invokes the handler for one bounded batch. On success it commits
// the partition offset past the batch and reports true; on handler failure
// it rewinds the partition's consume position to the batch's first record so
// the next poll redelivers it, and reports false.
func (c *Consumer) dispatch(ctx context.Context, batch []*kgo.Record) bool {
	if len(batch) == 0 {
		return true
	}

	first := batch[0]
	last := batch[len(batch)-1]

	if err := c.handler(ctx, batch); err != nil {
		c.logger.Error("handler failed, offset not committed",
			"topic", first.Topic,
			"partition", first.Partition,
			"first_offset", first.Offset,
			"last_offset", last.Offset,
			"error", err,
		)
		c.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
			first.Topic: {
				first.Partition: {Epoch: first.LeaderEpoch, Offset: first.Offset},
			},
		})
		return false
	}

	if err := c.client.CommitRecords(ctx, last); err != nil {
		c.logger.Warn("failed to commit kafka offset",
			"topic", last.Topic,
			"partition", last.Partition,
			"offset", last.Offset,
			"error", err,
		)
	}
	return true
}

// Stop gracefully stops the consumer.
func (c *Consumer) Stop() {
	select {
	case <-c.stopCh:
		return
	default:
		close(c.stopCh)
		c.client.Close()
	}
}
