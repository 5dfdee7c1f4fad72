// Package config loads the HCL configuration shared by the ingestion
// pipeline binaries. Most secret material is not stored here: this package
// carries the names of where it is fetched from, and the SecretBootstrap
// boundary that does the fetching. A few fields (the relational user and
// password, the Kafka key passphrase, the Meilisearch API key) do carry
// their secret values as read from the configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the top-level HCL document decoded from the path passed to
// each cmd/*-consumer binary via -config.
type Config struct {
	Kafka       *KafkaConfig       `hcl:"kafka,block"`
	Relational  *RelationalConfig  `hcl:"relational,block"`
	ObjectStore *ObjectStoreConfig `hcl:"object_store,block"`
	SearchIndex *SearchIndexConfig `hcl:"search_index,block"`
	Crypto      *CryptoConfig      `hcl:"crypto,block"`
	Supervisor  *SupervisorConfig  `hcl:"supervisor,block"`
	Billing     *BillingConfig     `hcl:"billing,block"`
	SuperStore  *SuperStoreConfig  `hcl:"super_store,block"`
	AuditLog    *AuditLogConfig    `hcl:"audit_log,block"`
}

// KafkaConfig configures the batch consumer transport.
type KafkaConfig struct {
	Brokers          []string `hcl:"brokers"`
	Topic            string   `hcl:"topic,optional"`
	ConsumerGroup    string   `hcl:"consumer_group,optional"`
	SecurityProtocol string   `hcl:"security_protocol,optional"` // "SSL" or "local"
	CABundlePath     string   `hcl:"ca_bundle_path,optional"`
	ClientCertPath   string   `hcl:"client_cert_path,optional"`
	ClientKeyPath    string   `hcl:"client_key_path,optional"`
	KeyPassphrase    string   `hcl:"key_passphrase,optional"`
	MaxPollRecords   int      `hcl:"max_poll_records,optional"`
	ConsumeFromStart bool     `hcl:"consume_from_start,optional"`
}

// RelationalConfig configures the bulk writer's connection pool.
type RelationalConfig struct {
	Host                string `hcl:"host"`
	Port                int    `hcl:"port,optional"`
	User                string `hcl:"user"`
	Password            string `hcl:"password"`
	DBName              string `hcl:"dbname"`
	SSLMode             string `hcl:"sslmode,optional"`
	SummaryTable        string `hcl:"summary_table,optional"`
	ProductCodesTable   string `hcl:"product_codes_table,optional"`
	ConnRecycleSeconds  int    `hcl:"conn_recycle_seconds,optional"`
	PoolSizePerConsumer int    `hcl:"pool_size_per_consumer,optional"`
}

// ObjectStoreConfig configures the bounded object-store client pool.
type ObjectStoreConfig struct {
	Region          string `hcl:"region,optional"`
	Endpoint        string `hcl:"endpoint,optional"`
	Bucket          string `hcl:"bucket"`
	BasePrefix      string `hcl:"base_prefix,optional"`
	KMSKeyID        string `hcl:"kms_key_id,optional"`
	MaxConnections  int    `hcl:"max_connections,optional"`
	ConfigObjectKey string `hcl:"config_object_key,optional"`
}

// SearchIndexConfig selects and configures the search index provider.
type SearchIndexConfig struct {
	Provider    string             `hcl:"provider,optional"` // "bleve" or "meilisearch"
	Bleve       *BleveConfig       `hcl:"bleve,block"`
	Meilisearch *MeilisearchConfig `hcl:"meilisearch,block"`
}

// BleveConfig configures the embedded search provider.
type BleveConfig struct {
	IndexPath string `hcl:"index_path"`
}

// MeilisearchConfig configures the remote search provider.
type MeilisearchConfig struct {
	Host      string `hcl:"host"`
	APIKey    string `hcl:"api_key,optional"`
	IndexName string `hcl:"index_name,optional"`
}

// CryptoConfig configures the cipher-handle worker pool.
type CryptoConfig struct {
	PoolSize int    `hcl:"pool_size,optional"`
	KeyPath  string `hcl:"key_path,optional"`
}

// SupervisorConfig configures the worker-process supervisor.
type SupervisorConfig struct {
	WorkerProcesses    int `hcl:"worker_processes,optional"`
	ConsumersPerWorker int `hcl:"consumers_per_worker,optional"`
}

// BillingConfig carries the configurable subsystem-name literals the
// billing record encoder embeds.
type BillingConfig struct {
	OwningSubsystem  string `hcl:"owning_subsystem,optional"`
	CallingSubsystem string `hcl:"calling_subsystem,optional"`
}

// SuperStoreConfig configures the super-store pipeline.
type SuperStoreConfig struct {
	S3Path           string `hcl:"s3_path"`
	SnapshotKeyID    string `hcl:"snapshot_key_id,optional"`
	PGPPublicKeyPath string `hcl:"pgp_public_key_path,optional"`
}

// AuditLogConfig configures the audit-log / regression-recording pipeline.
type AuditLogConfig struct {
	ReplayCacheSize int `hcl:"replay_cache_size,optional"`
}

// Load decodes the configuration file at path and applies defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("configuration file path is required")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", path)
	}

	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Kafka != nil {
		if cfg.Kafka.MaxPollRecords == 0 {
			cfg.Kafka.MaxPollRecords = 50
		}
		if cfg.Kafka.SecurityProtocol == "" {
			cfg.Kafka.SecurityProtocol = "local"
		}
		if cfg.Kafka.ConsumerGroup == "" {
			cfg.Kafka.ConsumerGroup = "ingestion-workers"
		}
	}
	if cfg.Relational != nil {
		if cfg.Relational.Port == 0 {
			cfg.Relational.Port = 5432
		}
		if cfg.Relational.SSLMode == "" {
			cfg.Relational.SSLMode = "disable"
		}
		if cfg.Relational.ConnRecycleSeconds == 0 {
			cfg.Relational.ConnRecycleSeconds = 10800
		}
		if cfg.Relational.SummaryTable == "" {
			cfg.Relational.SummaryTable = "billing_summary"
		}
		if cfg.Relational.ProductCodesTable == "" {
			cfg.Relational.ProductCodesTable = "billing_product_codes"
		}
	}
	if cfg.ObjectStore != nil {
		if cfg.ObjectStore.MaxConnections == 0 {
			cfg.ObjectStore.MaxConnections = 10
		}
		if cfg.ObjectStore.ConfigObjectKey == "" {
			cfg.ObjectStore.ConfigObjectKey = "superstore_config.json"
		}
	}
	if cfg.SearchIndex != nil && cfg.SearchIndex.Provider == "" {
		cfg.SearchIndex.Provider = "bleve"
	}
	if cfg.Crypto != nil && cfg.Crypto.PoolSize == 0 {
		cfg.Crypto.PoolSize = 4
	}
	if cfg.Supervisor != nil {
		if cfg.Supervisor.WorkerProcesses == 0 {
			cfg.Supervisor.WorkerProcesses = defaultWorkerProcesses()
		}
		if cfg.Supervisor.ConsumersPerWorker == 0 {
			cfg.Supervisor.ConsumersPerWorker = 4
		}
		if cfg.Supervisor.ConsumersPerWorker > 8 {
			cfg.Supervisor.ConsumersPerWorker = 8
		}
	}
	if cfg.Billing != nil {
		if cfg.Billing.OwningSubsystem == "" {
			cfg.Billing.OwningSubsystem = "GOCR"
		}
		if cfg.Billing.CallingSubsystem == "" {
			cfg.Billing.CallingSubsystem = "GOXX"
		}
	}
	if cfg.AuditLog != nil && cfg.AuditLog.ReplayCacheSize == 0 {
		cfg.AuditLog.ReplayCacheSize = 512
	}
}
