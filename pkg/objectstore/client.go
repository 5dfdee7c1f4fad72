// Package objectstore provides the shared, bounded-connection blob storage
// client used by the super-store pipeline to land gzipped, PGP-encrypted
// payloads and to fetch small cached configuration objects such as the
// super-store allow-list.
package objectstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hashicorp/go-hclog"
)

// Config configures the S3-compatible object store client.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // non-empty selects a custom endpoint (e.g. MinIO), forcing path-style addressing

	AccessKey string
	SecretKey string

	// KMSKeyID, when set, requests server-side encryption on every PutObject
	// using this customer-managed key.
	KMSKeyID string

	MaxConnections        int // bounds the shared HTTP transport's connection pool (default 10)
	RequestTimeoutSeconds int // default 30

	InsecureSkipVerify bool
}

func (c *Config) setDefaults() {
	if c.MaxConnections == 0 {
		c.MaxConnections = 10
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = 30
	}
}

// Client is the shared object-store handle: one *s3.Client per process,
// backed by an HTTP transport with a bounded connection pool, reused across
// every upload and config-cache fetch.
type Client struct {
	s3     *s3.Client
	cfg    Config
	logger hclog.Logger
}

// New creates the shared object-store client and verifies bucket access.
func New(ctx context.Context, cfg Config, logger hclog.Logger) (*Client, error) {
	cfg.setDefaults()
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	httpClient := &http.Client{
		Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: cfg.MaxConnections,
			MaxConnsPerHost:     cfg.MaxConnections,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify,
			},
		},
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	c := &Client{s3: client, cfg: cfg, logger: logger.Named("objectstore")}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("bucket %s is not accessible: %w", cfg.Bucket, err)
	}

	logger.Info("object store client initialized", "bucket", cfg.Bucket, "kms_key_id", cfg.KMSKeyID != "")
	return c, nil
}

// PutGzip gzip-compresses content and uploads it under key, requesting
// server-side KMS encryption when a key id is configured.
func (c *Client) PutGzip(ctx context.Context, key string, content []byte) error {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(content); err != nil {
		return fmt.Errorf("failed to gzip object body: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip writer: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:          aws.String(c.cfg.Bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/gzip"),
		ContentEncoding: aws.String("gzip"),
	}
	if c.cfg.KMSKeyID != "" {
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(c.cfg.KMSKeyID)
	}

	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// Get fetches and returns an object's raw bytes.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return content, nil
}
