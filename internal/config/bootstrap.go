package config

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
)

// LogLevelFromEnv reads LOG_LEVEL the way every cmd/*-consumer binary
// does, defaulting to Info when unset or unrecognized.
func LogLevelFromEnv() hclog.Level {
	level := hclog.LevelFromString(os.Getenv("LOG_LEVEL"))
	if level == hclog.NoLevel {
		return hclog.Info
	}
	return level
}

// SecretBootstrap fetches SSL material and credentials on process start.
// The actual retrieval mechanism (environment, vault, secrets manager) is
// deployment-specific; cmd/*-consumer binaries wire a concrete
// implementation and pass the results into kafka.TLSMaterial,
// relational.Config, crypto.NewPool, and crypto.NewPGPEncryptor — the
// engine itself only consumes the bytes.
type SecretBootstrap interface {
	// TLSMaterial fetches the CA bundle, client cert/key, and key
	// passphrase used for the consumer's secure transport mode.
	TLSMaterial(ctx context.Context) (caBundle, clientCert, clientKey []byte, passphrase string, err error)

	// CryptoKey fetches the symmetric key backing the cipher pool.
	CryptoKey(ctx context.Context) ([]byte, error)

	// PGPPublicKey fetches the PEM-encoded public key the super-store
	// pipeline encrypts under.
	PGPPublicKey(ctx context.Context) ([]byte, error)

	// RelationalCredentials fetches the username/password for the
	// relational connection pool.
	RelationalCredentials(ctx context.Context) (user, password string, err error)
}

// FileBootstrap is the local-development SecretBootstrap: it reads every
// secret from a file path named by an environment variable — read from
// disk, no vault round trip. Production deployments wire their own
// SecretBootstrap against whatever secret store ANALYTICS_RDS_KEY_NAME and
// friends name; this implementation only satisfies the boundary for local
// runs and tests.
type FileBootstrap struct{}

func (FileBootstrap) TLSMaterial(ctx context.Context) ([]byte, []byte, []byte, string, error) {
	ca, err := readEnvFile("TLS_CA_BUNDLE_PATH")
	if err != nil {
		return nil, nil, nil, "", err
	}
	cert, err := readEnvFile("TLS_CLIENT_CERT_PATH")
	if err != nil {
		return nil, nil, nil, "", err
	}
	key, err := readEnvFile("TLS_CLIENT_KEY_PATH")
	if err != nil {
		return nil, nil, nil, "", err
	}
	return ca, cert, key, os.Getenv("TLS_KEY_PASSPHRASE"), nil
}

func (FileBootstrap) CryptoKey(ctx context.Context) ([]byte, error) {
	return readEnvFile("CRYPTO_KEY_PATH")
}

func (FileBootstrap) PGPPublicKey(ctx context.Context) ([]byte, error) {
	return readEnvFile("SUPER_STORE_PGP_PUBLIC_KEY_PATH")
}

func (FileBootstrap) RelationalCredentials(ctx context.Context) (string, string, error) {
	return os.Getenv("ANALYTICS_RDS_USER"), os.Getenv("ANALYTICS_RDS_PASSWORD"), nil
}

func readEnvFile(envVar string) ([]byte, error) {
	path := os.Getenv(envVar)
	if path == "" {
		return nil, fmt.Errorf("%s is not set", envVar)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s (%s): %w", envVar, path, err)
	}
	return content, nil
}
