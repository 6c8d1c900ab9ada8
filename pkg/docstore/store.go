// =============================================================================
// Transmittal Log - Document Repository
// =============================================================================
//
// This package stores rendered transmittal documents and hands back the URL
// recorded in the central log.
//
// BACKENDS:
//   fs  documents are written below a base directory (default)
//   s3  documents are uploaded to an S3-compatible bucket
//
// KEY LAYOUT:
//   <prefix>/<YYYY>/<MM>/<name>   e.g. transmittals/2026/10/20261018-4821_1a2b3c4d.pdf
//
// =============================================================================

package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ContentTypePDF is the content type of rendered documents.
const ContentTypePDF = "application/pdf"

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("document not found")

// Store persists documents by key.
type Store interface {
	// Put stores data under key and returns the document's URL.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get returns the stored bytes for key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether key is stored.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns the URL Put would return for key.
	URL(key string) string
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Type selects a storage backend.
type Type string

const (
	TypeFS Type = "fs"
	TypeS3 Type = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Type Type     `yaml:"type"`
	FS   FSConfig `yaml:"fs"`
	S3   S3Config `yaml:"s3"`
}

// FSConfig configures the filesystem backend.
type FSConfig struct {
	// BaseDir is the root directory for stored documents.
	BaseDir string `yaml:"base_dir"`

	// BaseURL is prefixed to keys to form document URLs. Empty yields
	// file:// URLs.
	BaseURL string `yaml:"base_url"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`

	// Endpoint is set for S3-compatible services (MinIO, RustFS, LocalStack).
	Endpoint string `yaml:"endpoint"`

	// Static credentials. Empty uses the default AWS credential chain.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	UsePathStyle bool `yaml:"use_path_style"`

	// Prefix is prepended to every object key.
	Prefix string `yaml:"prefix"`

	// PublicBaseURL overrides the URL returned for stored documents.
	PublicBaseURL string `yaml:"public_base_url"`
}

// Validate checks the selected backend's settings.
func (c Config) Validate() error {
	switch c.Type {
	case TypeFS, "":
		if strings.TrimSpace(c.FS.BaseDir) == "" {
			return errors.New("fs.base_dir is required")
		}
	case TypeS3:
		if strings.TrimSpace(c.S3.Bucket) == "" {
			return errors.New("s3.bucket is required")
		}
		if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
			return errors.New("s3 access_key_id and secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Type)
	}
	return nil
}

// New creates the store selected by cfg.Type.
func New(ctx context.Context, cfg Config, opts ...Option) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case TypeS3:
		return NewS3Store(ctx, cfg.S3, opts...)
	default:
		return NewFileStore(cfg.FS, opts...)
	}
}

// cleanKey normalizes a key and rejects keys escaping the store root.
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", errors.New("document key is required")
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid document key: %s", key)
		}
	}
	return key, nil
}
