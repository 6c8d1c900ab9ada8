package docstore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Option configures a store.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the store's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// FileStore keeps documents below a base directory.
type FileStore struct {
	baseDir string
	baseURL string
	logger  *zap.Logger
	mu      sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the base directory if needed.
func NewFileStore(cfg FSConfig, opts ...Option) (*FileStore, error) {
	o := buildOptions(opts)
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("fs.base_dir is required")
	}
	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document dir: %w", err)
	}
	return &FileStore{
		baseDir: abs,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		logger:  o.logger,
	}, nil
}

// Put writes data atomically (temp file then rename) and returns its URL.
func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create document directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to commit document: %w", err)
	}

	s.logger.Debug("document stored",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(data)),
	)
	return s.URL(key), nil
}

// Get reads the document stored under key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// Exists reports whether key is stored.
func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	key, err := cleanKey(key)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = os.Stat(s.pathFor(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat document: %w", err)
}

// URL returns BaseURL/key, or a file:// URL when no base URL is configured.
func (s *FileStore) URL(key string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + key
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(s.pathFor(key))}
	return u.String()
}

func (s *FileStore) pathFor(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}
