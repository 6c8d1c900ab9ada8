package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, LockBackendFile, cfg.Lock.Backend)
	assert.Equal(t, filepath.Dir(cfg.Ledger.Path), cfg.LockDir())
	assert.Equal(t, 30*time.Second, cfg.Lock.Timeout)
	assert.Equal(t, 100, cfg.Sequence.MaxAttempts)
	assert.Equal(t, 5, cfg.Sources.HeaderRow)
	assert.Equal(t, types.DefaultReferenceHeader, cfg.Sources.ReferenceHeader)
	assert.Len(t, cfg.Sources.Columns, 10)
	assert.Equal(t, types.PendingDocumentRef, cfg.Ledger.PendingMarker)
	assert.Contains(t, cfg.Letterheads, "DEFAULT")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  read_timeout: 5s
ledger:
  path: /srv/log.xlsx
  pending_marker: NO-DOC-YET
sources:
  header_row: 3
  columns:
    - field: supplier
      header: Vendor
letterheads:
  fin:
    title: Finance Department
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/srv/log.xlsx", cfg.Ledger.Path)
	assert.Equal(t, "NO-DOC-YET", cfg.Ledger.PendingMarker)
	assert.Equal(t, 3, cfg.Sources.HeaderRow)
	assert.Equal(t, []types.FieldHeader{{Field: "supplier", Header: "Vendor"}}, cfg.Sources.Columns)
	assert.Equal(t, "Finance Department", cfg.Letterheads["FIN"].Title)
	assert.Contains(t, cfg.Letterheads, "DEFAULT")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRANSMITTAL_LOCK_BACKEND", "redis")
	t.Setenv("TRANSMITTAL_LOCK_REDIS_HOST", "redis.internal")
	t.Setenv("TRANSMITTAL_SEQUENCE_UTC_OFFSET_HOURS", "9")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Lock.Redis.Addr())
	assert.Equal(t, 9, cfg.Sequence.UTCOffsetHours)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lock:\n  backend: etcd\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock.backend")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"registry path", func(c *Config) { c.Registry.Path = " " }, "registry.path"},
		{"source header row", func(c *Config) { c.Sources.HeaderRow = 0 }, "sources.header_row"},
		{"column without header", func(c *Config) {
			c.Sources.Columns = []types.FieldHeader{{Field: "supplier"}}
		}, "sources.columns[0]"},
		{"max attempts", func(c *Config) { c.Sequence.MaxAttempts = 0 }, "sequence.max_attempts"},
		{"offset", func(c *Config) { c.Sequence.UTCOffsetHours = 15 }, "utc_offset_hours"},
		{"redis ttl", func(c *Config) {
			c.Lock.Backend = "redis"
			c.Lock.TTL = c.Lock.Timeout
		}, "lock.ttl"},
		{"redis ttl below render time", func(c *Config) {
			c.Lock.Backend = LockBackendRedis
			c.Renderer.Timeout = 60 * time.Second
			c.Lock.TTL = 60 * time.Second
		}, "renderer.timeout"},
		{"storage", func(c *Config) { c.Storage.FS.BaseDir = "" }, "storage"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	d := Default()
	assert.NoError(t, d.Validate())
}

func TestValidate_RedisTTLCoversRender(t *testing.T) {
	cfg := Default()
	cfg.Lock.Backend = LockBackendRedis
	cfg.Renderer.Timeout = 60 * time.Second
	cfg.Lock.TTL = cfg.Renderer.Timeout + LockTTLMargin
	assert.NoError(t, cfg.Validate())
}

func TestLockDir(t *testing.T) {
	cfg := Default()
	cfg.Ledger.Path = filepath.Join("srv", "logs", "central.xlsx")
	assert.Equal(t, filepath.Join("srv", "logs"), cfg.LockDir())

	cfg.Lock.Dir = "/run/transmittal"
	assert.Equal(t, "/run/transmittal", cfg.LockDir())
}

func TestSequenceLocation(t *testing.T) {
	loc := SequenceConfig{UTCOffsetHours: 8}.Location()
	at := time.Date(2026, 10, 17, 17, 30, 0, 0, time.UTC).In(loc)
	assert.Equal(t, "20261018", at.Format("20060102"))
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path, false))
	assert.Error(t, WriteDefault(path, false))
	require.NoError(t, WriteDefault(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Server, cfg.Server)
	assert.Equal(t, d.Lock, cfg.Lock)
	assert.Equal(t, d.Sources.Columns, cfg.Sources.Columns)
	assert.Equal(t, d.Letterheads, cfg.Letterheads)
}
