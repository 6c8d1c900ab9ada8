// =============================================================================
// Transmittal Log - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Values come from, highest
// priority first:
//   1. Environment variables with the TRANSMITTAL_ prefix
//      (e.g. TRANSMITTAL_LOCK_BACKEND=redis, TRANSMITTAL_LEDGER_PATH=...)
//   2. The YAML configuration file (config.yaml by default)
//   3. Built-in defaults
//
// SECTIONS:
//   app, server, log        process-level settings
//   registry, sources       where lookups read from
//   ledger                  the central log workbook
//   sequence, lock          transmittal number allocation (file lock by default)
//   renderer, storage       PDF generation and the document repository
//   letterheads             department letterheads for generated documents
//   csv                     line-item import settings
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/ginjaninja78/transmittal-log/pkg/docstore"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "TRANSMITTAL"

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the full application configuration.
type Config struct {
	App         AppConfig             `yaml:"app"`
	Server      ServerConfig          `yaml:"server"`
	Log         LogConfig             `yaml:"log"`
	Registry    RegistryConfig        `yaml:"registry"`
	Sources     SourcesConfig         `yaml:"sources"`
	Ledger      LedgerConfig          `yaml:"ledger"`
	Sequence    SequenceConfig        `yaml:"sequence"`
	Lock        LockConfig            `yaml:"lock"`
	Renderer    RendererConfig        `yaml:"renderer"`
	Storage     docstore.Config       `yaml:"storage"`
	Letterheads map[string]Letterhead `yaml:"letterheads"`
	CSV         CSVSettings           `yaml:"csv"`
}

// AppConfig identifies the deployment.
type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// SearchRate is the sustained number of search requests per second
	// allowed per client address. Zero disables limiting.
	SearchRate  float64 `yaml:"search_rate"`
	SearchBurst int     `yaml:"search_burst"`

	// IdempotencyTTL is how long an append result is replayed for a repeated
	// Idempotency-Key header.
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format: json or console.
	Format string `yaml:"format"`

	// Output: stdout, stderr or a file path.
	Output string `yaml:"output"`
}

// RegistryConfig locates the source registry.
type RegistryConfig struct {
	// Path is the registry workbook.
	Path string `yaml:"path"`

	// Sheet is the registry tab. Empty means the first sheet.
	Sheet string `yaml:"sheet"`

	// HeaderRow is the one-based header row; data starts below it.
	HeaderRow int `yaml:"header_row"`

	// Zero-based column positions (A=0).
	IDColumn    int `yaml:"id_column"`
	LabelColumn int `yaml:"label_column"`
	TabsColumn  int `yaml:"tabs_column"`
}

// SourcesConfig describes the external source workbooks.
type SourcesConfig struct {
	// Dir holds one workbook per source id.
	Dir string `yaml:"dir"`

	// HeaderRow is the one-based header row of every searchable tab.
	HeaderRow int `yaml:"header_row"`

	// ReferenceHeader is the header text of the reference-number column.
	ReferenceHeader string `yaml:"reference_header"`

	// Columns maps item fields to header text.
	Columns []types.FieldHeader `yaml:"columns"`

	// SkipTabsWithoutReference skips tabs lacking the reference header.
	// When false such a tab fails the search.
	SkipTabsWithoutReference bool `yaml:"skip_tabs_without_reference"`

	// AllowMissingColumns leaves a field blank when its header is absent.
	// When false a missing business header fails the search.
	AllowMissingColumns bool `yaml:"allow_missing_columns"`
}

// LedgerConfig locates the central log.
type LedgerConfig struct {
	Path          string `yaml:"path"`
	Sheet         string `yaml:"sheet"`
	HeaderRow     int    `yaml:"header_row"`
	PendingMarker string `yaml:"pending_marker"`
}

// SequenceConfig configures transmittal number allocation.
type SequenceConfig struct {
	// UTCOffsetHours is the fixed zone used for the date prefix and the
	// capture timestamp.
	UTCOffsetHours int `yaml:"utc_offset_hours"`

	// MaxAttempts bounds the collision loop.
	MaxAttempts int `yaml:"max_attempts"`
}

// Location returns the fixed time zone for UTCOffsetHours.
func (s SequenceConfig) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", s.UTCOffsetHours), s.UTCOffsetHours*3600)
}

// Lock backends.
const (
	LockBackendFile   = "file"
	LockBackendRedis  = "redis"
	LockBackendMemory = "memory"
)

// LockTTLMargin is the redis lease headroom over renderer.timeout for the
// log I/O done while the lock is held.
const LockTTLMargin = 30 * time.Second

// LockDir returns the file backend's lock directory.
func (c *Config) LockDir() string {
	if c.Lock.Dir != "" {
		return c.Lock.Dir
	}
	return filepath.Dir(c.Ledger.Path)
}

// LockConfig configures the log lock shared by allocation and append.
type LockConfig struct {
	// Backend: file (processes sharing the log's filesystem), redis (shared
	// across hosts) or memory (one process only; CLI writes refuse it).
	Backend string `yaml:"backend"`

	// Dir holds the file backend's lock files. Empty means the directory of
	// ledger.path.
	Dir string `yaml:"dir"`

	// Key names the lock.
	Key string `yaml:"key"`

	// Timeout bounds acquisition.
	Timeout time.Duration `yaml:"timeout"`

	// TTL expires a redis lock whose holder died. It must outlast a full
	// append, render included.
	TTL time.Duration `yaml:"ttl"`

	// PollInterval is the redis acquisition retry interval.
	PollInterval time.Duration `yaml:"poll_interval"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// RendererConfig configures PDF generation.
type RendererConfig struct {
	// Enabled turns PDF generation on. When off, appends leave the pending
	// marker in place and reconcile can render later.
	Enabled bool `yaml:"enabled"`

	// RemoteURL is a DevTools websocket URL of a running Chrome. Empty starts
	// a local headless browser.
	RemoteURL string `yaml:"remote_url"`

	// ChromePath overrides the local browser binary.
	ChromePath string `yaml:"chrome_path"`

	NoSandbox bool          `yaml:"no_sandbox"`
	Timeout   time.Duration `yaml:"timeout"`

	// KeyPrefix is prepended to stored document keys.
	KeyPrefix string `yaml:"key_prefix"`
}

// Letterhead is the heading block printed for a department.
type Letterhead struct {
	Title   string `yaml:"title"`
	Address string `yaml:"address"`
	Phone   string `yaml:"phone"`
}

// CSVSettings contains settings for importing line items from CSV.
type CSVSettings struct {
	// Delimiter is the field separator. Default: ","
	Delimiter string `yaml:"delimiter"`

	// DataStartRow is the one-based row where data begins; the row above it
	// holds the headers. Default: 2
	DataStartRow int `yaml:"data_start_row"`

	// TrimLeadingSpace trims spaces after delimiters.
	TrimLeadingSpace bool `yaml:"trim_leading_space"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration file at path (missing is fine), applies
// environment overrides and defaults, and validates the result.
//
// PARAMETERS:
//   - path: The YAML configuration file. Empty uses defaults and env only.
//
// RETURNS:
//   - The loaded configuration.
//   - An error if the file cannot be parsed or the result is invalid.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every scalar key so that environment overrides are
// visible to Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("app.name", d.App.Name)
	v.SetDefault("app.env", d.App.Env)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.search_rate", d.Server.SearchRate)
	v.SetDefault("server.search_burst", d.Server.SearchBurst)
	v.SetDefault("server.idempotency_ttl", d.Server.IdempotencyTTL)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)

	v.SetDefault("registry.path", d.Registry.Path)
	v.SetDefault("registry.sheet", d.Registry.Sheet)
	v.SetDefault("registry.header_row", d.Registry.HeaderRow)
	v.SetDefault("registry.id_column", d.Registry.IDColumn)
	v.SetDefault("registry.label_column", d.Registry.LabelColumn)
	v.SetDefault("registry.tabs_column", d.Registry.TabsColumn)

	v.SetDefault("sources.dir", d.Sources.Dir)
	v.SetDefault("sources.header_row", d.Sources.HeaderRow)
	v.SetDefault("sources.reference_header", d.Sources.ReferenceHeader)
	v.SetDefault("sources.skip_tabs_without_reference", d.Sources.SkipTabsWithoutReference)
	v.SetDefault("sources.allow_missing_columns", d.Sources.AllowMissingColumns)

	v.SetDefault("ledger.path", d.Ledger.Path)
	v.SetDefault("ledger.sheet", d.Ledger.Sheet)
	v.SetDefault("ledger.header_row", d.Ledger.HeaderRow)
	v.SetDefault("ledger.pending_marker", d.Ledger.PendingMarker)

	v.SetDefault("sequence.utc_offset_hours", d.Sequence.UTCOffsetHours)
	v.SetDefault("sequence.max_attempts", d.Sequence.MaxAttempts)

	v.SetDefault("lock.backend", d.Lock.Backend)
	v.SetDefault("lock.key", d.Lock.Key)
	v.SetDefault("lock.dir", d.Lock.Dir)
	v.SetDefault("lock.timeout", d.Lock.Timeout)
	v.SetDefault("lock.ttl", d.Lock.TTL)
	v.SetDefault("lock.poll_interval", d.Lock.PollInterval)
	v.SetDefault("lock.redis.host", d.Lock.Redis.Host)
	v.SetDefault("lock.redis.port", d.Lock.Redis.Port)
	v.SetDefault("lock.redis.password", d.Lock.Redis.Password)
	v.SetDefault("lock.redis.db", d.Lock.Redis.DB)

	v.SetDefault("renderer.enabled", d.Renderer.Enabled)
	v.SetDefault("renderer.remote_url", d.Renderer.RemoteURL)
	v.SetDefault("renderer.chrome_path", d.Renderer.ChromePath)
	v.SetDefault("renderer.no_sandbox", d.Renderer.NoSandbox)
	v.SetDefault("renderer.timeout", d.Renderer.Timeout)
	v.SetDefault("renderer.key_prefix", d.Renderer.KeyPrefix)

	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.fs.base_dir", d.Storage.FS.BaseDir)
	v.SetDefault("storage.fs.base_url", d.Storage.FS.BaseURL)
	v.SetDefault("storage.s3.bucket", d.Storage.S3.Bucket)
	v.SetDefault("storage.s3.region", d.Storage.S3.Region)
	v.SetDefault("storage.s3.endpoint", d.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.access_key_id", d.Storage.S3.AccessKeyID)
	v.SetDefault("storage.s3.secret_access_key", d.Storage.S3.SecretAccessKey)
	v.SetDefault("storage.s3.use_path_style", d.Storage.S3.UsePathStyle)
	v.SetDefault("storage.s3.public_base_url", d.Storage.S3.PublicBaseURL)

	v.SetDefault("csv.delimiter", d.CSV.Delimiter)
	v.SetDefault("csv.data_start_row", d.CSV.DataStartRow)
	v.SetDefault("csv.trim_leading_space", d.CSV.TrimLeadingSpace)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		App: AppConfig{
			Name: "transmittal-log",
			Env:  "development",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			SearchRate:      5,
			SearchBurst:     10,
			IdempotencyTTL:  10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Registry: RegistryConfig{
			Path:        "./data/registry.xlsx",
			Sheet:       "Sources",
			HeaderRow:   1,
			IDColumn:    0, // Column A
			LabelColumn: 1, // Column B
			TabsColumn:  2, // Column C
		},
		Sources: SourcesConfig{
			Dir:                      "./data/sources",
			HeaderRow:                5,
			ReferenceHeader:          types.DefaultReferenceHeader,
			Columns:                  types.DefaultFieldHeaders(),
			SkipTabsWithoutReference: true,
			AllowMissingColumns:      true,
		},
		Ledger: LedgerConfig{
			Path:          "./data/transmittal_log.xlsx",
			Sheet:         "Log",
			HeaderRow:     1,
			PendingMarker: types.PendingDocumentRef,
		},
		Sequence: SequenceConfig{
			UTCOffsetHours: 8,
			MaxAttempts:    100,
		},
		Lock: LockConfig{
			Backend:      LockBackendFile,
			Key:          "transmittal-log",
			Timeout:      30 * time.Second,
			TTL:          3 * time.Minute,
			PollInterval: 100 * time.Millisecond,
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
		Renderer: RendererConfig{
			Enabled:   true,
			Timeout:   60 * time.Second,
			KeyPrefix: "transmittals",
		},
		Storage: docstore.Config{
			Type: docstore.TypeFS,
			FS: docstore.FSConfig{
				BaseDir: "./data/documents",
			},
		},
		Letterheads: map[string]Letterhead{
			"DEFAULT": {Title: "Transmittal"},
		},
		CSV: CSVSettings{
			Delimiter:    ",",
			DataStartRow: 2,
		},
	}
}

// applyDefaults fills values that viper defaults cannot express: list and map
// sections, and zero values explicitly written to the file.
func applyDefaults(cfg *Config) {
	d := Default()
	if len(cfg.Sources.Columns) == 0 {
		cfg.Sources.Columns = d.Sources.Columns
	}
	if cfg.Sources.ReferenceHeader == "" {
		cfg.Sources.ReferenceHeader = d.Sources.ReferenceHeader
	}
	if cfg.Ledger.PendingMarker == "" {
		cfg.Ledger.PendingMarker = d.Ledger.PendingMarker
	}
	if cfg.Lock.Key == "" {
		cfg.Lock.Key = d.Lock.Key
	}
	if cfg.Lock.PollInterval <= 0 {
		cfg.Lock.PollInterval = d.Lock.PollInterval
	}
	if cfg.CSV.Delimiter == "" {
		cfg.CSV.Delimiter = d.CSV.Delimiter
	}
	if cfg.CSV.DataStartRow <= 0 {
		cfg.CSV.DataStartRow = d.CSV.DataStartRow
	}

	// Viper lower-cases map keys; letterheads are keyed by upper-case codes.
	letterheads := make(map[string]Letterhead, len(cfg.Letterheads)+1)
	for code, lh := range cfg.Letterheads {
		letterheads[strings.ToUpper(strings.TrimSpace(code))] = lh
	}
	if _, ok := letterheads["DEFAULT"]; !ok {
		letterheads["DEFAULT"] = d.Letterheads["DEFAULT"]
	}
	cfg.Letterheads = letterheads
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for values the application cannot run
// with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Registry.Path) == "" {
		return fmt.Errorf("registry.path is required")
	}
	if c.Registry.HeaderRow < 1 {
		return fmt.Errorf("registry.header_row must be at least 1")
	}
	if c.Registry.IDColumn < 0 || c.Registry.LabelColumn < 0 || c.Registry.TabsColumn < 0 {
		return fmt.Errorf("registry column indices must not be negative")
	}
	if strings.TrimSpace(c.Sources.Dir) == "" {
		return fmt.Errorf("sources.dir is required")
	}
	if c.Sources.HeaderRow < 1 {
		return fmt.Errorf("sources.header_row must be at least 1")
	}
	for i, col := range c.Sources.Columns {
		if strings.TrimSpace(col.Field) == "" || strings.TrimSpace(col.Header) == "" {
			return fmt.Errorf("sources.columns[%d] needs both field and header", i)
		}
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		return fmt.Errorf("ledger.path is required")
	}
	if c.Ledger.HeaderRow < 1 {
		return fmt.Errorf("ledger.header_row must be at least 1")
	}
	if c.Sequence.MaxAttempts < 1 {
		return fmt.Errorf("sequence.max_attempts must be at least 1")
	}
	if c.Sequence.UTCOffsetHours < -12 || c.Sequence.UTCOffsetHours > 14 {
		return fmt.Errorf("sequence.utc_offset_hours out of range: %d", c.Sequence.UTCOffsetHours)
	}
	switch c.Lock.Backend {
	case LockBackendFile, LockBackendRedis, LockBackendMemory:
	default:
		return fmt.Errorf("unsupported lock.backend %q (file|redis|memory)", c.Lock.Backend)
	}
	if c.Lock.Timeout <= 0 {
		return fmt.Errorf("lock.timeout must be positive")
	}
	if c.Lock.Backend == LockBackendRedis {
		if c.Lock.TTL <= c.Lock.Timeout {
			return fmt.Errorf("lock.ttl must exceed lock.timeout for the redis backend")
		}
		if floor := c.Renderer.Timeout + LockTTLMargin; c.Lock.TTL < floor {
			return fmt.Errorf("lock.ttl must be at least renderer.timeout + %s (%s) for the redis backend", LockTTLMargin, floor)
		}
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// =============================================================================
// WRITING
// =============================================================================

// WriteDefault writes the built-in configuration as YAML to path. An existing
// file is left untouched unless overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
