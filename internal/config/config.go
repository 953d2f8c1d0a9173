// Package config loads the daemon configuration from YAML with PLANTID_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Remote drivers.
const (
	RemoteFirestore = "firestore"
	RemotePostgres  = "postgres"
	RemoteOffline   = "offline"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Images   ImagesConfig   `yaml:"images"`
	Model    ModelConfig    `yaml:"model"`
	Sync     SyncConfig     `yaml:"sync"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr      string        `yaml:"addr"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RemoteConfig struct {
	// Driver is one of firestore, postgres or offline.
	Driver string `yaml:"driver"`

	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`

	PostgresDSN string `yaml:"postgres_dsn"`
	MaxConns    int    `yaml:"max_conns"`
}

type ImagesConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type ModelConfig struct {
	Path        string `yaml:"path"`
	LabelsPath  string `yaml:"labels_path"`
	LibraryPath string `yaml:"library_path"`
	Version     string `yaml:"version"`
	InputSize   int    `yaml:"input_size"`

	Threshold      float64 `yaml:"threshold"`
	MaxPredictions int     `yaml:"max_predictions"`
}

type SyncConfig struct {
	// Ceiling caps the number of plants pulled by a bulk sync.
	Ceiling      int `yaml:"ceiling"`
	DefaultLimit int `yaml:"default_limit"`
}

type OutboxConfig struct {
	Interval    time.Duration `yaml:"interval"`
	BatchSize   int           `yaml:"batch_size"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`

	// MaxAttempts buries an entry after this many failures. Zero retries forever.
	MaxAttempts int `yaml:"max_attempts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Validate rejects settings the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.Remote.Driver {
	case RemoteFirestore:
		if c.Remote.ProjectID == "" {
			return fmt.Errorf("remote.project_id is required for the firestore driver")
		}
	case RemotePostgres:
		if c.Remote.PostgresDSN == "" {
			return fmt.Errorf("remote.postgres_dsn is required for the postgres driver")
		}
	case RemoteOffline:
	default:
		return fmt.Errorf("unknown remote driver %q", c.Remote.Driver)
	}
	if c.Model.Threshold < 0 || c.Model.Threshold > 1 {
		return fmt.Errorf("model.threshold must be within [0, 1], got %v", c.Model.Threshold)
	}
	if c.Images.Enabled && c.Images.Bucket == "" {
		return fmt.Errorf("images.bucket is required when images are enabled")
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:8080"
	}
	if cfg.Server.TokenTTL == 0 {
		cfg.Server.TokenTTL = 30 * 24 * time.Hour
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/plantid.db"
	}
	if cfg.Remote.Driver == "" {
		cfg.Remote.Driver = RemoteOffline
	}
	if cfg.Remote.MaxConns == 0 {
		cfg.Remote.MaxConns = 4
	}
	if cfg.Model.InputSize == 0 {
		cfg.Model.InputSize = 224
	}
	if cfg.Model.Threshold == 0 {
		cfg.Model.Threshold = 0.7
	}
	if cfg.Model.MaxPredictions == 0 {
		cfg.Model.MaxPredictions = 5
	}
	if cfg.Model.Version == "" {
		cfg.Model.Version = "1.0.0"
	}
	if cfg.Sync.Ceiling == 0 {
		cfg.Sync.Ceiling = 1000
	}
	if cfg.Sync.DefaultLimit == 0 {
		cfg.Sync.DefaultLimit = 50
	}
	if cfg.Outbox.Interval == 0 {
		cfg.Outbox.Interval = 30 * time.Second
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = 20
	}
	if cfg.Outbox.BaseBackoff == 0 {
		cfg.Outbox.BaseBackoff = 2 * time.Second
	}
	if cfg.Outbox.MaxBackoff == 0 {
		cfg.Outbox.MaxBackoff = 5 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PLANTID_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PLANTID_JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("PLANTID_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PLANTID_REMOTE_DRIVER"); v != "" {
		cfg.Remote.Driver = v
	}
	if v := os.Getenv("PLANTID_FIRESTORE_PROJECT"); v != "" {
		cfg.Remote.ProjectID = v
	}
	if v := os.Getenv("PLANTID_FIRESTORE_CREDENTIALS"); v != "" {
		cfg.Remote.CredentialsFile = v
	}
	if v := os.Getenv("PLANTID_POSTGRES_DSN"); v != "" {
		cfg.Remote.PostgresDSN = v
	}
	if v := os.Getenv("PLANTID_MINIO_ENDPOINT"); v != "" {
		cfg.Images.Endpoint = v
	}
	if v := os.Getenv("PLANTID_MINIO_ACCESS_KEY"); v != "" {
		cfg.Images.AccessKey = v
	}
	if v := os.Getenv("PLANTID_MINIO_SECRET_KEY"); v != "" {
		cfg.Images.SecretKey = v
	}
	if v := os.Getenv("PLANTID_MINIO_BUCKET"); v != "" {
		cfg.Images.Bucket = v
	}
	if v := os.Getenv("PLANTID_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("PLANTID_MODEL_LABELS"); v != "" {
		cfg.Model.LabelsPath = v
	}
	if v := os.Getenv("PLANTID_ONNXRUNTIME_LIB"); v != "" {
		cfg.Model.LibraryPath = v
	}
	if v := os.Getenv("PLANTID_MODEL_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Model.Threshold = f
		}
	}
	if v := os.Getenv("PLANTID_SYNC_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.Ceiling = n
		}
	}
	if v := os.Getenv("PLANTID_OUTBOX_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Outbox.MaxAttempts = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PLANTID_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
