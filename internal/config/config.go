package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/questhold/questhold/pkg/logger"
)

// EnvPrefix is prepended to every environment override, e.g.
// QUESTHOLD_DATABASE_DRIVER.
const EnvPrefix = "QUESTHOLD"

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Storage configuration for image content
	Storage StorageConfig `mapstructure:"storage"`

	// Event forwarding configuration
	Events EventsConfig `mapstructure:"events"`

	// Metrics endpoint configuration
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Library scanning defaults
	Library LibraryConfig `mapstructure:"library"`

	// Metadata provider and refresh job configuration
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Logger configuration
	Logger logger.Config `mapstructure:"logger"`
}

// ServerConfig holds process-level configuration
type ServerConfig struct {
	DataDir      string        `mapstructure:"data_dir"`
	Environment  string        `mapstructure:"environment"`
	ShutdownTime time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver       string        `mapstructure:"driver"` // sqlite or postgres
	Path         string        `mapstructure:"path"`   // sqlite file, relative to the data dir
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Database     string        `mapstructure:"name"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
	Debug        bool          `mapstructure:"debug"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// StorageConfig holds image storage configuration
type StorageConfig struct {
	Type      string   `mapstructure:"type"` // local or s3
	LocalPath string   `mapstructure:"local_path"`
	S3        S3Config `mapstructure:"s3"`
}

// S3Config holds S3/MinIO configuration
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
}

// EventsConfig selects where domain events are forwarded besides the
// in-process bus.
type EventsConfig struct {
	Sink  string      `mapstructure:"sink"` // none, nats or kafka
	NATS  NATSConfig  `mapstructure:"nats"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	ClientName    string        `mapstructure:"client_name"`
	MaxReconnect  int           `mapstructure:"max_reconnect"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// KafkaConfig holds Kafka producer configuration
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// LibraryConfig holds the defaults for the runtime library settings
type LibraryConfig struct {
	EnableFilesystemWatcher bool          `mapstructure:"enable_filesystem_watcher"`
	WatcherDebounce         time.Duration `mapstructure:"watcher_debounce"`
	ScanEmptyDirectories    bool          `mapstructure:"scan_empty_directories"`
	ExtractTitleUsingRegex  bool          `mapstructure:"extract_title_using_regex"`
	TitleExtractionRegex    string        `mapstructure:"title_extraction_regex"`
	GameFileExtensions      []string      `mapstructure:"game_file_extensions"`
	ScanConcurrency         int           `mapstructure:"scan_concurrency"`
	ProgressInterval        time.Duration `mapstructure:"progress_interval"`
}

// MetadataConfig holds metadata refresh and image download configuration
type MetadataConfig struct {
	UpdateEnabled   bool          `mapstructure:"update_enabled"`
	UpdateSchedule  string        `mapstructure:"update_schedule"`
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`
	ImageTimeout    time.Duration `mapstructure:"image_timeout"`
	ImageMaxBytes   int64         `mapstructure:"image_max_bytes"`
	ImageRateLimit  float64       `mapstructure:"image_rate_limit"` // requests per second, 0 disables
	UserAgent       string        `mapstructure:"user_agent"`
}

// Load reads configuration from defaults, an optional YAML file and
// QUESTHOLD_ prefixed environment variables, in increasing precedence.
// An empty configFile searches ./questhold.yaml and /etc/questhold/.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("questhold")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/questhold/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Database.Driver == "sqlite" && !filepath.IsAbs(cfg.Database.Path) {
		cfg.Database.Path = filepath.Join(cfg.Server.DataDir, cfg.Database.Path)
	}
	if cfg.Storage.Type == "local" && !filepath.IsAbs(cfg.Storage.LocalPath) {
		cfg.Storage.LocalPath = filepath.Join(cfg.Server.DataDir, cfg.Storage.LocalPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "questhold.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "questhold")
	v.SetDefault("database.password", "questhold")
	v.SetDefault("database.name", "questhold")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_lifetime", 5*time.Minute)
	v.SetDefault("database.debug", false)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "images")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.prefix", "images/")

	v.SetDefault("events.sink", "none")
	v.SetDefault("events.nats.url", "nats://localhost:4222")
	v.SetDefault("events.nats.client_name", "questhold")
	v.SetDefault("events.nats.max_reconnect", 60)
	v.SetDefault("events.nats.reconnect_wait", 2*time.Second)
	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.topic", "questhold-events")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":9091")

	v.SetDefault("library.enable_filesystem_watcher", false)
	v.SetDefault("library.watcher_debounce", 5*time.Second)
	v.SetDefault("library.scan_empty_directories", false)
	v.SetDefault("library.extract_title_using_regex", false)
	v.SetDefault("library.title_extraction_regex", `^[^\[]+`)
	v.SetDefault("library.game_file_extensions", []string{
		"zip", "tar", "gz", "rar", "7z", "bz2", "xz", "iso", "jar", "tgz",
		"exe", "bat", "cmd", "com", "msi", "bin", "run", "app", "dmg", "elf",
	})
	v.SetDefault("library.scan_concurrency", 2)
	v.SetDefault("library.progress_interval", time.Second)

	v.SetDefault("metadata.update_enabled", true)
	v.SetDefault("metadata.update_schedule", "@daily")
	v.SetDefault("metadata.provider_timeout", 30*time.Second)
	v.SetDefault("metadata.image_timeout", 30*time.Second)
	v.SetDefault("metadata.image_max_bytes", 20<<20)
	v.SetDefault("metadata.image_rate_limit", 4.0)
	v.SetDefault("metadata.user_agent", "questhold")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.output_paths", []string{"stdout"})
	v.SetDefault("logger.error_paths", []string{"stderr"})
}

// Validate checks enum values and required fields
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.Host == "" || c.Database.Database == "" {
			return errors.New("database.host and database.name are required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalPath == "" {
			return errors.New("storage.local_path is required for local storage")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	switch c.Events.Sink {
	case "", "none":
	case "nats":
		if c.Events.NATS.URL == "" {
			return errors.New("events.nats.url is required for the nats sink")
		}
	case "kafka":
		if len(c.Events.Kafka.Brokers) == 0 || c.Events.Kafka.Topic == "" {
			return errors.New("events.kafka.brokers and events.kafka.topic are required for the kafka sink")
		}
	default:
		return fmt.Errorf("unsupported event sink %q", c.Events.Sink)
	}

	if c.Library.ScanConcurrency < 1 {
		return errors.New("library.scan_concurrency must be at least 1")
	}
	return nil
}
