// Package config loads application configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Fx       FxConfig
	Import   ImportConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string `validate:"required"`
	Env  string `validate:"oneof=development staging production"`
	Port string `validate:"required"`
	// PublicBaseURL is the externally resolvable origin of this backend,
	// used to rewrite rehosted image URLs.
	PublicBaseURL string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodySize  int64
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig holds Redis connection settings for the shared rate cache
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	UsePathStyle  bool
	PublicBaseURL string
}

// FxConfig holds exchange rate provider settings
type FxConfig struct {
	EndpointURL  string
	FetchTimeout time.Duration
	CacheTTL     time.Duration
}

// ImportConfig holds bulk import pipeline settings
type ImportConfig struct {
	BatchSize        int           `validate:"min=1"`
	Workers          int           `validate:"min=1"`
	Currencies       []string      `validate:"min=1"`
	StockLocationID  string        // UUID of the default stock location
	LinkRetries      int           `validate:"min=0"`
	LinkRetryDelay   time.Duration
	ImageMaxBytes    int64
	ImageTimeout     time.Duration
	MaxReportedRows  int
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest): STOREFRONT_-prefixed env vars, config.toml, defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name:          v.GetString("app.name"),
			Env:           v.GetString("app.env"),
			Port:          v.GetString("app.port"),
			PublicBaseURL: v.GetString("app.public_base_url"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
			MaxBodySize:  v.GetInt64("http.max_body_size"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Endpoint:      v.GetString("storage.endpoint"),
			Region:        v.GetString("storage.region"),
			Bucket:        v.GetString("storage.bucket"),
			AccessKey:     v.GetString("storage.access_key"),
			SecretKey:     v.GetString("storage.secret_key"),
			UseSSL:        v.GetBool("storage.use_ssl"),
			UsePathStyle:  v.GetBool("storage.use_path_style"),
			PublicBaseURL: v.GetString("storage.public_base_url"),
		},
		Fx: FxConfig{
			EndpointURL:  v.GetString("fx.endpoint_url"),
			FetchTimeout: v.GetDuration("fx.fetch_timeout"),
			CacheTTL:     v.GetDuration("fx.cache_ttl"),
		},
		Import: ImportConfig{
			BatchSize:       v.GetInt("import.batch_size"),
			Workers:         v.GetInt("import.workers"),
			Currencies:      v.GetStringSlice("import.currencies"),
			StockLocationID: v.GetString("import.stock_location_id"),
			LinkRetries:     v.GetInt("import.link_retries"),
			LinkRetryDelay:  v.GetDuration("import.link_retry_delay"),
			ImageMaxBytes:   v.GetInt64("import.image_max_bytes"),
			ImageTimeout:    v.GetDuration("import.image_timeout"),
			MaxReportedRows: v.GetInt("import.max_reported_rows"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront-backend")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.public_base_url", "http://localhost:8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.idle_timeout", 120*time.Second)
	v.SetDefault("http.max_body_size", int64(32<<20))

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "storefront")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "storefront-media")
	v.SetDefault("storage.use_path_style", true)

	v.SetDefault("fx.endpoint_url", "https://open.er-api.com/v6/latest/USD")
	v.SetDefault("fx.fetch_timeout", 5*time.Second)
	v.SetDefault("fx.cache_ttl", time.Hour)

	v.SetDefault("import.batch_size", 200)
	v.SetDefault("import.workers", 4)
	v.SetDefault("import.currencies", []string{"USD", "EUR", "GBP", "INR"})
	v.SetDefault("import.link_retries", 5)
	v.SetDefault("import.link_retry_delay", 2*time.Second)
	v.SetDefault("import.image_max_bytes", int64(20<<20))
	v.SetDefault("import.image_timeout", 30*time.Second)
	v.SetDefault("import.max_reported_rows", 100)
}
