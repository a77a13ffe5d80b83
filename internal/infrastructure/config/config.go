package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	HTTP      HTTPConfig
	Render    RenderConfig
	Storage   StorageConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
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
	ConnMaxIdleTime int // in minutes
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// RenderConfig holds the rendering pipeline configuration. Every deadline
// the pipeline may spend is a named field here; there are no other timeout
// constants anywhere in the pipeline.
type RenderConfig struct {
	StartupTimeout  time.Duration // render engine launch
	FetchTimeout    time.Duration // quote and sub-record loading
	SettleTimeout   time.Duration // markup injection plus embedded-asset wait
	PaginateTimeout time.Duration // print-to-PDF execution
	UploadTimeout   time.Duration // artifact sink store
	AssetWait       time.Duration // per embedded image inside the settle wait
	Slack           time.Duration // headroom on the whole-request ceiling
	MaxRetries      int           // whole-pipeline retries for transient failures (0-2)
	RemoteURL       string        // remote Chrome instance; empty launches locally
	NoSandbox       bool          // required when running as root in a container
	Scale           float64       // render scale (default 1.0)
	PrintBackground bool          // print background graphics
	MarginMM        float64       // uniform page margin in millimeters
}

// StorageConfig holds artifact storage settings. Backend selects the sink;
// the S3 fields also cover any S3-compatible store (MinIO, RustFS, etc.)
type StorageConfig struct {
	Backend           string // "s3" or "filesystem"
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	KeyPrefix         string
	PresignExpiration time.Duration
	BasePath          string // filesystem backend root directory
	BaseURL           string // URL prefix for filesystem-served artifacts
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g. "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	ProfilerEnabled   bool    // Enable the continuous profiler
	ProfilerEndpoint  string  // Pyroscope server address
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with RENDERD_ prefix (e.g., RENDERD_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/renderd")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("RENDERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Zero is a meaningful value for max_retries, so it needs a real viper
	// default rather than the applyDefaults zero-value fallback.
	v.SetDefault("render.max_retries", 1)
	v.SetDefault("render.print_background", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
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
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),

			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Render: RenderConfig{
			StartupTimeout:  v.GetDuration("render.startup_timeout"),
			FetchTimeout:    v.GetDuration("render.fetch_timeout"),
			SettleTimeout:   v.GetDuration("render.settle_timeout"),
			PaginateTimeout: v.GetDuration("render.paginate_timeout"),
			UploadTimeout:   v.GetDuration("render.upload_timeout"),
			AssetWait:       v.GetDuration("render.asset_wait"),
			Slack:           v.GetDuration("render.slack"),
			MaxRetries:      v.GetInt("render.max_retries"),
			RemoteURL:       v.GetString("render.remote_url"),
			NoSandbox:       v.GetBool("render.no_sandbox"),
			Scale:           v.GetFloat64("render.scale"),
			PrintBackground: v.GetBool("render.print_background"),
			MarginMM:        v.GetFloat64("render.margin_mm"),
		},
		Storage: StorageConfig{
			Backend:           v.GetString("storage.backend"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			KeyPrefix:         v.GetString("storage.key_prefix"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			BasePath:          v.GetString("storage.base_path"),
			BaseURL:           v.GetString("storage.base_url"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ProfilerEnabled:   v.GetBool("telemetry.profiler_enabled"),
			ProfilerEndpoint:  v.GetString("telemetry.profiler_endpoint"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "renderd"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "renderd"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// Write timeout must cover a full pipeline run; it is raised further
		// in validate when the render ceiling demands it.
		cfg.HTTP.WriteTimeout = 2 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB; the options bag is small
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Render.StartupTimeout == 0 {
		cfg.Render.StartupTimeout = 10 * time.Second
	}
	if cfg.Render.FetchTimeout == 0 {
		cfg.Render.FetchTimeout = 5 * time.Second
	}
	if cfg.Render.SettleTimeout == 0 {
		cfg.Render.SettleTimeout = 15 * time.Second
	}
	if cfg.Render.PaginateTimeout == 0 {
		cfg.Render.PaginateTimeout = 30 * time.Second
	}
	if cfg.Render.UploadTimeout == 0 {
		cfg.Render.UploadTimeout = 20 * time.Second
	}
	if cfg.Render.AssetWait == 0 {
		cfg.Render.AssetWait = 3 * time.Second
	}
	if cfg.Render.Slack == 0 {
		cfg.Render.Slack = 5 * time.Second
	}
	if cfg.Render.Scale == 0 {
		cfg.Render.Scale = 1.0
	}
	if cfg.Render.MarginMM == 0 {
		cfg.Render.MarginMM = 15
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "filesystem"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "documents"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "/data/documents"
	}
	if cfg.Storage.BaseURL == "" {
		cfg.Storage.BaseURL = "/api/v1/documents"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "renderd"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Render.MaxRetries < 0 || c.Render.MaxRetries > 2 {
		return fmt.Errorf("render.max_retries must be between 0 and 2, got %d", c.Render.MaxRetries)
	}
	if c.Render.Scale <= 0 || c.Render.Scale > 2 {
		return fmt.Errorf("render.scale must be between 0 and 2, got %f", c.Render.Scale)
	}
	if c.Render.MarginMM < 0 {
		return fmt.Errorf("render.margin_mm cannot be negative")
	}

	switch c.Storage.Backend {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage.backend is s3")
		}
	case "filesystem":
		// base path default always applies
	default:
		return fmt.Errorf("storage.backend must be 's3' or 'filesystem', got %q", c.Storage.Backend)
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Storage.Backend == "s3" {
			if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
				return fmt.Errorf("storage.access_key and storage.secret_key are required in production")
			}
			if !c.Storage.UseSSL && strings.HasPrefix(c.Storage.Endpoint, "http://") {
				return fmt.Errorf("storage endpoint must use TLS in production")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
