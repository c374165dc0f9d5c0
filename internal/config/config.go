package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Configuration struct {
	Server       ServerConfig       `json:"server" mapstructure:"server"`
	Security     SecurityConfig     `json:"security" mapstructure:"security"`
	Logging      LoggingConfig      `json:"logging" mapstructure:"logging"`
	Database     DatabaseConfig     `json:"database" mapstructure:"database"`
	Lock         LockConfig         `json:"lock" mapstructure:"lock"`
	Finalization FinalizationConfig `json:"finalization" mapstructure:"finalization"`
	Ledger       LedgerConfig       `json:"ledger" mapstructure:"ledger"`
	RateLimit    RateLimitConfig    `json:"rate_limit" mapstructure:"rate_limit"`
	Tracing      TracingConfig      `json:"tracing" mapstructure:"tracing"`
}

type ServerConfig struct {
	Port         string        `json:"port" mapstructure:"port"`
	Environment  string        `json:"environment" mapstructure:"environment"`
	ReadTimeout  time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
}

type SecurityConfig struct {
	JWTSecret   string        `json:"jwt_secret" mapstructure:"jwt_secret"`
	JWTIssuer   string        `json:"jwt_issuer" mapstructure:"jwt_issuer"`
	JWTAudience string        `json:"jwt_audience" mapstructure:"jwt_audience"`
	ClockSkew   time.Duration `json:"clock_skew" mapstructure:"clock_skew"`
}

type LoggingConfig struct {
	Level    string `json:"level" mapstructure:"level"`
	FilePath string `json:"file_path" mapstructure:"file_path"`
	Format   string `json:"format" mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver          string `json:"driver" mapstructure:"driver"`
	Host            string `json:"host" mapstructure:"host"`
	Port            string `json:"port" mapstructure:"port"`
	Username        string `json:"username" mapstructure:"username"`
	Password        string `json:"password" mapstructure:"password"`
	Name            string `json:"name" mapstructure:"name"`
	SSLMode         string `json:"ssl_mode" mapstructure:"ssl_mode"`
	Path            string `json:"path" mapstructure:"path"`
	MaxIdleConns    int    `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `json:"max_open_conns" mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	LogLevel        string `json:"log_level" mapstructure:"log_level"`
}

// LockConfig selects the per-document lock backend. "memory" is only safe
// with a single server process.
type LockConfig struct {
	Backend        string        `json:"backend" mapstructure:"backend"`
	RedisAddr      string        `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword  string        `json:"redis_password" mapstructure:"redis_password"`
	RedisDB        int           `json:"redis_db" mapstructure:"redis_db"`
	TTL            time.Duration `json:"ttl" mapstructure:"ttl"`
	RetryInterval  time.Duration `json:"retry_interval" mapstructure:"retry_interval"`
	AcquireTimeout time.Duration `json:"acquire_timeout" mapstructure:"acquire_timeout"`
}

type FinalizationConfig struct {
	Workers        int           `json:"workers" mapstructure:"workers"`
	QueueSize      int           `json:"queue_size" mapstructure:"queue_size"`
	MaxAttempts    int           `json:"max_attempts" mapstructure:"max_attempts"`
	BaseBackoff    time.Duration `json:"base_backoff" mapstructure:"base_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff" mapstructure:"max_backoff"`
	AttemptTimeout time.Duration `json:"attempt_timeout" mapstructure:"attempt_timeout"`
	SweepInterval  time.Duration `json:"sweep_interval" mapstructure:"sweep_interval"`
	RendererURL    string        `json:"renderer_url" mapstructure:"renderer_url"`
}

type LedgerConfig struct {
	DefaultPageSize int `json:"default_page_size" mapstructure:"default_page_size"`
	MaxPageSize     int `json:"max_page_size" mapstructure:"max_page_size"`
	VerifyBatchSize int `json:"verify_batch_size" mapstructure:"verify_batch_size"`
}

type RateLimitConfig struct {
	Enabled           bool    `json:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `json:"burst" mapstructure:"burst"`
}

// TracingConfig drives the OTLP span exporter. Disabled tracing keeps the
// global no-op provider.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	Endpoint    string  `json:"endpoint" mapstructure:"endpoint"`
	Insecure    bool    `json:"insecure" mapstructure:"insecure"`
	SampleRate  float64 `json:"sample_rate" mapstructure:"sample_rate"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
}

var (
	config     *Configuration
	configLock sync.RWMutex
)

const envPrefix = "DOCUFEN"

// Load reads configuration with precedence defaults < file < DOCUFEN_* env.
// An empty path or a missing file leaves the defaults in place.
func Load(filePath string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v, defaultConfig())

	if filePath != "" {
		if _, err := os.Stat(filePath); err == nil {
			v.SetConfigFile(filePath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", filePath, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Configuration{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	configLock.Lock()
	config = cfg
	configLock.Unlock()
	return cfg, nil
}

func setDefaults(v *viper.Viper, def *Configuration) {
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.environment", def.Server.Environment)
	v.SetDefault("server.read_timeout", def.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", def.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", def.Server.IdleTimeout)

	v.SetDefault("security.jwt_secret", def.Security.JWTSecret)
	v.SetDefault("security.jwt_issuer", def.Security.JWTIssuer)
	v.SetDefault("security.jwt_audience", def.Security.JWTAudience)
	v.SetDefault("security.clock_skew", def.Security.ClockSkew)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.file_path", def.Logging.FilePath)
	v.SetDefault("logging.format", def.Logging.Format)

	v.SetDefault("database.driver", def.Database.Driver)
	v.SetDefault("database.host", def.Database.Host)
	v.SetDefault("database.port", def.Database.Port)
	v.SetDefault("database.username", def.Database.Username)
	v.SetDefault("database.password", def.Database.Password)
	v.SetDefault("database.name", def.Database.Name)
	v.SetDefault("database.ssl_mode", def.Database.SSLMode)
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("database.max_idle_conns", def.Database.MaxIdleConns)
	v.SetDefault("database.max_open_conns", def.Database.MaxOpenConns)
	v.SetDefault("database.conn_max_lifetime", def.Database.ConnMaxLifetime)
	v.SetDefault("database.log_level", def.Database.LogLevel)

	v.SetDefault("lock.backend", def.Lock.Backend)
	v.SetDefault("lock.redis_addr", def.Lock.RedisAddr)
	v.SetDefault("lock.redis_password", def.Lock.RedisPassword)
	v.SetDefault("lock.redis_db", def.Lock.RedisDB)
	v.SetDefault("lock.ttl", def.Lock.TTL)
	v.SetDefault("lock.retry_interval", def.Lock.RetryInterval)
	v.SetDefault("lock.acquire_timeout", def.Lock.AcquireTimeout)

	v.SetDefault("finalization.workers", def.Finalization.Workers)
	v.SetDefault("finalization.queue_size", def.Finalization.QueueSize)
	v.SetDefault("finalization.max_attempts", def.Finalization.MaxAttempts)
	v.SetDefault("finalization.base_backoff", def.Finalization.BaseBackoff)
	v.SetDefault("finalization.max_backoff", def.Finalization.MaxBackoff)
	v.SetDefault("finalization.attempt_timeout", def.Finalization.AttemptTimeout)
	v.SetDefault("finalization.sweep_interval", def.Finalization.SweepInterval)
	v.SetDefault("finalization.renderer_url", def.Finalization.RendererURL)

	v.SetDefault("ledger.default_page_size", def.Ledger.DefaultPageSize)
	v.SetDefault("ledger.max_page_size", def.Ledger.MaxPageSize)
	v.SetDefault("ledger.verify_batch_size", def.Ledger.VerifyBatchSize)

	v.SetDefault("rate_limit.enabled", def.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_second", def.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", def.RateLimit.Burst)

	v.SetDefault("tracing.enabled", def.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", def.Tracing.Endpoint)
	v.SetDefault("tracing.insecure", def.Tracing.Insecure)
	v.SetDefault("tracing.sample_rate", def.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", def.Tracing.ServiceName)
}

func Validate(cfg *Configuration) error {
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver)
	}
	switch cfg.Lock.Backend {
	case "memory":
	case "redis":
		if cfg.Lock.RedisAddr == "" {
			return errors.New("lock.redis_addr is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("lock.backend must be memory or redis, got %q", cfg.Lock.Backend)
	}
	if cfg.Finalization.Workers < 1 {
		return errors.New("finalization.workers must be at least 1")
	}
	if cfg.Finalization.MaxAttempts < 1 {
		return errors.New("finalization.max_attempts must be at least 1")
	}
	if cfg.Ledger.DefaultPageSize < 1 || cfg.Ledger.MaxPageSize < cfg.Ledger.DefaultPageSize {
		return fmt.Errorf("ledger page sizes are inconsistent: default=%d max=%d",
			cfg.Ledger.DefaultPageSize, cfg.Ledger.MaxPageSize)
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		return errors.New("tracing.endpoint is required when tracing is enabled")
	}
	if cfg.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret is required")
	}
	return nil
}

func GetConfig() *Configuration {
	configLock.RLock()
	defer configLock.RUnlock()
	return config
}

func defaultConfig() *Configuration {
	return &Configuration{
		Server: ServerConfig{
			Port:         "8000",
			Environment:  "development",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:   "docufen-development-secret",
			JWTIssuer:   "docufen",
			JWTAudience: "docufen-api",
			ClockSkew:   30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:    "info",
			FilePath: "logs/docufen.log",
			Format:   "json",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5432",
			Username:        "postgres",
			Password:        "password",
			Name:            "docufen",
			SSLMode:         "disable",
			Path:            "docufen.db",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: 300,
			LogLevel:        "warn",
		},
		Lock: LockConfig{
			Backend:        "memory",
			RedisAddr:      "localhost:6379",
			TTL:            30 * time.Second,
			RetryInterval:  25 * time.Millisecond,
			AcquireTimeout: 10 * time.Second,
		},
		Finalization: FinalizationConfig{
			Workers:        4,
			QueueSize:      256,
			MaxAttempts:    5,
			BaseBackoff:    500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
			AttemptTimeout: 2 * time.Minute,
			SweepInterval:  time.Minute,
			RendererURL:    "http://localhost:9090/render",
		},
		Ledger: LedgerConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
			VerifyBatchSize: 500,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			Insecure:    true,
			SampleRate:  1.0,
			ServiceName: "docufen-engine",
		},
	}
}

func LogConfig(logger *zap.Logger) {
	configLock.RLock()
	defer configLock.RUnlock()

	redactedConfig := *config
	redactedConfig.Security.JWTSecret = "[REDACTED]"
	redactedConfig.Database.Password = "[REDACTED]"
	redactedConfig.Lock.RedisPassword = "[REDACTED]"

	logger.Info("Application configuration",
		zap.String("port", redactedConfig.Server.Port),
		zap.String("environment", redactedConfig.Server.Environment),
		zap.Duration("read_timeout", redactedConfig.Server.ReadTimeout),
		zap.Duration("write_timeout", redactedConfig.Server.WriteTimeout),
		zap.String("database_driver", redactedConfig.Database.Driver),
		zap.String("database_host", redactedConfig.Database.Host),
		zap.String("database_name", redactedConfig.Database.Name),
		zap.String("lock_backend", redactedConfig.Lock.Backend),
		zap.Int("finalization_workers", redactedConfig.Finalization.Workers),
		zap.Int("finalization_max_attempts", redactedConfig.Finalization.MaxAttempts),
		zap.String("renderer_url", redactedConfig.Finalization.RendererURL),
		zap.Bool("rate_limit_enabled", redactedConfig.RateLimit.Enabled),
		zap.Bool("tracing_enabled", redactedConfig.Tracing.Enabled),
	)
}
