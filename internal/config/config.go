package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fjod/go_cart/storefront/internal/logger"
)

const defaultOrigin = "https://larek-api.nomoreparties.co"

type Config struct {
	App     AppConfig
	HTTP    HTTPConfig
	GRPC    GRPCConfig
	API     APIConfig
	Redis   RedisConfig
	Journal JournalConfig
	Kafka   KafkaConfig
	Session SessionConfig
	Log     logger.Config
}

type AppConfig struct {
	Name string
	Env  string
}

type HTTPConfig struct {
	Port               string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	Metrics            bool
	TrustProxy         bool
	// session creation per client address
	SessionRate  float64
	SessionBurst int
}

type GRPCConfig struct {
	Port        string
	WarmUpRetry time.Duration
}

// APIConfig points at the shop API. BaseURL and CDNURL are derived from
// Origin unless set explicitly.
type APIConfig struct {
	Origin           string
	BaseURL          string
	CDNURL           string
	Timeout          time.Duration
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type JournalConfig struct {
	Enabled        bool
	Path           string
	MigrationsPath string
	Timeout        time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	GroupID string
}

type SessionConfig struct {
	SubmitTimeout time.Duration
	IdleTTL       time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

// Load reads config.toml from the working directory or ./config when present,
// then lets STOREFRONT_* environment variables override it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Port:               v.GetString("http.port"),
			RequestTimeout:     v.GetDuration("http.request_timeout"),
			ShutdownTimeout:    v.GetDuration("http.shutdown_timeout"),
			MaxRequestBodySize: v.GetInt64("http.max_request_body_size"),
			Metrics:            v.GetBool("http.metrics"),
			TrustProxy:         v.GetBool("http.trust_proxy"),
			SessionRate:        v.GetFloat64("http.session_rate"),
			SessionBurst:       v.GetInt("http.session_burst"),
		},
		GRPC: GRPCConfig{
			Port:        v.GetString("grpc.port"),
			WarmUpRetry: v.GetDuration("grpc.warmup_retry"),
		},
		API: APIConfig{
			Origin:           v.GetString("api.origin"),
			BaseURL:          v.GetString("api.base_url"),
			CDNURL:           v.GetString("api.cdn_url"),
			Timeout:          v.GetDuration("api.timeout"),
			BreakerFailures:  v.GetUint32("api.breaker_failures"),
			BreakerOpenDelay: v.GetDuration("api.breaker_open_delay"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		Journal: JournalConfig{
			Enabled:        v.GetBool("journal.enabled"),
			Path:           v.GetString("journal.path"),
			MigrationsPath: v.GetString("journal.migrations_path"),
			Timeout:        v.GetDuration("journal.timeout"),
		},
		Kafka: KafkaConfig{
			Enabled: v.GetBool("kafka.enabled"),
			Brokers: splitList(v.GetStringSlice("kafka.brokers")),
			GroupID: v.GetString("kafka.group_id"),
		},
		Session: SessionConfig{
			SubmitTimeout: v.GetDuration("session.submit_timeout"),
			IdleTTL:       v.GetDuration("session.idle_ttl"),
			SweepInterval: v.GetDuration("session.sweep_interval"),
			MaxSessions:   v.GetInt("session.max_sessions"),
		},
		Log: logger.Config{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Output:     v.GetString("log.output"),
			TimeFormat: v.GetString("log.time_format"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront")
	v.SetDefault("app.env", "development")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_request_body_size", 1<<20) // 1MB
	v.SetDefault("http.metrics", true)
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("http.session_rate", 1.0)
	v.SetDefault("http.session_burst", 10)

	v.SetDefault("grpc.port", "50061")
	v.SetDefault("grpc.warmup_retry", 5*time.Second)

	v.SetDefault("api.origin", defaultOrigin)
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.breaker_failures", 5)
	v.SetDefault("api.breaker_open_delay", 30*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.ttl", 15*time.Minute)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "storefront.db")
	v.SetDefault("journal.migrations_path", "internal/repository/migrations")
	v.SetDefault("journal.timeout", 2*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.group_id", "storefront")

	v.SetDefault("session.submit_timeout", 10*time.Second)
	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("session.max_sessions", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

// applyDefaults fills values that depend on other keys.
func applyDefaults(cfg *Config) {
	origin := strings.TrimRight(cfg.API.Origin, "/")
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = origin + "/api/weblarek"
	}
	if cfg.API.CDNURL == "" {
		cfg.API.CDNURL = origin + "/content/weblarek"
	}
	if cfg.App.Env == "production" && cfg.Log.Format == "console" {
		cfg.Log.Format = "json"
	}
}

func (c *Config) validate() error {
	if c.HTTP.Port == "" {
		return errors.New("http.port is required")
	}
	if c.GRPC.Port == "" {
		return errors.New("grpc.port is required")
	}
	if c.HTTP.Port == c.GRPC.Port {
		return fmt.Errorf("http.port and grpc.port must differ, both are %s", c.HTTP.Port)
	}
	for _, raw := range []string{c.API.BaseURL, c.API.CDNURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid api url %q", raw)
		}
	}
	if c.API.Timeout <= 0 || c.Session.SubmitTimeout <= 0 || c.HTTP.RequestTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.Session.SweepInterval <= 0 || c.GRPC.WarmUpRetry <= 0 {
		return errors.New("session.sweep_interval and grpc.warmup_retry must be positive")
	}
	if c.HTTP.SessionRate < 0 || c.HTTP.SessionBurst < 0 {
		return errors.New("http.session_rate and http.session_burst must not be negative")
	}
	if c.Session.MaxSessions < 0 {
		return errors.New("session.max_sessions must not be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return errors.New("journal.path is required when the journal is enabled")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log.format %q", c.Log.Format)
	}
	return nil
}

// splitList accepts both a toml array and a comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
