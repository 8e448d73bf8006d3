package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alpi-dev/alpi/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	AMQP         AMQPConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Metrics      MetricsConfig
	SLA          SLAConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	EventsChannel string
}

// AMQPConfig configures the event exchange. An empty URL disables it.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend      string // prometheus, otel or none
	OTLPEndpoint string
	OTLPInsecure bool
}

// SLAConfig holds the fallback SLA hours per priority.
type SLAConfig struct {
	DefaultsFile string
	Hours        map[domain.TicketPriority]int
}

// slaFile is the YAML layout of SLA_DEFAULTS_FILE.
type slaFile struct {
	P0 int `yaml:"p0_critical"`
	P1 int `yaml:"p1_high"`
	P2 int `yaml:"p2_medium"`
	P3 int `yaml:"p3_low"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "alpi"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:      os.Getenv("REDIS_PASSWORD"),
			DB:            redisDB,
			EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "alpi.events"),
		},
		AMQP: AMQPConfig{
			URL:      os.Getenv("AMQP_URL"),
			Exchange: getEnv("AMQP_EXCHANGE", "alpi.events"),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Metrics: MetricsConfig{
			Backend:      strings.ToLower(getEnv("METRICS_BACKEND", "prometheus")),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			OTLPInsecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		SLA: SLAConfig{
			DefaultsFile: os.Getenv("SLA_DEFAULTS_FILE"),
			Hours: map[domain.TicketPriority]int{
				domain.TicketPriorityP0Critical: getEnvAsInt("SLA_P0_HOURS", 4),
				domain.TicketPriorityP1High:     getEnvAsInt("SLA_P1_HOURS", 24),
				domain.TicketPriorityP2Medium:   getEnvAsInt("SLA_P2_HOURS", 168),
				domain.TicketPriorityP3Low:      getEnvAsInt("SLA_P3_HOURS", 720),
			},
		},
	}

	if cfg.SLA.DefaultsFile != "" {
		if err := cfg.SLA.overlayFile(cfg.SLA.DefaultsFile); err != nil {
			return nil, err
		}
	}

	switch cfg.Metrics.Backend {
	case "prometheus", "otel", "none":
	default:
		return nil, fmt.Errorf("invalid METRICS_BACKEND %q", cfg.Metrics.Backend)
	}

	return cfg, nil
}

// overlayFile replaces the hours of every priority the YAML file sets to a
// positive value.
func (s *SLAConfig) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read SLA defaults file: %w", err)
	}
	var parsed slaFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse SLA defaults file %s: %w", path, err)
	}
	for priority, hours := range map[domain.TicketPriority]int{
		domain.TicketPriorityP0Critical: parsed.P0,
		domain.TicketPriorityP1High:     parsed.P1,
		domain.TicketPriorityP2Medium:   parsed.P2,
		domain.TicketPriorityP3Low:      parsed.P3,
	} {
		if hours > 0 {
			s.Hours[priority] = hours
		}
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
