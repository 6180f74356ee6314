package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	globalConfig *Config
	loadOnce     sync.Once
)

// Config holds all runtime configuration loaded from the environment.
type Config struct {
	Environment string

	Server        ServerConfig
	Logging       LoggingConfig
	Redis         RedisConfig
	Postgres      PostgresConfig
	Clickhouse    ClickhouseConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Bucketing     BucketingConfig
	Hashing       HashingConfig
	Audit         AuditConfig
	Moderation    ModerationConfig
	Security      SecurityConfig
	AuthProvider  AuthProviderConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type ClickhouseConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string
	Index    string
}

type BucketingConfig struct {
	UserBuckets  int
	EventBuckets int
}

type HashingConfig struct {
	Pepper            string
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
}

type AuditConfig struct {
	QueueSize int
}

// ModerationConfig carries the classifier and decision thresholds. The
// defaults are the production values; overriding them is for tuning in
// staging, not for turning checks off.
type ModerationConfig struct {
	FlagConfidence   float64 // above this the content is flagged for attention
	ReviewConfidence float64 // above this a human must look at it
	RejectConfidence float64 // above this the content is rejected outright
}

// AuthProviderConfig points at the external identity service that owns
// credential storage. This service only asks it yes/no questions.
type AuthProviderConfig struct {
	VerifyURL string
	Timeout   time.Duration
}

type SecurityConfig struct {
	MaxLoginAttempts    int
	LoginWindow         time.Duration
	SessionTTL          time.Duration
	RememberedTTL       time.Duration
	MaxRecentDevices    int
	MaxRecentLogins     int
	MaxTrustedDevices   int
	SuspiciousLookback  time.Duration
	FailedLoginLookback time.Duration
}

// LoadConfig reads configuration from the environment, loading .env first
// when present. It is safe to call multiple times; the first call wins.
func LoadConfig() *Config {
	loadOnce.Do(func() {
		_ = godotenv.Load()

		globalConfig = &Config{
			Environment: getEnv("ENVIRONMENT", "development"),
			Server: ServerConfig{
				Host:         getEnv("SERVER_HOST", "0.0.0.0"),
				Port:         getEnvInt("SERVER_PORT", 8080),
				TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
				EnableTLS:    getEnvBool("ENABLE_TLS", false),
				AutoCert:     getEnvBool("AUTO_CERT", false),
				Domain:       getEnv("SERVER_DOMAIN", ""),
				CertFile:     getEnv("TLS_CERT_FILE", ""),
				KeyFile:      getEnv("TLS_KEY_FILE", ""),
				AutoCertDir:  getEnv("AUTO_CERT_DIR", "/var/cache/autocert"),
				Email:        getEnv("TLS_CONTACT_EMAIL", ""),
				ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
				IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
			Redis: RedisConfig{
				URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvInt("REDIS_DB", 0),
				PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
			},
			Postgres: PostgresConfig{
				URL:             getEnv("POSTGRES_URL", "postgres://localhost:5432/trust?sslmode=disable"),
				MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 25),
				MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
				ConnMaxLifetime: getEnvDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
			},
			Clickhouse: ClickhouseConfig{
				URL:      getEnv("CLICKHOUSE_URL", "http://localhost:8123"),
				Username: getEnv("CLICKHOUSE_USERNAME", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
				Database: getEnv("CLICKHOUSE_DATABASE", "trust"),
			},
			Kafka: KafkaConfig{
				Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
				Topic:   getEnv("KAFKA_TRUST_TOPIC", "trust-events"),
			},
			Elasticsearch: ElasticsearchConfig{
				URL:      getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
				Username: getEnv("ELASTICSEARCH_USERNAME", ""),
				Password: getEnv("ELASTICSEARCH_PASSWORD", ""),
				Index:    getEnv("ELASTICSEARCH_MODERATION_INDEX", "moderation-queue"),
			},
			Bucketing: BucketingConfig{
				UserBuckets:  getEnvInt("USER_BUCKETS", 1024),
				EventBuckets: getEnvInt("EVENT_BUCKETS", 256),
			},
			Hashing: HashingConfig{
				Pepper:            getEnv("HASH_PEPPER", ""),
				Argon2MemoryCost:  getEnvInt("ARGON2_MEMORY_COST", 65536),
				Argon2TimeCost:    getEnvInt("ARGON2_TIME_COST", 1),
				Argon2Parallelism: getEnvInt("ARGON2_PARALLELISM", 4),
			},
			Audit: AuditConfig{
				QueueSize: getEnvInt("AUDIT_QUEUE_SIZE", 1024),
			},
			Moderation: ModerationConfig{
				FlagConfidence:   getEnvFloat("MODERATION_FLAG_CONFIDENCE", 0.5),
				ReviewConfidence: getEnvFloat("MODERATION_REVIEW_CONFIDENCE", 0.7),
				RejectConfidence: getEnvFloat("MODERATION_REJECT_CONFIDENCE", 0.8),
			},
			AuthProvider: AuthProviderConfig{
				VerifyURL: getEnv("AUTH_PROVIDER_VERIFY_URL", "http://localhost:8081/internal/verify"),
				Timeout:   getEnvDuration("AUTH_PROVIDER_TIMEOUT", 5*time.Second),
			},
			Security: SecurityConfig{
				MaxLoginAttempts:    getEnvInt("MAX_LOGIN_ATTEMPTS", 5),
				LoginWindow:         getEnvDuration("LOGIN_ATTEMPT_WINDOW", 15*time.Minute),
				SessionTTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
				RememberedTTL:       getEnvDuration("REMEMBERED_SESSION_TTL", 30*24*time.Hour),
				MaxRecentDevices:    getEnvInt("MAX_RECENT_DEVICES", 3),
				MaxRecentLogins:     getEnvInt("MAX_RECENT_LOGINS", 10),
				MaxTrustedDevices:   getEnvInt("MAX_TRUSTED_DEVICES", 5),
				SuspiciousLookback:  getEnvDuration("SUSPICIOUS_LOOKBACK", 7*24*time.Hour),
				FailedLoginLookback: getEnvDuration("FAILED_LOGIN_LOOKBACK", 24*time.Hour),
			},
		}
	})

	return globalConfig
}

// Get returns the loaded configuration, loading defaults if needed.
func Get() *Config {
	if globalConfig == nil {
		return LoadConfig()
	}
	return globalConfig
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return !c.IsProduction()
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
