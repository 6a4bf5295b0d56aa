package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	domainconfig "github.com/narulaskaran/social-graph/domain/config"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreBadger   = "badger"
	StoreDynamoDB = "dynamodb"
	StoreNeo4j    = "neo4j"
)

// Cache backends
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all application configuration. Values come from defaults,
// then the YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"server_address"`
	Environment     string        `yaml:"environment"`
	Debug           bool          `yaml:"debug"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda"`

	Store     StoreConfig     `yaml:"store"`
	AWS       AWSConfig       `yaml:"aws"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Logging and observability
	LogLevel      string `yaml:"log_level"`
	ServiceName   string `yaml:"service_name"`
	EnableMetrics bool   `yaml:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing"`

	Domain domainconfig.DomainConfig `yaml:"domain"`

	// path of the YAML file this config was read from, if any
	file string
}

// StoreConfig selects and configures the GraphStore variant
type StoreConfig struct {
	Backend          string        `yaml:"backend"`
	SQLitePath       string        `yaml:"sqlite_path"`
	PostgresDSN      string        `yaml:"postgres_dsn"`
	BadgerPath       string        `yaml:"badger_path"`
	BadgerGC         time.Duration `yaml:"badger_gc_interval"`
	DynamoDBTable    string        `yaml:"dynamodb_table"`
	DynamoDBEndpoint string        `yaml:"dynamodb_endpoint"` // DynamoDB Local
	Neo4jURI         string        `yaml:"neo4j_uri"`
	Neo4jUser        string        `yaml:"neo4j_user"`
	Neo4jPassword    string        `yaml:"neo4j_password"`
	Neo4jDatabase    string        `yaml:"neo4j_database"`
	SlowThreshold    time.Duration `yaml:"slow_threshold"`
}

// AWSConfig covers the AWS integrations
type AWSConfig struct {
	Region           string `yaml:"region"`
	EventBusName     string `yaml:"event_bus_name"`
	EnableEvents     bool   `yaml:"enable_events"`
	MetricsNamespace string `yaml:"metrics_namespace"`
	EnableCloudWatch bool   `yaml:"enable_cloudwatch"`
}

// CacheConfig configures the graph bundle cache
type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
}

// RateLimitConfig configures per-client throttling. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// Distributed counts requests in the DynamoDB table so limits hold
	// across Lambda instances
	Distributed bool `yaml:"distributed"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		ServerAddress:   ":8080",
		Environment:     "development",
		ShutdownTimeout: 15 * time.Second,
		CORSOrigins:     []string{"*"},
		Store: StoreConfig{
			Backend:       StoreSQLite,
			SQLitePath:    "socialgraph.db",
			BadgerPath:    "data/badger",
			BadgerGC:      5 * time.Minute,
			DynamoDBTable: "social-graph",
			Neo4jDatabase: "neo4j",
			SlowThreshold: 500 * time.Millisecond,
		},
		AWS: AWSConfig{
			Region:           "us-west-2",
			MetricsNamespace: "SocialGraph",
		},
		Cache: CacheConfig{
			Backend:       CacheMemory,
			TTL:           time.Minute,
			SweepInterval: time.Minute,
			RedisAddr:     "localhost:6379",
			RedisPrefix:   "socialgraph:",
		},
		RateLimit: RateLimitConfig{
			Burst: 20,
		},
		LogLevel:      "info",
		ServiceName:   "social-graph",
		EnableMetrics: true,
		Domain:        *domainconfig.DefaultDomainConfig(),
	}
}

// LoadConfig loads configuration from defaults, the optional CONFIG_FILE and
// the environment, then validates it
func LoadConfig() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is LoadConfig with an explicit file path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		cfg.file = path
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// File returns the YAML file the config was read from
func (c *Config) File() string {
	return c.file
}

func (c *Config) applyEnv() {
	setString(&c.ServerAddress, "SERVER_ADDRESS")
	setString(&c.Environment, "ENVIRONMENT")
	setBool(&c.Debug, "DEBUG")
	setDuration(&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	setBool(&c.IsLambda, "IS_LAMBDA")
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		c.IsLambda = true
	}

	setString(&c.Store.Backend, "STORE_BACKEND")
	setString(&c.Store.SQLitePath, "SQLITE_PATH")
	setString(&c.Store.PostgresDSN, "POSTGRES_DSN")
	setString(&c.Store.BadgerPath, "BADGER_PATH")
	setDuration(&c.Store.BadgerGC, "BADGER_GC_INTERVAL")
	setString(&c.Store.DynamoDBTable, "TABLE_NAME")
	setString(&c.Store.DynamoDBTable, "DYNAMODB_TABLE")
	setString(&c.Store.DynamoDBEndpoint, "DYNAMODB_ENDPOINT")
	setString(&c.Store.Neo4jURI, "NEO4J_URI")
	setString(&c.Store.Neo4jUser, "NEO4J_USER")
	setString(&c.Store.Neo4jPassword, "NEO4J_PASSWORD")
	setString(&c.Store.Neo4jDatabase, "NEO4J_DATABASE")
	setDuration(&c.Store.SlowThreshold, "STORE_SLOW_THRESHOLD")

	setString(&c.AWS.Region, "AWS_REGION")
	setString(&c.AWS.EventBusName, "EVENT_BUS_NAME")
	setBool(&c.AWS.EnableEvents, "ENABLE_EVENTS")
	setString(&c.AWS.MetricsNamespace, "METRICS_NAMESPACE")
	setBool(&c.AWS.EnableCloudWatch, "ENABLE_CLOUDWATCH")

	setString(&c.Cache.Backend, "CACHE_BACKEND")
	setDuration(&c.Cache.TTL, "CACHE_TTL")
	setString(&c.Cache.RedisAddr, "REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	setInt(&c.Cache.RedisDB, "REDIS_DB")
	setString(&c.Cache.RedisPrefix, "REDIS_PREFIX")

	setFloat(&c.RateLimit.RPS, "RATE_LIMIT_RPS")
	setInt(&c.RateLimit.Burst, "RATE_LIMIT_BURST")
	setBool(&c.RateLimit.Distributed, "RATE_LIMIT_DISTRIBUTED")

	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.ServiceName, "SERVICE_NAME")
	setBool(&c.EnableMetrics, "ENABLE_METRICS")
	setBool(&c.EnableTracing, "ENABLE_TRACING")

	setInt(&c.Domain.MaxPeoplePerSubmission, "MAX_PEOPLE_PER_SUBMISSION")
	setInt(&c.Domain.MaxNameLength, "MAX_NAME_LENGTH")
	setInt(&c.Domain.ConflictRetries, "CONFLICT_RETRIES")
}

// Validate checks that the selected backends have what they need
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StoreSQLite:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres store")
		}
	case StoreBadger:
		if c.Store.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required for the badger store")
		}
	case StoreDynamoDB:
		if c.Store.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb store")
		}
	case StoreNeo4j:
		if c.Store.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required for the neo4j store")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis cache")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend != CacheNone && c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS cannot be negative")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive")
	}
	if c.RateLimit.Distributed && c.Store.DynamoDBTable == "" {
		return fmt.Errorf("a distributed rate limit needs DYNAMODB_TABLE")
	}

	if c.AWS.EnableEvents && c.AWS.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return c.Domain.Validate()
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value == "true" || value == "1" || value == "yes"
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			*dst = v
		}
	}
}

func setFloat(dst *float64, key string) {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			*dst = v
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if value := os.Getenv(key); value != "" {
		if v, err := time.ParseDuration(value); err == nil {
			*dst = v
		}
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
