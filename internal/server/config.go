package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openjobspec/ojs-retry/internal/scheduler"
	"github.com/openjobspec/ojs-retry/internal/state"
)

// Config holds server configuration from environment variables.
type Config struct {
	Port                string
	GRPCPort            string
	APIKey              string
	AllowInsecureNoAuth bool
	LogFormat           string // json or text
	LogLevel            string

	Store         string // memory, dynamodb, postgres or redis
	DynamoDBTable string
	PostgresURL   string
	RedisURL      string

	AWSRegion      string
	AWSEndpointURL string // For LocalStack
	SQSEvents      bool
	SQSQueuePrefix string
	UseFIFO        bool

	CatalogPath        string
	CatalogReloadCron  string
	SideChannelTimeout time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoadConfig reads configuration from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		Port:                getEnv("OJS_PORT", "8080"),
		GRPCPort:            getEnv("OJS_GRPC_PORT", "9090"),
		APIKey:              getEnv("OJS_API_KEY", ""),
		AllowInsecureNoAuth: getEnvBool("OJS_ALLOW_INSECURE_NO_AUTH", false),
		LogFormat:           strings.ToLower(getEnv("OJS_LOG_FORMAT", "json")),
		LogLevel:            strings.ToLower(getEnv("OJS_LOG_LEVEL", "info")),

		Store:         strings.ToLower(getEnv("OJS_STORE", state.BackendMemory)),
		DynamoDBTable: getEnv("DYNAMODB_TABLE", "ojs-retry-attempts"),
		PostgresURL:   getEnv("DATABASE_URL", ""),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""), // Empty = real AWS
		SQSEvents:      getEnvBool("OJS_SQS_EVENTS", false),
		SQSQueuePrefix: getEnv("SQS_QUEUE_PREFIX", "ojs"),
		UseFIFO:        getEnvBool("SQS_USE_FIFO", false),

		CatalogPath:        getEnv("OJS_CATALOG_PATH", ""),
		CatalogReloadCron:  getEnv("OJS_CATALOG_RELOAD_CRON", scheduler.DefaultCatalogReloadSpec),
		SideChannelTimeout: getEnvDuration("OJS_SIDE_CHANNEL_TIMEOUT", 250*time.Millisecond),

		ReadTimeout:     getEnvDuration("OJS_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvDuration("OJS_WRITE_TIMEOUT", 0), // SSE streams are long-lived
		IdleTimeout:     getEnvDuration("OJS_IDLE_TIMEOUT", 120*time.Second),
		ShutdownTimeout: getEnvDuration("OJS_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// Validate checks settings that would otherwise fail later at startup.
func (c Config) Validate() error {
	switch c.Store {
	case state.BackendMemory, state.BackendDynamoDB, state.BackendRedis:
	case state.BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("OJS_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown OJS_STORE %q (want memory, dynamodb, postgres or redis)", c.Store)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unknown OJS_LOG_FORMAT %q (want json or text)", c.LogFormat)
	}
	if c.CatalogPath != "" {
		if _, err := scheduler.ParseSchedule(c.CatalogReloadCron); err != nil {
			return fmt.Errorf("OJS_CATALOG_RELOAD_CRON: %w", err)
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("250ms") or whole seconds ("30").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
