package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	NodeID      int64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisURL         string
	IdentityCacheTTL time.Duration

	OpsAddr string

	Ingest    IngestConfig
	Telemetry TelemetryConfig
}

// IngestConfig controls which crawl outputs a worker process consumes.
type IngestConfig struct {
	InputDir     string
	Stores       []string
	StoresConfig string
}

// TelemetryConfig selects log output and whether spans and OTel metrics leave the process.
type TelemetryConfig struct {
	LogLevel  string
	LogFormat string

	OTLPEnabled  bool
	OTLPEndpoint string
	OTLPProtocol string
	SampleRatio  float64
}

// DebugLogging reports whether stack traces should accompany error logs.
func (c Config) DebugLogging() bool {
	if c.Telemetry.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "matval"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		NodeID:            int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "supermarket_items"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "matval.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		RedisURL:          strings.TrimSpace(getenv("REDIS_URL", "")),
		IdentityCacheTTL:  getenvDuration("IDENTITY_CACHE_TTL", 30*time.Minute),
		OpsAddr:           getenv("OPS_ADDR", ":9090"),
		Ingest: IngestConfig{
			InputDir:     getenv("INGEST_INPUT_DIR", "./data"),
			Stores:       parseList(getenv("INGEST_STORES", "")),
			StoresConfig: strings.TrimSpace(getenv("STORES_CONFIG", "")),
		},
		Telemetry: loadTelemetry(),
	}

	return cfg
}

func loadTelemetry() TelemetryConfig {
	protocol := getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	if traces := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}
	return TelemetryConfig{
		LogLevel:     strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:    strings.ToLower(getenv("LOG_FORMAT", "json")),
		OTLPEnabled:  getenvBool("OTEL_ENABLED", false),
		OTLPEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
		OTLPProtocol: strings.ToLower(strings.TrimSpace(protocol)),
		SampleRatio:  getenvRatio("OTEL_SAMPLING_RATIO", 0.1),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("[config] invalid bool %s=%q, using %t", key, value, def)
		return def
	}
	return parsed
}

// getenvRatio reads a sampling ratio, keeping the default when the value falls outside [0, 1].
func getenvRatio(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		log.Printf("[config] invalid ratio %s=%q, using %g", key, value, def)
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[config] invalid duration %s=%q, using %s", key, value, def)
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
