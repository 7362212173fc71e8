package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Supported geocoding providers.
const (
	ProviderGoogle = "google"
	ProviderMapbox = "mapbox"
)

// Supported cache backends.
const (
	CacheMemory   = "memory"
	CacheFile     = "file"
	CachePostgres = "postgres"
	CacheRedis    = "redis"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Geocoding provider.
	Provider        string
	GoogleAPIKey    string
	MapboxToken     string
	GeocoderBaseURL string
	GeocoderTimeout time.Duration
	SingleFlight    bool

	// Cache backend.
	CacheBackend    string
	CacheMemorySize int
	CacheDir        string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Kafka request pipeline.
	PipelineEnabled    bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	geocoderTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("GEOCODER_TIMEOUT", "5s"))
	if err != nil || geocoderTimeout <= 0 {
		return nil, errors.New("invalid GEOCODER_TIMEOUT")
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	memorySize, err := parsePositiveInt("CACHE_MEMORY_SIZE", 10000)
	if err != nil {
		return nil, err
	}

	redisDB, err := parseNonNegativeInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Provider:        strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER_PROVIDER", ProviderGoogle)),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		MapboxToken:     os.Getenv("MAPBOX_TOKEN"),
		GeocoderBaseURL: os.Getenv("GEOCODER_BASE_URL"),
		GeocoderTimeout: geocoderTimeout,
		SingleFlight:    os.Getenv("GEOCODE_SINGLEFLIGHT") == "true",

		CacheBackend:    strings.ToLower(sharedcfg.EnvOrDefault("CACHE_BACKEND", CacheMemory)),
		CacheMemorySize: memorySize,
		CacheDir:        os.Getenv("CACHE_DIR"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,

		PipelineEnabled:    os.Getenv("PIPELINE_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "geocode-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "geocode-responses"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "geocode-cache-service"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected provider and cache backend are fully configured.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGoogle:
		if c.GoogleAPIKey == "" {
			return errors.New("GEOCODER_PROVIDER is google but GOOGLE_API_KEY is not set")
		}
	case ProviderMapbox:
		if c.MapboxToken == "" {
			return errors.New("GEOCODER_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
		}
	default:
		return fmt.Errorf("unsupported GEOCODER_PROVIDER %q", c.Provider)
	}

	switch c.CacheBackend {
	case CacheMemory, CacheFile:
	case CachePostgres:
		if c.DatabaseURL == "" {
			return errors.New("CACHE_BACKEND is postgres but DATABASE_URL is not set")
		}
	case CacheRedis:
		if c.RedisAddr == "" {
			return errors.New("CACHE_BACKEND is redis but REDIS_ADDR is not set")
		}
	default:
		return fmt.Errorf("unsupported CACHE_BACKEND %q", c.CacheBackend)
	}

	if c.PipelineEnabled {
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required")
		}
		if c.KafkaSourceTopic == "" {
			return errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if c.KafkaSinkTopic == "" {
			return errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	return nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return n, nil
}

func parseNonNegativeInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", name)
	}
	return n, nil
}
