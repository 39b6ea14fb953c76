package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the monitoring service.
type Config struct {
	// HTTP listen address
	Addr string
	// Log level (zerolog level string)
	LogLevel string
	// Optional API key; when set, mutating endpoints require X-API-Key
	APIKey string

	// Storage backend: sqlite or memory
	StorageBackend string
	// SQLite database path
	SQLitePath string

	// Simulation tick interval per machine
	Interval time.Duration
	// Seed for the simulators; 0 means time-seeded
	Seed int64
	// Optional JSON file with machine profiles overriding the builtins
	ProfileFile string

	Kafka KafkaConfig
	MQTT  MQTTConfig
}

// KafkaConfig configures the downstream reading stream.
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	Producer ProducerConfig
}

// ProducerConfig tunes the pooled stream producer.
type ProducerConfig struct {
	PoolSize     int
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Compression  string
}

// MQTTConfig configures the optional real-sensor ingest path.
type MQTTConfig struct {
	Enabled     bool
	BrokerURL   string
	ClientID    string
	TopicPrefix string
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		Addr:           ":8080",
		LogLevel:       "info",
		StorageBackend: "sqlite",
		SQLitePath:     "plantwatch.db",
		Interval:       2 * time.Second,
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092"},
			Topic:   "plantwatch.readings",
			Producer: ProducerConfig{
				PoolSize:     4,
				BatchSize:    100,
				BatchTimeout: 100 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				MaxRetries:   3,
				RetryBackoff: 100 * time.Millisecond,
				Compression:  "snappy",
			},
		},
		MQTT: MQTTConfig{
			Enabled:     false,
			BrokerURL:   "tcp://localhost:1883",
			TopicPrefix: "plantwatch",
		},
	}
}

// Load builds the config from defaults plus environment overrides.
func Load() *Config {
	cfg := Default()

	setString(&cfg.Addr, "PLANTWATCH_ADDR")
	setString(&cfg.LogLevel, "PLANTWATCH_LOG_LEVEL")
	setString(&cfg.APIKey, "PLANTWATCH_API_KEY")
	setString(&cfg.StorageBackend, "PLANTWATCH_STORAGE")
	setString(&cfg.SQLitePath, "PLANTWATCH_SQLITE_PATH")
	setString(&cfg.ProfileFile, "PLANTWATCH_PROFILES")
	setDuration(&cfg.Interval, "PLANTWATCH_INTERVAL")
	setInt64(&cfg.Seed, "PLANTWATCH_SEED")

	setBool(&cfg.Kafka.Enabled, "PLANTWATCH_KAFKA_ENABLED")
	if v := os.Getenv("PLANTWATCH_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString(&cfg.Kafka.Topic, "PLANTWATCH_KAFKA_TOPIC")

	setBool(&cfg.MQTT.Enabled, "PLANTWATCH_MQTT_ENABLED")
	setString(&cfg.MQTT.BrokerURL, "PLANTWATCH_MQTT_BROKER")
	setString(&cfg.MQTT.ClientID, "PLANTWATCH_MQTT_CLIENT_ID")
	setString(&cfg.MQTT.TopicPrefix, "PLANTWATCH_MQTT_PREFIX")

	return cfg
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
