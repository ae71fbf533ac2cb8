package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/saaga0h/parking-edge/pkg/slotid"
	"github.com/spf13/pflag"
)

// Config holds the configuration for a parking edge agent
type Config struct {
	// MQTT configuration
	MQTTBroker   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClientID string

	// Redis configuration (monitor mirror only)
	EnableRedis   bool
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
	// RedisTTL expires mirrored keys; zero keeps them
	RedisTTL time.Duration

	// Service configuration
	ServiceName string
	HealthPort  int
	APIPort     int
	LogLevel    string

	// Topic namespace prefix, e.g. smartparking/slot1/event
	TopicNamespace string

	// Gating configuration
	OccupancyThresholdMM float64
	DecisionThreshold    float64
	SendIntervalMs       int
	PublishStateOnChange bool
	PublishQueueSize     int

	// Feature input and model
	FeaturesPath    string
	DistanceFeature string
	DefaultSlot     string
	ModelPath       string

	// Event journal (CBOR); empty disables
	JournalPath string

	// Monitor configuration
	HistorySize       int
	ListenerQueueSize int
	ReplayJournal     string
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		MQTTBroker:   "localhost",
		MQTTPort:     1883,
		MQTTUser:     "",
		MQTTPassword: "",
		MQTTClientID: "",

		EnableRedis:   false,
		RedisHost:     "localhost",
		RedisPort:     6379,
		RedisPassword: "",
		RedisDB:       0,
		RedisTTL:      24 * time.Hour,

		ServiceName: "parking-agent",
		HealthPort:  8080,
		APIPort:     3010,
		LogLevel:    "info",

		TopicNamespace: "smartparking",

		OccupancyThresholdMM: 300,
		DecisionThreshold:    0.5,
		SendIntervalMs:       50,
		PublishStateOnChange: true,
		PublishQueueSize:     256,

		FeaturesPath:    "features.csv",
		DistanceFeature: "g1_min",
		DefaultSlot:     "slot1",
		ModelPath:       "stability_model.yaml",

		JournalPath: "",

		HistorySize:       2000,
		ListenerQueueSize: 1024,
		ReplayJournal:     "",
	}
}

// LoadFromEnv loads configuration from environment variables with PARKING_ prefix
func (c *Config) LoadFromEnv() {
	// MQTT configuration
	if v := os.Getenv("PARKING_MQTT_BROKER"); v != "" {
		c.MQTTBroker = v
	}
	if v := os.Getenv("PARKING_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MQTTPort = port
		}
	}
	if v := os.Getenv("PARKING_MQTT_USER"); v != "" {
		c.MQTTUser = v
	}
	if v := os.Getenv("PARKING_MQTT_PASSWORD"); v != "" {
		c.MQTTPassword = v
	}
	if v := os.Getenv("PARKING_MQTT_CLIENT_ID"); v != "" {
		c.MQTTClientID = v
	}

	// Redis configuration
	if v := os.Getenv("PARKING_ENABLE_REDIS"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			c.EnableRedis = enable
		}
	}
	if v := os.Getenv("PARKING_REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("PARKING_REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("PARKING_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("PARKING_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.RedisDB = db
		}
	}
	if v := os.Getenv("PARKING_REDIS_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			c.RedisTTL = ttl
		}
	}

	// Service configuration
	if v := os.Getenv("PARKING_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("PARKING_HEALTH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.HealthPort = port
		}
	}
	if v := os.Getenv("PARKING_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.APIPort = port
		}
	}
	if v := os.Getenv("PARKING_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PARKING_TOPIC_NAMESPACE"); v != "" {
		c.TopicNamespace = v
	}

	// Gating configuration
	if v := os.Getenv("PARKING_OCCUPANCY_THRESHOLD_MM"); v != "" {
		if mm, err := strconv.ParseFloat(v, 64); err == nil {
			c.OccupancyThresholdMM = mm
		}
	}
	if v := os.Getenv("PARKING_DECISION_THRESHOLD"); v != "" {
		if p, err := strconv.ParseFloat(v, 64); err == nil {
			c.DecisionThreshold = p
		}
	}
	if v := os.Getenv("PARKING_SEND_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.SendIntervalMs = ms
		}
	}
	if v := os.Getenv("PARKING_PUBLISH_STATE_ON_CHANGE"); v != "" {
		if enable, err := strconv.ParseBool(v); err == nil {
			c.PublishStateOnChange = enable
		}
	}
	if v := os.Getenv("PARKING_PUBLISH_QUEUE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			c.PublishQueueSize = size
		}
	}

	// Feature input and model
	if v := os.Getenv("PARKING_FEATURES_PATH"); v != "" {
		c.FeaturesPath = v
	}
	if v := os.Getenv("PARKING_DISTANCE_FEATURE"); v != "" {
		c.DistanceFeature = v
	}
	if v := os.Getenv("PARKING_DEFAULT_SLOT"); v != "" {
		c.DefaultSlot = v
	}
	if v := os.Getenv("PARKING_MODEL_PATH"); v != "" {
		c.ModelPath = v
	}
	if v := os.Getenv("PARKING_JOURNAL_PATH"); v != "" {
		c.JournalPath = v
	}

	// Monitor configuration
	if v := os.Getenv("PARKING_HISTORY_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			c.HistorySize = size
		}
	}
	if v := os.Getenv("PARKING_LISTENER_QUEUE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			c.ListenerQueueSize = size
		}
	}
	if v := os.Getenv("PARKING_REPLAY_JOURNAL"); v != "" {
		c.ReplayJournal = v
	}
}

// LoadFromFlags parses command-line flags and overrides config values
func (c *Config) LoadFromFlags() {
	_ = c.LoadFromArgs(os.Args[1:], pflag.ExitOnError)
}

// LoadFromArgs parses the given arguments into the config.
func (c *Config) LoadFromArgs(args []string, handling pflag.ErrorHandling) error {
	fs := pflag.NewFlagSet(c.ServiceName, handling)

	// MQTT flags
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker hostname")
	fs.IntVar(&c.MQTTPort, "mqtt-port", c.MQTTPort, "MQTT broker port")
	fs.StringVar(&c.MQTTUser, "mqtt-user", c.MQTTUser, "MQTT username")
	fs.StringVar(&c.MQTTPassword, "mqtt-password", c.MQTTPassword, "MQTT password")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", c.MQTTClientID, "MQTT client ID")

	// Redis flags
	fs.BoolVar(&c.EnableRedis, "enable-redis", c.EnableRedis, "Mirror decoded events into Redis")
	fs.StringVar(&c.RedisHost, "redis-host", c.RedisHost, "Redis hostname")
	fs.IntVar(&c.RedisPort, "redis-port", c.RedisPort, "Redis port")
	fs.StringVar(&c.RedisPassword, "redis-password", c.RedisPassword, "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", c.RedisDB, "Redis database number")
	fs.DurationVar(&c.RedisTTL, "redis-ttl", c.RedisTTL, "Expiry for mirrored Redis keys (0 keeps them)")

	// Service flags
	fs.StringVar(&c.ServiceName, "service-name", c.ServiceName, "Service name")
	fs.IntVar(&c.HealthPort, "health-port", c.HealthPort, "Health check HTTP port")
	fs.IntVar(&c.APIPort, "api-port", c.APIPort, "Snapshot API HTTP port")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.TopicNamespace, "topic-namespace", c.TopicNamespace, "MQTT topic namespace prefix")

	// Gating flags
	fs.Float64Var(&c.OccupancyThresholdMM, "occupancy-threshold-mm", c.OccupancyThresholdMM, "Distance below which a slot is occupied (mm)")
	fs.Float64Var(&c.DecisionThreshold, "decision-threshold", c.DecisionThreshold, "Probability above which a change is predicted")
	fs.IntVar(&c.SendIntervalMs, "send-interval-ms", c.SendIntervalMs, "Pacing interval between samples (ms, 0 disables)")
	fs.BoolVar(&c.PublishStateOnChange, "publish-state-on-change", c.PublishStateOnChange, "Publish raw state snapshot on confirmed change")
	fs.IntVar(&c.PublishQueueSize, "publish-queue-size", c.PublishQueueSize, "Outbound publish queue capacity")

	// Input flags
	fs.StringVar(&c.FeaturesPath, "features", c.FeaturesPath, "Feature CSV path")
	fs.StringVar(&c.DistanceFeature, "distance-feature", c.DistanceFeature, "Feature column used as raw distance")
	fs.StringVar(&c.DefaultSlot, "default-slot", c.DefaultSlot, "Slot id for rows without a slot column")
	fs.StringVar(&c.ModelPath, "model", c.ModelPath, "Classifier model path (YAML)")
	fs.StringVar(&c.JournalPath, "journal", c.JournalPath, "Append gate events to this CBOR journal")

	// Monitor flags
	fs.IntVar(&c.HistorySize, "history-size", c.HistorySize, "Recent entries kept per slot")
	fs.IntVar(&c.ListenerQueueSize, "listener-queue-size", c.ListenerQueueSize, "Inbound message queue capacity")
	fs.StringVar(&c.ReplayJournal, "replay-journal", c.ReplayJournal, "Preload monitor state from this CBOR journal")

	return fs.Parse(args)
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT broker is required")
	}
	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT port must be between 1 and 65535")
	}
	if c.EnableRedis {
		if c.RedisHost == "" {
			return fmt.Errorf("Redis host is required when Redis is enabled")
		}
		if c.RedisPort <= 0 || c.RedisPort > 65535 {
			return fmt.Errorf("Redis port must be between 1 and 65535")
		}
	}
	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("Health port must be between 1 and 65535")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API port must be between 1 and 65535")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("Service name is required")
	}
	if c.TopicNamespace == "" {
		return fmt.Errorf("topic namespace is required")
	}
	if strings.ContainsAny(c.TopicNamespace, "+#") {
		return fmt.Errorf("topic namespace must not contain MQTT wildcards")
	}
	if !slotid.Valid(c.DefaultSlot) {
		return fmt.Errorf("default slot %q must have the form %s<digits>", c.DefaultSlot, slotid.Prefix)
	}
	if c.DecisionThreshold < 0 || c.DecisionThreshold > 1 {
		return fmt.Errorf("decision threshold must be within [0, 1], got %g", c.DecisionThreshold)
	}
	if c.SendIntervalMs < 0 {
		return fmt.Errorf("send interval must not be negative")
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive")
	}
	if c.ListenerQueueSize <= 0 || c.PublishQueueSize <= 0 {
		return fmt.Errorf("queue sizes must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// MQTTAddress returns the full MQTT broker address
func (c *Config) MQTTAddress() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// RedisAddress returns the full Redis address
func (c *Config) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// SendInterval returns the pacing interval between samples
func (c *Config) SendInterval() time.Duration {
	return time.Duration(c.SendIntervalMs) * time.Millisecond
}
