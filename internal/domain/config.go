package domain

import "time"

// Config holds the complete loanrisk configuration.
type Config struct {
	// Server settings
	Server ServerConfig `yaml:"server"`

	// Tier determines which backends are used by default
	Tier Tier `yaml:"tier"`

	// Scoring artifacts and rules
	Model ModelConfig `yaml:"model"`
	Fraud FraudConfig `yaml:"fraud"`

	// Component configurations
	Repository RepositoryConfig `yaml:"repository"`
	Cache      CacheConfig      `yaml:"cache"`
	EventBus   EventBusConfig   `yaml:"eventBus"`

	// Async scoring worker
	Worker WorkerConfig `yaml:"worker"`

	// RateLimit caps predictions per client
	RateLimit RateLimitConfig `yaml:"rateLimit"`

	// Observability
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`  // seconds
	WriteTimeout int    `yaml:"writeTimeout"` // seconds

	// CORSOrigins lists browser origins allowed to call the API with
	// credentials. "*" allows any origin without credentials.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// ModelConfig points at the training artifact bundle.
type ModelConfig struct {
	// ArtifactDir holds feature_names.json, label_encoders.json,
	// target_encoder.json, model.json and optionally metadata.json.
	ArtifactDir string `yaml:"artifactDir"`

	// ApprovedLabel is the target class meaning "approved".
	ApprovedLabel string `yaml:"approvedLabel"`

	// RPCTimeout bounds calls to a remote model server.
	RPCTimeout time.Duration `yaml:"rpcTimeout"`
}

// FraudRule is one boolean CEL expression over applicant attributes.
type FraudRule struct {
	ID         string `yaml:"id" json:"id"`
	Expression string `yaml:"expression" json:"expression"`
	Disabled   bool   `yaml:"disabled" json:"disabled,omitempty"`
}

// FraudConfig controls the fraud heuristic rule set.
type FraudConfig struct {
	// ReplaceDefaults drops the built-in rules instead of extending them.
	ReplaceDefaults bool `yaml:"replaceDefaults"`

	// Rules are appended to (or override by ID) the built-in rules.
	Rules []FraudRule `yaml:"rules"`
}

// WorkerConfig controls the async scoring worker.
type WorkerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RateLimitConfig holds per-client limits for the predict endpoint.
type RateLimitConfig struct {
	// Requests allowed per Window. Zero disables limiting.
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + local LRU
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			CORSOrigins:  []string{"*"},
		},
		Tier: TierCommunity,
		Model: ModelConfig{
			ArtifactDir:   "./models",
			ApprovedLabel: "Y",
			RPCTimeout:    2 * time.Second,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./loanrisk.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			DecisionTTL:  10 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		RateLimit: RateLimitConfig{
			Requests: 0,
			Window:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "loanrisk",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "loanrisk",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		DecisionTTL:    10 * time.Minute,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
		NATSQueueGroup:    "loanrisk-workers",
	}
	cfg.Worker.Enabled = true
	cfg.Tracing.Enabled = true
	return cfg
}
