// Package config loads the loanrisk configuration from defaults, an optional
// YAML file and LOANRISK_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/loanrisk/internal/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LOANRISK_"

// Load builds the configuration. An empty path skips the file.
// The tier is chosen before the file is read so the file can override
// individual tier defaults.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if strings.EqualFold(os.Getenv(EnvPrefix+"TIER"), string(domain.TierPro)) {
		cfg = domain.ProConfig()
	}

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *domain.Config) error {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overlays LOANRISK_* variables onto cfg.
func applyEnv(cfg *domain.Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	flag := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("HOST", &cfg.Server.Host)
	str("MODEL_DIR", &cfg.Model.ArtifactDir)
	str("APPROVED_LABEL", &cfg.Model.ApprovedLabel)
	str("DB_DRIVER", &cfg.Repository.Driver)
	str("SQLITE_PATH", &cfg.Repository.SQLitePath)
	str("POSTGRES_HOST", &cfg.Repository.PostgresHost)
	str("POSTGRES_USER", &cfg.Repository.PostgresUser)
	str("POSTGRES_PASSWORD", &cfg.Repository.PostgresPassword)
	str("POSTGRES_DB", &cfg.Repository.PostgresDB)
	str("POSTGRES_SSLMODE", &cfg.Repository.PostgresSSLMode)
	str("CACHE", &cfg.Cache.Type)
	str("REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Cache.RedisPassword)
	str("BUS", &cfg.EventBus.Type)
	str("NATS_URL", &cfg.EventBus.NATSUrl)
	str("NATS_TOKEN", &cfg.EventBus.NATSToken)
	str("NATS_QUEUE_GROUP", &cfg.EventBus.NATSQueueGroup)
	str("KAFKA_GROUP_ID", &cfg.EventBus.KafkaGroupID)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("SERVICE_NAME", &cfg.Tracing.ServiceName)

	if v, ok := lookup(EnvPrefix + "KAFKA_BROKERS"); ok && v != "" {
		cfg.EventBus.KafkaBrokers = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok && v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	var debug bool
	for _, err := range []error{
		num("PORT", &cfg.Server.Port),
		num("POSTGRES_PORT", &cfg.Repository.PostgresPort),
		num("RATE_LIMIT", &cfg.RateLimit.Requests),
		dur("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window),
		dur("MODEL_RPC_TIMEOUT", &cfg.Model.RPCTimeout),
		flag("ASYNC_WORKER", &cfg.Worker.Enabled),
		flag("TRACING", &cfg.Tracing.Enabled),
		flag("DEBUG", &debug),
	} {
		if err != nil {
			return err
		}
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configurations the service cannot start with.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Model.ApprovedLabel == "" {
		return fmt.Errorf("model.approvedLabel is required")
	}

	switch cfg.Repository.Driver {
	case "sqlite":
		if cfg.Repository.SQLitePath == "" {
			return fmt.Errorf("repository.sqlitePath is required when repository.driver=sqlite")
		}
	case "postgres":
		if cfg.Repository.PostgresHost == "" {
			return fmt.Errorf("repository.postgresHost is required when repository.driver=postgres")
		}
	default:
		return fmt.Errorf("unsupported repository driver: %s", cfg.Repository.Driver)
	}

	switch cfg.Cache.Type {
	case "memory", "local":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redisAddr is required when cache.type=redis")
		}
	default:
		return fmt.Errorf("unsupported cache type: %s", cfg.Cache.Type)
	}

	switch cfg.EventBus.Type {
	case "channel", "memory":
	case "nats":
		if cfg.EventBus.NATSUrl == "" {
			return fmt.Errorf("eventBus.natsUrl is required when eventBus.type=nats")
		}
	case "kafka":
		if len(cfg.EventBus.KafkaBrokers) == 0 {
			return fmt.Errorf("eventBus.kafkaBrokers is required when eventBus.type=kafka")
		}
	default:
		return fmt.Errorf("unsupported event bus type: %s", cfg.EventBus.Type)
	}

	if cfg.RateLimit.Requests < 0 {
		return fmt.Errorf("rateLimit.requests must not be negative")
	}
	if cfg.RateLimit.Requests > 0 && cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("rateLimit.window must be positive when rateLimit.requests is set")
	}

	seen := make(map[string]bool, len(cfg.Fraud.Rules))
	for i, r := range cfg.Fraud.Rules {
		if r.ID == "" {
			return fmt.Errorf("fraud.rules[%d].id is required", i)
		}
		if seen[r.ID] {
			return fmt.Errorf("fraud.rules[%d]: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = true
		if r.Expression == "" && !r.Disabled {
			return fmt.Errorf("fraud.rules[%d].expression is required", i)
		}
	}
	return nil
}
