package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		RequestMetrics  bool          `yaml:"request_metrics"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	} `yaml:"server"`
	Logging struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error fatal panic"`
		Format    string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100" validate:"gt=0"`
			Topic     string        `yaml:"topic" default:"yieldguard.logs"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Upstream struct {
		BaseURL            string        `yaml:"base_url" default:"https://yields.llama.fi" validate:"required,url"`
		MirrorURL          string        `yaml:"mirror_url" validate:"omitempty,url"`
		ProtocolsURL       string        `yaml:"protocols_url" default:"https://api.llama.fi" validate:"required,url"`
		RequestTimeout     time.Duration `yaml:"request_timeout" default:"10s"`
		RetryMax           int           `yaml:"retry_max" default:"3" validate:"gte=0,lte=8"`
		RetryWaitMin       time.Duration `yaml:"retry_wait_min" default:"1s"`
		RetryWaitMax       time.Duration `yaml:"retry_wait_max" default:"8s"`
		RateLimitRPS       float64       `yaml:"rate_limit_rps" default:"10" validate:"gt=0"`
		RateLimitBurst     int           `yaml:"rate_limit_burst" default:"5" validate:"gt=0"`
		BreakerFailures    uint32        `yaml:"breaker_failures" default:"5" validate:"gt=0"`
		BreakerCooldown    time.Duration `yaml:"breaker_cooldown" default:"30s"`
		MaxProtocolFetches int           `yaml:"max_protocol_fetches" default:"5" validate:"gt=0,lte=20"`
		UserAgent          string        `yaml:"user_agent" default:"yieldguard/1.0"`
	} `yaml:"upstream"`
	Cache struct {
		Backend    string        `yaml:"backend" default:"memory" validate:"oneof=memory redis layered"`
		MaxEntries int           `yaml:"max_entries" default:"2048" validate:"gt=0"`
		PoolTTL    time.Duration `yaml:"pool_ttl" default:"5m"`
		HistoryTTL time.Duration `yaml:"history_ttl" default:"1h"`
		RiskTTL    time.Duration `yaml:"risk_ttl" default:"10m"`
		Redis      struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379" validate:"gt=0,lte=65535"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db" validate:"gte=0"`
			Prefix   string `yaml:"prefix" default:"yieldguard"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Quality struct {
		MaxAPYPercent float64 `yaml:"max_apy_percent" default:"1000" validate:"gt=0"`
		MinGrade      string  `yaml:"min_grade" default:"C" validate:"oneof=A B C D"`
	} `yaml:"quality"`
	Risk struct {
		MaxHistoryDays        int     `yaml:"max_history_days" default:"90" validate:"gt=1"`
		InsufficientDataScore float64 `yaml:"insufficient_data_score" default:"75" validate:"gte=0,lte=100"`
	} `yaml:"risk"`
	Pricing struct {
		QuoteTTL           time.Duration `yaml:"quote_ttl" default:"15m"`
		MinCoverageRatio   float64       `yaml:"min_coverage_ratio" default:"0.10" validate:"gte=0,lte=1"`
		ConcentrationShare float64       `yaml:"concentration_share" default:"0.01" validate:"gt=0,lte=1"`
		BaseDailyRate      struct {
			Low    float64 `yaml:"low" default:"0.001" validate:"gt=0"`
			Medium float64 `yaml:"medium" default:"0.003" validate:"gt=0"`
			High   float64 `yaml:"high" default:"0.008" validate:"gt=0"`
		} `yaml:"base_daily_rate"`
	} `yaml:"pricing"`
	Contracts struct {
		YieldContractID     string `yaml:"yield_contract_id"`
		InsuranceContractID string `yaml:"insurance_contract_id"`
		InsurancePercent    int    `yaml:"insurance_percent" default:"10" validate:"gte=0,lte=100"`
	} `yaml:"contracts"`
	Audit struct {
		Backend string `yaml:"backend" validate:"omitempty,oneof=kafka clickhouse"`
	} `yaml:"audit"`
	Collector struct {
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval" default:"5m"`
		Chains   []string      `yaml:"chains" default:"[\"Ethereum\"]"`
		TopPools int           `yaml:"top_pools" default:"10" validate:"gt=0"`
		Workers  int           `yaml:"workers" default:"8" validate:"gt=0,lte=64"`
	} `yaml:"collector"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000" validate:"gt=0,lte=65535"`
		Database         string        `yaml:"database" default:"yieldguard"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		SnapshotsTable   string        `yaml:"snapshots_table" default:"pool_snapshots"`
		QuotesTable      string        `yaml:"quotes_table" default:"quotes"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled        bool     `yaml:"enabled"`
		Brokers        []string `yaml:"brokers"`
		QuotesTopic    string   `yaml:"quotes_topic" default:"yieldguard.quotes"`
		CallsTopic     string   `yaml:"calls_topic" default:"yieldguard.calls"`
		SnapshotsTopic string   `yaml:"snapshots_topic" default:"yieldguard.snapshots"`
		RequiredAcks   int      `yaml:"required_acks" default:"-1"`
		Compression    string   `yaml:"compression" default:"gzip"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"100ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"yieldguard-audit"`
			Workers    int           `yaml:"workers" default:"4" validate:"gt=0,lte=64"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"500ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. Missing fields fall back
// to struct tag defaults.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("UPSTREAM_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("UPSTREAM_MIRROR_URL"); v != "" {
		c.Upstream.MirrorURL = v
	}
	if v := os.Getenv("CHAINS"); v != "" {
		c.Collector.Chains = strings.Split(v, ",")
	}
	if v := os.Getenv("AUDIT_BACKEND"); v != "" {
		c.Audit.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Cache.Redis.Host = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Fill zero-valued fields from defaults after the file is applied.
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	return &c, nil
}

// Validate checks struct tags plus the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	switch c.Audit.Backend {
	case "kafka":
		if !c.Kafka.Enabled {
			return fmt.Errorf("audit.backend is 'kafka' but kafka.enabled is false")
		}
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return fmt.Errorf("audit.backend is 'clickhouse' but clickhouse.enabled is false")
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Upstream.RetryWaitMin > c.Upstream.RetryWaitMax {
		return fmt.Errorf("upstream.retry_wait_min must not exceed upstream.retry_wait_max")
	}
	r := c.Pricing.BaseDailyRate
	if r.Low > r.Medium || r.Medium > r.High {
		return fmt.Errorf("pricing.base_daily_rate must be non-decreasing from low to high")
	}
	return nil
}
