package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	ServerAddr         string        `env:"SERVER_ADDR" envDefault:":5000"`
	AdminAddr          string        `env:"ADMIN_ADDR" envDefault:":9091"`
	JWTSecret          string        `env:"JWT_SECRET" validate:"required"`
	JWTExpiry          time.Duration `env:"JWT_EXPIRY" envDefault:"24h" validate:"gt=0"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	MaxBodyBytes       int64         `env:"MAX_BODY_BYTES" envDefault:"1048576" validate:"gt=0"` // 1MB
	LoginRatePerSec    float64       `env:"LOGIN_RATE_PER_SEC" envDefault:"1" validate:"gt=0"`
	LoginBurst         int           `env:"LOGIN_BURST" envDefault:"5" validate:"gte=1"`

	AWSRegion          string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpointURL     string `env:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
	AWSBucketName      string `env:"AWS_BUCKET_NAME"`
	AWSLogsPrefix      string `env:"AWS_LOGS_PREFIX"`
	FetchConcurrency   int    `env:"FETCH_CONCURRENCY" envDefault:"8" validate:"gte=1,lte=256"`

	AnalysisStrategy     string `env:"ANALYSIS_STRATEGY" envDefault:"rules" validate:"oneof=rules heuristic coarse"`
	TrustedRegionMarker  string `env:"TRUSTED_REGION_MARKER" envDefault:"IN"`
	PredefinedRulesPath  string `env:"PREDEFINED_RULES_PATH"`
	WatchPredefinedRules bool   `env:"WATCH_PREDEFINED_RULES" envDefault:"false"`
	RuleStore            string `env:"RULE_STORE" envDefault:"file" validate:"oneof=file redis memory"`
	CustomRulesPath      string `env:"CUSTOM_RULES_PATH" envDefault:"custom_rules.json"`

	UserStore      string        `env:"USER_STORE" envDefault:"file" validate:"oneof=file postgres redis memory"`
	UsersPath      string        `env:"USERS_PATH" envDefault:"users.json"`
	UserCacheTTL   time.Duration `env:"USER_CACHE_TTL" envDefault:"1m"`
	RedisAddr      string        `env:"REDIS_ADDR" validate:"required_if=RuleStore redis"`
	RedisKeyPrefix string        `env:"REDIS_KEY_PREFIX" envDefault:"trailwatch:"`
	PostgresURL    string        `env:"POSTGRES_URL" validate:"required_if=UserStore postgres"`

	Notifier     string   `env:"NOTIFIER" envDefault:"none" validate:"oneof=none stdout kafka"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," validate:"required_if=Notifier kafka"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"risk.findings"`

	// NotifierSpoolDir keeps undelivered findings on disk; empty disables spooling.
	NotifierSpoolDir          string        `env:"NOTIFIER_SPOOL_DIR"`
	NotifierSpoolSegmentBytes int64         `env:"NOTIFIER_SPOOL_SEGMENT_BYTES" envDefault:"4194304" validate:"gt=0"` // 4MB
	NotifierSpoolMaxBytes     int64         `env:"NOTIFIER_SPOOL_MAX_BYTES" envDefault:"67108864" validate:"gt=0"`    // 64MB
	NotifierRetryInterval     time.Duration `env:"NOTIFIER_RETRY_INTERVAL" envDefault:"30s" validate:"gt=0"`

	RedactFields []string `env:"REDACT_FIELDS" envSeparator:"," envDefault:"responseElements.credentials,requestParameters.password"`
}

var validate = validator.New()

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAnalysis reads configuration for offline analysis. Account settings
// such as JWT_SECRET are not required.
func LoadAnalysis() (*Config, error) {
	cfg, err := parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate("JWTSecret"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings and backend requirements.
func (c *Config) Validate() error {
	return c.validate()
}

func (c *Config) validate(except ...string) error {
	var err error
	if len(except) > 0 {
		err = validate.StructExcept(c, except...)
	} else {
		err = validate.Struct(c)
	}
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.UserStore == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("invalid configuration: REDIS_ADDR is required when USER_STORE=redis")
	}
	return nil
}

// ServerCredentials reports whether static AWS keys are configured.
func (c *Config) ServerCredentials() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
}

// RedisKey returns the prefixed key for name.
func (c *Config) RedisKey(name string) string {
	return c.RedisKeyPrefix + strings.TrimPrefix(name, ":")
}
