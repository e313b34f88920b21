package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration
type Config struct {
	Port string `envconfig:"PORT" default:"3001"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath      string `envconfig:"DB_PATH" default:"./data/robot.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	RedisHost     string `envconfig:"REDIS_HOST"`
	RedisPort     string `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	OpenAIAPIKey  string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string        `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`
	LLMTimeout    time.Duration `envconfig:"LLM_TIMEOUT" default:"15s"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`
	OTPSalt   string        `envconfig:"OTP_SALT" required:"true"`

	DevMode     bool     `envconfig:"DEV_MODE" default:"false"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string   `envconfig:"LOG_FORMAT" default:"json"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	// envconfig accepts a set-but-empty variable for required keys.
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.OTPSalt == "" {
		return fmt.Errorf("OTP_SALT environment variable is required")
	}
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite or postgres)", c.DBDriver)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	return nil
}

// RedisAddr returns host:port, or "" when the cache server is not configured.
func (c *Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return c.RedisHost + ":" + c.RedisPort
}

// DatabaseTarget describes the database for startup logs with any password removed.
func (c *Config) DatabaseTarget() string {
	if c.DBDriver == "sqlite" {
		return "sqlite:" + c.DBPath
	}
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "postgres:(unparseable url)"
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres:host=%s port=%s db=%s user=%s", host, port, strings.TrimPrefix(u.Path, "/"), u.User.Username())
}
