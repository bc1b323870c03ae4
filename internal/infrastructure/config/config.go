package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port       string `env:"PORT,        default=8080"`
	Env        string `env:"ENV,         default=development"`
	LogLevel   string `env:"LOG_LEVEL,   default=info"`
	APIPrefix  string `env:"API_PREFIX,  default=/api"`
	AppVersion string `env:"APP_VERSION, default=1.0.0"`

	// CORSAllowedOrigins is only consulted in production; other
	// environments accept any origin.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`

	JWT       JWTConfig
	Hash      HashConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Admin     AdminConfig
}

type JWTConfig struct {
	AccessSecret  string        `env:"JWT_SECRET"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTTL     time.Duration `env:"JWT_EXPIRES_IN,         default=15m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_EXPIRES_IN, default=168h"`
}

type HashConfig struct {
	MemoryCost  uint32        `env:"HASH_MEMORY_COST, default=65536"`
	TimeCost    uint32        `env:"HASH_TIME_COST,   default=3"`
	Parallelism uint8         `env:"HASH_PARALLELISM, default=1"`
	Workers     int           `env:"HASH_WORKERS,     default=0"`
	Timeout     time.Duration `env:"HASH_TIMEOUT,     default=5s"`
}

type MongoConfig struct {
	URI      string        `env:"MONGO_URI,     default=mongodb://localhost:27017"`
	Database string        `env:"MONGO_DB,      default=accounts"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT, default=5s"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

type RateLimitConfig struct {
	Enabled          bool          `env:"RATE_LIMIT_ENABLED,            default=true"`
	Window           time.Duration `env:"RATE_LIMIT_WINDOW,             default=15m"`
	MaxRequests      int           `env:"RATE_LIMIT_MAX_REQUESTS,       default=100"`
	LoginWindow      time.Duration `env:"LOGIN_RATE_LIMIT_WINDOW,       default=15m"`
	LoginMaxRequests int           `env:"LOGIN_RATE_LIMIT_MAX_REQUESTS, default=5"`
}

// AdminConfig seeds a bootstrap administrator when Username is set.
type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME"`
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the token service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	} else if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		errs = append(errs, errors.New("JWT_REFRESH_EXPIRES_IN must exceed JWT_EXPIRES_IN"))
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.LoginMaxRequests <= 0 {
		errs = append(errs, errors.New("rate limit budgets must be positive"))
	}
	if c.Admin.Username != "" && (c.Admin.Email == "" || c.Admin.Password == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD are required with ADMIN_USERNAME"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

func (c *Config) IsTest() bool { return c.Env == "test" }

// RateLimitActive reports whether request limits apply. They never do in tests.
func (c *Config) RateLimitActive() bool {
	return c.RateLimit.Enabled && !c.IsTest()
}
