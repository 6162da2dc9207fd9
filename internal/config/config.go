package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// SMS providers understood by the notification wiring.
const (
	SMSProviderLog    = "log"
	SMSProviderNSQ    = "nsq"
	SMSProviderTwilio = "twilio"
)

// Development fallbacks so a bare `go run` can mint tokens. Validate refuses
// to start outside development without real secrets.
const (
	devAccessSecret  = "dev-access-secret"
	devRefreshSecret = "dev-refresh-secret"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `env:"APP_NAME" envDefault:"LogisticsMS"`
	AppEnv         string        `env:"APP_ENV" envDefault:"development"`
	Port           string        `env:"PORT" envDefault:"5001"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins    string        `env:"CORS_ORIGINS" envDefault:"http://localhost:3000,http://localhost:5173"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"false"`

	OTPTTL             time.Duration `env:"OTP_TTL" envDefault:"5m"`
	RedisProbeInterval time.Duration `env:"REDIS_PROBE_INTERVAL" envDefault:"5s"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"5"`

	SMSProvider       string `env:"SMS_PROVIDER" envDefault:"log"`
	NSQAddress        string `env:"NSQ_ADDRESS" envDefault:"127.0.0.1:4150"`
	NSQTopic          string `env:"NSQ_TOPIC" envDefault:"sms.outbound"`
	TwilioAccountSID  string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `env:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `env:"TWILIO_PHONE_NUMBER"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.SMSProvider = strings.ToLower(cfg.SMSProvider)
	if cfg.IsDev() {
		if cfg.AccessTokenSecret == "" {
			cfg.AccessTokenSecret = devAccessSecret
		}
		if cfg.RefreshTokenSecret == "" {
			cfg.RefreshTokenSecret = devRefreshSecret
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	if !c.IsDev() {
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set")
		}
		if c.RedisURL == "" {
			return errors.New("REDIS_URL must be set")
		}
		if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
			return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
		}
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.OTPTTL <= 0 {
		return errors.New("token and OTP TTLs must be positive")
	}

	switch c.SMSProvider {
	case SMSProviderLog:
	case SMSProviderNSQ:
		if c.NSQAddress == "" || c.NSQTopic == "" {
			return errors.New("NSQ_ADDRESS and NSQ_TOPIC must be set for the nsq provider")
		}
	case SMSProviderTwilio:
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioPhoneNumber == "" {
			return errors.New("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER must be set for the twilio provider")
		}
	default:
		return fmt.Errorf("unknown SMS_PROVIDER %q", c.SMSProvider)
	}
	return nil
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether error details must be withheld from clients.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.AppEnv) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
