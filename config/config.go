package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port string

	MongoURI string
	DBName   string

	JWTKey   string
	TokenTTL time.Duration

	RedisAddr string
	RedisPass string
	RedisDB   int
	CacheTTL  time.Duration

	RabbitMQURL string
	NotifyQueue string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	AdminEmails []string

	DeletionGracePeriod   time.Duration
	DeletionSweepInterval time.Duration

	RateLimit RateLimitConfig
}

type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// Load reads a .env file when present and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Error loading .env file: %v", err)
	}

	c := &Config{
		Env:  envStr("APP_ENV", "development"),
		Port: envStr("PORT", "8080"),

		MongoURI: os.Getenv("MONGOURI"),
		DBName:   envStr("DB", "marketplace"),

		JWTKey:   os.Getenv("JWT_KEY"),
		TokenTTL: envDur("TOKEN_TTL", 15*time.Minute),

		RedisAddr: envStr("REDIS_ADD", "localhost:6379"),
		RedisPass: os.Getenv("REDIS_PASS"),
		RedisDB:   envInt("REDIS_DB", 0),
		CacheTTL:  envDur("CACHE_TTL", 10*time.Minute),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		NotifyQueue: envStr("NOTIFY_QUEUE", "notifications.email"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: envStr("SMTP_PORT", "587"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		SMTPFrom: envStr("SMTP_FROM", "no-reply@marketplace.local"),

		AdminEmails: envList("ADMIN_EMAILS"),

		DeletionGracePeriod:   envDur("DELETION_GRACE_PERIOD", 24*time.Hour),
		DeletionSweepInterval: envDur("DELETION_SWEEP_INTERVAL", 5*time.Minute),

		RateLimit: RateLimitConfig{
			Enabled:        envBool("RATE_LIMIT_ENABLED", true),
			Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
			RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
			RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
			TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
			Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		},
	}
	if c.RateLimit.Capacity < 1 {
		c.RateLimit.Capacity = 1
	}
	if c.RateLimit.RefillTokens < 1 {
		c.RateLimit.RefillTokens = 1
	}
	return c
}

func (c *Config) Validate() error {
	var missing []string
	if c.MongoURI == "" {
		missing = append(missing, "MONGOURI")
	}
	if c.JWTKey == "" {
		missing = append(missing, "JWT_KEY")
	}
	if len(missing) > 0 {
		return errors.New("missing required env vars: " + strings.Join(missing, ", "))
	}
	if c.DeletionGracePeriod <= 0 {
		return errors.New("DELETION_GRACE_PERIOD must be positive")
	}
	return nil
}

func (c *Config) Production() bool { return c.Env == "production" }

// IsAdminEmail reports whether accounts registered with email get the admin role.
func (c *Config) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}

func envList(k string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(k), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
