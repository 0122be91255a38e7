package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all the configuration for both services.
type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer  `yaml:"http_server"`
	Database    `yaml:"database"`
	Shortener   `yaml:"shortener"`
	RateLimit   `yaml:"rate_limit"`
	Admin       `yaml:"admin"`
	Maintenance `yaml:"maintenance"`
	UserAgent   `yaml:"user_agent"`
}

// HTTPServer holds HTTP listener configuration.
type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":3000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"30s"`
	CORSOrigin      string        `yaml:"cors_origin" env:"CORS_ORIGIN" env-default:"*"`
	// TrustProxy keys clients on the right-most X-Forwarded-For hop. Enable
	// only behind a proxy that appends it.
	TrustProxy bool `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"false"`
}

// Database holds storage configuration. Driver is one of sqlite, postgres,
// libsql or memory.
type Database struct {
	Driver          string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`
	Path            string `yaml:"path" env:"DB_PATH"`
	DSN             string `yaml:"dsn" env:"DATABASE_URL"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
}

// Shortener holds link creation settings.
type Shortener struct {
	BaseURL    string   `yaml:"base_url" env:"BASE_URL"`
	SlugLength int      `yaml:"slug_length" env:"SLUG_LENGTH" env-default:"7"`
	MaxRetries int      `yaml:"max_retries" env:"SLUG_MAX_RETRIES" env-default:"5"`
	Blocklist  []string `yaml:"blocklist" env:"BLOCKLIST" env-separator:","`
}

// RateLimit holds the fixed-window limits for public write endpoints.
type RateLimit struct {
	ShortenWindow time.Duration `yaml:"shorten_window" env:"RATE_LIMIT_SHORTEN_WINDOW" env-default:"1m"`
	ShortenMax    int           `yaml:"shorten_max" env:"RATE_LIMIT_SHORTEN_MAX" env-default:"10"`
	ReportWindow  time.Duration `yaml:"report_window" env:"RATE_LIMIT_REPORT_WINDOW" env-default:"1h"`
	ReportMax     int           `yaml:"report_max" env:"RATE_LIMIT_REPORT_MAX" env-default:"5"`
}

// Admin holds dashboard authentication settings. PasswordHash, when set,
// takes precedence over Password. An empty JWTSecret means a random secret
// is generated at startup and tokens do not survive restarts.
type Admin struct {
	Password     string        `yaml:"password" env:"ADMIN_PASSWORD" env-default:"shrimp-admin"`
	PasswordHash string        `yaml:"password_hash" env:"ADMIN_PASSWORD_HASH"`
	JWTSecret    string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"ADMIN_TOKEN_TTL" env-default:"24h"`
}

// Maintenance holds background job settings.
type Maintenance struct {
	PurgeEnabled   bool          `yaml:"purge_enabled" env:"PURGE_ENABLED" env-default:"false"`
	PurgeInterval  time.Duration `yaml:"purge_interval" env:"PURGE_INTERVAL" env-default:"1h"`
	PurgeRetention time.Duration `yaml:"purge_retention" env:"PURGE_RETENTION" env-default:"720h"`
	RetryAttempts  int           `yaml:"retry_attempts" env:"MAINTENANCE_RETRY_ATTEMPTS" env-default:"3"`
	RetryDelay     time.Duration `yaml:"retry_delay" env:"MAINTENANCE_RETRY_DELAY" env-default:"1s"`
}

// UserAgent holds parser settings. An empty RegexesPath uses the
// definitions compiled into uap-go.
type UserAgent struct {
	RegexesPath string `yaml:"regexes_path" env:"UA_REGEXES_PATH"`
}

// Load reads .env (if any), then the YAML file at CONFIG_PATH (default
// config/local.yml) when it exists, otherwise the environment alone.
func Load() (*Config, error) {
	// Try to load .env file (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yml"
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, err
		}
	} else {
		// If config file doesn't exist, use environment variables only
		log.Println("Config file not found, using environment variables only")
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
	}

	if port := os.Getenv("PORT"); port != "" && os.Getenv("HTTP_ADDRESS") == "" {
		cfg.HTTPServer.Address = ":" + port
	}

	return &cfg, nil
}
