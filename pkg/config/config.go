package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups the application settings (read through Viper from env and an optional file).
type Config struct {
	App     AppConfig
	DB      DBConfig
	JWT     JWTConfig
	HTTP    HTTPConfig
	Build   BuildConfig
	Metrics MetricsConfig
	Log     LogConfig
}

// AppConfig general application settings.
type AppConfig struct {
	Env     string // development, staging, production
	Name    string
	BaseURL string // public dashboard URL, used to build QR links
}

// IsDev reports whether the app runs in development mode.
func (c AppConfig) IsDev() bool { return c.Env == "development" }

// DBConfig PostgreSQL settings.
// When DatabaseURL is set it is used as the full connection string (e.g. the hosted DATABASE_URL).
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int
	AutoMigrate bool

	// ForceIPv4 dials the database over IPv4 when the host resolves to one.
	ForceIPv4 bool
	// StatementTimeout is enforced by the server on every statement (0 leaves the server default).
	StatementTimeout time.Duration
	// AppName is reported as application_name in pg_stat_activity.
	AppName string
}

// ConnectionString returns DATABASE_URL when present, otherwise the DSN built from the parts.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN builds the PostgreSQL URL, escaping special characters in the password.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig token settings.
// ProviderSecret verifies access tokens minted by the hosted identity provider;
// Secret signs the tokens this API issues for local accounts.
type JWTConfig struct {
	Secret         string
	ProviderSecret string
	Expiration     int // minutes
	Issuer         string
}

// HTTPConfig HTTP server settings.
type HTTPConfig struct {
	Host        string
	Port        int
	CORSOrigins string
	RateLimit   int // requests per minute per IP, 0 disables the limiter
}

// Addr returns the listen address (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BuildConfig bounds for the board build engine.
type BuildConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// MetricsConfig Prometheus exposition.
type MetricsConfig struct {
	Enabled bool
}

// LogConfig logger settings.
type LogConfig struct {
	Level string
}

// Load reads configuration from environment variables and, optionally, a .env/config.env file.
// Environment variables win. Expected names: APP_ENV, DB_HOST, JWT_SECRET, BUILD_TIMEOUT, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	jwtSecret := getString(v, "JWT_SECRET", "")
	cfg := &Config{
		App: AppConfig{
			Env:     getString(v, "APP_ENV", "development"),
			Name:    getString(v, "APP_NAME", "sats-inventory"),
			BaseURL: strings.TrimRight(getString(v, "APP_BASE_URL", "http://localhost:3000"), "/"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "sats_inventory"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			MaxConns:    getInt(v, "DB_MAX_CONNS", 25),
			AutoMigrate: getBool(v, "DB_AUTO_MIGRATE", true),
			ForceIPv4:   getBool(v, "DB_FORCE_IPV4", true),

			StatementTimeout: getDuration(v, "DB_STATEMENT_TIMEOUT", 15*time.Second),
		},
		JWT: JWTConfig{
			Secret:         jwtSecret,
			ProviderSecret: getString(v, "AUTH_PROVIDER_JWT_SECRET", jwtSecret),
			Expiration:     getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:         getString(v, "JWT_ISSUER", "sats-inventory"),
		},
		HTTP: HTTPConfig{
			Host:        getString(v, "HTTP_HOST", "0.0.0.0"),
			Port:        getInt(v, "HTTP_PORT", 8080),
			CORSOrigins: getString(v, "HTTP_CORS_ORIGINS", "*"),
			RateLimit:   getInt(v, "HTTP_RATE_LIMIT", 120),
		},
		Build: BuildConfig{
			Timeout:      getDuration(v, "BUILD_TIMEOUT", 10*time.Second),
			MaxRetries:   getInt(v, "BUILD_MAX_RETRIES", 3),
			RetryBackoff: getDuration(v, "BUILD_RETRY_BACKOFF", 200*time.Millisecond),
		},
		Metrics: MetricsConfig{
			Enabled: getBool(v, "METRICS_ENABLED", true),
		},
		Log: LogConfig{
			Level: getString(v, "LOG_LEVEL", "info"),
		},
	}

	cfg.DB.AppName = cfg.App.Name

	if cfg.JWT.Secret == "" && !cfg.App.IsDev() {
		return nil, fmt.Errorf("config: JWT_SECRET is required outside development")
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			return def
		}
		return b
	}
	return def
}

// getDuration accepts Go duration strings ("5s") or a bare number of seconds.
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
