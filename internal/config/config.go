package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server config
	Server ServerConfig

	// database config
	Database DatabaseConfig

	// session store backend when SESSION_STORE=redis
	Redis RedisConfig

	// CSRF, session and crypto config
	Security SecurityConfig

	// AI provider config
	APIs APIConfig

	// social sign-in providers
	OAuth OAuthConfig

	Log LogConfig

	// presentation settings
	UI UIConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	Environment  string // development, staging, production
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	CSRFSecret           string
	SessionStore         string // postgres, redis
	SessionCookieName    string
	SessionDuration      time.Duration
	SessionRefreshWindow time.Duration
	BcryptCost           int
	EncryptionKey        string
	SecureCookies        bool // true in production
}

// APIConfig holds AI provider configuration.
type APIConfig struct {
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIClassifyModel string
	OpenAIDescribeModel string
	AIRequestTimeout    time.Duration
}

// OAuthConfig holds the client credentials of each social provider.
// A provider with an empty client ID is disabled.
type OAuthConfig struct {
	GitHub OAuthProviderConfig
	Google OAuthProviderConfig
}

type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether the provider has credentials.
func (p OAuthProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string // json, console
}

// UIConfig holds presentation-layer settings.
type UIConfig struct {
	LowConfidenceThreshold float64
	MaxUploadBytes         int64
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func Load() (*Config, error) {
	// .env is optional; in production env vars come from the orchestrator
	_ = godotenv.Load()

	cfg := &Config{}

	// Load server configuration
	cfg.Server = ServerConfig{
		Port:         getEnvOrDefault("SERVER_PORT", "8080"),
		Environment:  getEnvOrDefault("APP_ENV", "development"),
		BaseURL:      getEnvOrDefault("BASE_URL", "http://localhost:8080"),
		ReadTimeout:  getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getDurationOrDefault("SERVER_WRITE_TIMEOUT", 150*time.Second),
		IdleTimeout:  getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
	}

	// Load database configuration
	cfg.Database = DatabaseConfig{
		URL: os.Getenv("DATABASE_URL"),
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.Redis = RedisConfig{
		Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       redisDB,
	}

	// Load security configuration
	sessionHours, err := strconv.Atoi(getEnvOrDefault("SESSION_DURATION_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_DURATION_HOURS: %w", err)
	}

	bcryptCost, err := strconv.Atoi(getEnvOrDefault("BCRYPT_COST", "12"))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	cfg.Security = SecurityConfig{
		CSRFSecret:           os.Getenv("CSRF_SECRET"),
		SessionStore:         getEnvOrDefault("SESSION_STORE", "postgres"),
		SessionCookieName:    getEnvOrDefault("SESSION_COOKIE_NAME", "speciessight_session"),
		SessionDuration:      time.Duration(sessionHours) * time.Hour,
		SessionRefreshWindow: getDurationOrDefault("SESSION_REFRESH_WINDOW", time.Hour),
		BcryptCost:           bcryptCost,
		EncryptionKey:        os.Getenv("ENCRYPTION_KEY"),
		SecureCookies:        cfg.Server.Environment == "production",
	}

	// Load API configuration
	cfg.APIs = APIConfig{
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		OpenAIClassifyModel: getEnvOrDefault("OPENAI_CLASSIFY_MODEL", "gpt-4o"),
		OpenAIDescribeModel: getEnvOrDefault("OPENAI_DESCRIBE_MODEL", "gpt-4o-mini"),
		AIRequestTimeout:    getDurationOrDefault("AI_REQUEST_TIMEOUT", 60*time.Second),
	}

	cfg.OAuth = OAuthConfig{
		GitHub: OAuthProviderConfig{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		},
		Google: OAuthProviderConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		},
	}

	cfg.Log = LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "json"),
	}

	threshold, err := strconv.ParseFloat(getEnvOrDefault("LOW_CONFIDENCE_THRESHOLD", "0.70"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid LOW_CONFIDENCE_THRESHOLD: %w", err)
	}
	maxUpload, err := strconv.ParseInt(getEnvOrDefault("MAX_UPLOAD_BYTES", "8388608"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}
	cfg.UI = UIConfig{
		LowConfidenceThreshold: threshold,
		MaxUploadBytes:         maxUpload,
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present and valid,
// reporting every problem at once.
func (c *Config) validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	// CSRF secret must be set and sufficiently long
	if c.Security.CSRFSecret == "" {
		errs = append(errs, errors.New("CSRF_SECRET is required"))
	} else if len(c.Security.CSRFSecret) < 32 {
		errs = append(errs, errors.New("CSRF_SECRET must be at least 32 characters"))
	}

	if c.APIs.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}

	// Cost < 10 is too fast, > 16 too slow for interactive sign-in
	if c.Security.BcryptCost < 10 || c.Security.BcryptCost > 16 {
		errs = append(errs, errors.New("BCRYPT_COST must be between 10 and 16"))
	}

	if c.Security.SessionRefreshWindow >= c.Security.SessionDuration {
		errs = append(errs, errors.New("SESSION_REFRESH_WINDOW must be shorter than the session duration"))
	}

	switch c.Security.SessionStore {
	case "postgres", "redis":
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be one of: postgres, redis (got: %s)", c.Security.SessionStore))
	}

	if (c.OAuth.GitHub.Enabled() || c.OAuth.Google.Enabled()) && c.Security.EncryptionKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_KEY is required when an OAuth provider is configured"))
	}

	if c.UI.LowConfidenceThreshold < 0 || c.UI.LowConfidenceThreshold > 1 {
		errs = append(errs, errors.New("LOW_CONFIDENCE_THRESHOLD must be between 0 and 1"))
	}
	if c.UI.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}

	// a classify runs two model calls back to back
	if c.Server.WriteTimeout <= 2*c.APIs.AIRequestTimeout {
		errs = append(errs, fmt.Errorf("SERVER_WRITE_TIMEOUT (%s) must exceed twice AI_REQUEST_TIMEOUT (%s)", c.Server.WriteTimeout, c.APIs.AIRequestTimeout))
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.Server.Environment] {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of: development, staging, production (got: %s)", c.Server.Environment))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%w", errors.Join(errs...))
	}

	return nil
}

// getEnvOrDefault returns the .env value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return duration
	}
	return defaultValue
}

// MustLoad is like Load but panics on error.
// Used in main() where its required to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
