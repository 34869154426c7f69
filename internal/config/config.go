// Package config loads the zeelink configuration from config.yml, an optional
// per-environment overlay and the process environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"zeelink/internal/middleware"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds every setting. Keys match the environment variable names.
type Config struct {
	Env  string `mapstructure:"APP_ENV"`
	Port string `mapstructure:"PORT"`

	JWTSecret       string `mapstructure:"JWT_SECRET"`
	SessionTTLHours int    `mapstructure:"SESSION_TTL_HOURS"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBPath                   string `mapstructure:"DB_PATH"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`

	PublicBaseURL          string `mapstructure:"PUBLIC_BASE_URL"`
	UIDPrefix              string `mapstructure:"UID_PREFIX"`
	BootstrapAdminEmail    string `mapstructure:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `mapstructure:"BOOTSTRAP_ADMIN_PASSWORD"`
	BootstrapAdminName     string `mapstructure:"BOOTSTRAP_ADMIN_NAME"`
	ModerationDenylist     string `mapstructure:"MODERATION_DENYLIST"`
	AvatarUploadDir        string `mapstructure:"AVATAR_UPLOAD_DIR"`
	AvatarMaxUploadSizeMB  int    `mapstructure:"AVATAR_MAX_UPLOAD_MB"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	TracingEndpoint    string  `mapstructure:"TRACING_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`
}

var defaults = map[string]any{
	"APP_ENV":                      "development",
	"PORT":                         "8375",
	"JWT_SECRET":                   defaultJWTSecret,
	"SESSION_TTL_HOURS":            24 * 30,
	"DB_DRIVER":                    "postgres",
	"DB_PATH":                      "zeelink.db",
	"DB_HOST":                      "localhost",
	"DB_PORT":                      "5432",
	"DB_USER":                      "user",
	"DB_PASSWORD":                  "password",
	"DB_NAME":                      "zeelink",
	"DB_SSLMODE":                   "disable",
	"DB_MAX_OPEN_CONNS":            25,
	"DB_MAX_IDLE_CONNS":            5,
	"DB_CONN_MAX_LIFETIME_MINUTES": 5,
	"REDIS_URL":                    "localhost:6379",
	"ALLOWED_ORIGINS":              "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173",
	"FEATURE_FLAGS":                "",
	"PUBLIC_BASE_URL":              "https://zeelink.site/p",
	"UID_PREFIX":                   "022026",
	"BOOTSTRAP_ADMIN_EMAIL":        "",
	"BOOTSTRAP_ADMIN_PASSWORD":     "",
	"BOOTSTRAP_ADMIN_NAME":         "Administrator",
	"MODERATION_DENYLIST":          "",
	"AVATAR_UPLOAD_DIR":            "/tmp/zeelink/uploads/avatars",
	"AVATAR_MAX_UPLOAD_MB":         5,
	"TRACING_ENABLED":              false,
	"TRACING_EXPORTER":             "stdout",
	"TRACING_ENDPOINT":             "localhost:4318",
	"TRACING_SAMPLE_RATIO":         1.0,
}

// localEnvs run from config.yml alone; every other APP_ENV needs its
// config.<env>.yml overlay.
var localEnvs = map[string]bool{"development": true, "test": true}

// LoadConfig reads config.yml from the working directory or up to two
// parents, merges the overlay for APP_ENV, and lets environment variables
// override both.
func LoadConfig() (*Config, error) {
	v := viper.New()
	for _, dir := range []string{".", "..", "../.."} {
		v.AddConfigPath(dir)
	}
	v.SetConfigType("yml")
	v.SetConfigName("config")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// A bare checkout has no config.yml; defaults and env cover it.
	_ = v.ReadInConfig()

	if env := v.GetString("APP_ENV"); !localEnvs[env] {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("APP_ENV=%s needs config.%s.yml: %w", env, env, err)
		}
		middleware.Logger.Info("Loaded environment overlay", slog.String("file", "config."+env+".yml"))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	clean := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	c.DBSSLMode = clean(c.DBSSLMode)
	c.DBDriver = clean(c.DBDriver)
	c.BootstrapAdminEmail = clean(c.BootstrapAdminEmail)
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
}

// IsProduction reports whether the config targets a production environment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate returns the first broken rule. Production adds rules for secrets
// and transport security.
func (c *Config) Validate() error {
	rules := []struct {
		broken bool
		msg    string
	}{
		{c.Port == "", "PORT is required"},
		{c.JWTSecret == "", "JWT_SECRET is required"},
		{c.DBDriver != "postgres" && c.DBDriver != "sqlite", fmt.Sprintf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)},
		{c.UIDPrefix == "", "UID_PREFIX is required"},
		{c.BootstrapAdminEmail != "" && c.BootstrapAdminPassword == "", "BOOTSTRAP_ADMIN_PASSWORD must be set when BOOTSTRAP_ADMIN_EMAIL is set"},
	}
	if c.IsProduction() {
		postgres := c.DBDriver == "postgres"
		rules = append(rules, []struct {
			broken bool
			msg    string
		}{
			{c.JWTSecret == defaultJWTSecret, "JWT_SECRET still has its default value"},
			{len(c.JWTSecret) < 32, "JWT_SECRET needs at least 32 characters in production"},
			{postgres && (c.DBPassword == "" || c.DBPassword == "password"), "DB_PASSWORD must be set to a real password in production"},
			{postgres && (c.DBSSLMode == "" || c.DBSSLMode == "disable"), "DB_SSLMODE must enable SSL in production"},
			{c.BootstrapAdminEmail != "" && len(c.BootstrapAdminPassword) < 12, "BOOTSTRAP_ADMIN_PASSWORD needs at least 12 characters in production"},
		}...)
	}
	for _, r := range rules {
		if r.broken {
			return errors.New(r.msg)
		}
	}

	switch {
	case c.IsProduction() && c.AllowedOrigins == "*":
		middleware.Logger.Warn("ALLOWED_ORIGINS is '*' in production")
	case !c.IsProduction() && len(c.JWTSecret) < 32:
		middleware.Logger.Warn("JWT_SECRET is shorter than 32 characters")
	}
	return nil
}
