package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:        "development",
		JWTSecret:  "secure-secret-at-least-32-chars-long",
		DBDriver:   "postgres",
		DBPassword: "secure-password",
		DBSSLMode:  "require",
		Port:       "8080",
		UIDPrefix:  "022026",
		RedisURL:   "redis://localhost:6379",
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with disable SSL mode", "prod", "disable", true},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateDriverAndBootstrap(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		c := validConfig()
		c.DBDriver = "mysql"
		assert.Error(t, c.Validate())
	})

	t.Run("sqlite skips postgres production checks", func(t *testing.T) {
		c := validConfig()
		c.Env = "production"
		c.DBDriver = "sqlite"
		c.DBPassword = ""
		c.DBSSLMode = ""
		assert.NoError(t, c.Validate())
	})

	t.Run("bootstrap email without password", func(t *testing.T) {
		c := validConfig()
		c.BootstrapAdminEmail = "root@zeelink.site"
		assert.Error(t, c.Validate())
	})

	t.Run("weak bootstrap password in production", func(t *testing.T) {
		c := validConfig()
		c.Env = "production"
		c.BootstrapAdminEmail = "root@zeelink.site"
		c.BootstrapAdminPassword = "short"
		assert.Error(t, c.Validate())
	})

	t.Run("default jwt secret in production", func(t *testing.T) {
		c := validConfig()
		c.Env = "production"
		c.JWTSecret = defaultJWTSecret
		assert.Error(t, c.Validate())
	})
}

func TestLoadConfig_Normalization(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", " SQLite ")
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", " Root@Zeelink.Site ")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "Str0ng!Password")
	t.Setenv("PUBLIC_BASE_URL", "https://zeelink.site/p/")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "root@zeelink.site", c.BootstrapAdminEmail)
	assert.Equal(t, "https://zeelink.site/p", c.PublicBaseURL)
	assert.Equal(t, "022026", c.UIDPrefix)
}

func TestLoadConfig_MissingOverlay(t *testing.T) {
	t.Setenv("APP_ENV", "staging")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.staging.yml")
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("PORT", "9999")
	t.Setenv("SESSION_TTL_HOURS", "12")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9999", c.Port)
	assert.Equal(t, 12, c.SessionTTLHours)
}
