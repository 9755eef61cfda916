package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		App: AppConfig{Env: "development"},
		Auth: AuthConfig{
			JWTSecret:                "secret",
			AccessTokenTTLMinutes:    60,
			RefreshTokenTTLDays:      7,
			RevocationTTLMinutes:     60,
			RefreshRevocationTTLDays: 7,
			ReadRoles:                []string{"admin", "user"},
			WriteRoles:               []string{"admin"},
		},
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"valid":                      {func(*Config) {}, ""},
		"empty secret":               {func(c *Config) { c.Auth.JWTSecret = " " }, "AUTH_JWT_SECRET"},
		"dev secret in production":   {func(c *Config) { c.App.Env = "production"; c.Auth.JWTSecret = devSecret }, "production"},
		"revocation shorter":         {func(c *Config) { c.Auth.RevocationTTLMinutes = 30 }, "AUTH_REVOCATION_TTL_MINUTES"},
		"refresh revocation shorter": {func(c *Config) { c.Auth.RefreshRevocationTTLDays = 1 }, "AUTH_REFRESH_REVOCATION_TTL_DAYS"},
		"non-positive access ttl":    {func(c *Config) { c.Auth.AccessTokenTTLMinutes = 0 }, "AUTH_ACCESS_TOKEN_TTL_MINUTES"},
		"no write roles":             {func(c *Config) { c.Auth.WriteRoles = nil }, "AUTH_WRITE_ROLES"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "from-env")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "15")
	t.Setenv("AUTH_WRITE_ROLES", "admin")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 15, cfg.Auth.RevocationTTLMinutes, "revocation ttl follows the access ttl")
	assert.Equal(t, []string{"admin"}, cfg.Auth.WriteRoles)
	assert.Equal(t, []string{"admin", "user"}, cfg.Auth.ReadRoles)
	assert.False(t, cfg.Auth.RevocationFailOpen)
}

func TestLoad_RejectsShortRevocationTTL(t *testing.T) {
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "60")
	t.Setenv("AUTH_REVOCATION_TTL_MINUTES", "10")

	_, err := Load()
	assert.Error(t, err)
}
