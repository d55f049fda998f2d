package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
session:
  secret: "`+testSecret+`"
external:
  issuer: https://dev-97692058.okta.com/oauth2/default
  jwks_url: https://dev-97692058.okta.com/oauth2/default/v1/keys
  cache_ttl: 30m
  leeway: 5s
store:
  type: postgres
  dsn: postgres://bridge@localhost/bridge
audit:
  enabled: true
  path: audit.log
seed:
  - username: alice
    email: alice@example.com
    password: secret1
    roles: [Admin]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultSessionIssuer, cfg.Session.Issuer)
	assert.Equal(t, DefaultSessionAud, cfg.Session.Audience)
	assert.Equal(t, DefaultExternalHeader, cfg.External.Header)
	assert.Equal(t, 30*time.Minute, cfg.External.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.External.Leeway)
	assert.False(t, cfg.External.UsesDiscovery())
	assert.Equal(t, "postgres", cfg.Store.Type)
	assert.Equal(t, "postgres://bridge@localhost/bridge", cfg.Store.Options["dsn"])
	assert.Equal(t, "file", cfg.Audit.Type)
	require.Len(t, cfg.Seed, 1)
	assert.Equal(t, []string{"Admin"}, cfg.Seed[0].Roles)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
session:
  secret: too-short
external:
  issuer: https://idp.example.com
`)
	t.Setenv("BRIDGE_SESSION_SECRET", testSecret)
	t.Setenv("BRIDGE_EXTERNAL_HEADER", "X-Id-Token")
	t.Setenv("BRIDGE_EXTERNAL_VALIDATE_AUDIENCE", "true")
	t.Setenv("BRIDGE_EXTERNAL_AUDIENCE", "client-1")
	t.Setenv("BRIDGE_STORE_DSN", "postgres://env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.Session.Secret)
	assert.Equal(t, "X-Id-Token", cfg.External.Header)
	assert.True(t, cfg.External.ValidateAudience)
	assert.Equal(t, "client-1", cfg.External.Audience)
	assert.Equal(t, "postgres://env", cfg.Store.Options["dsn"])
	assert.True(t, cfg.External.UsesDiscovery())
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("BRIDGE_SESSION_SECRET", testSecret)
	t.Setenv("BRIDGE_EXTERNAL_ISSUER", "https://idp.example.com")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Type)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Config{
			Session:  SessionConfig{Secret: testSecret},
			External: ExternalConfig{Issuer: "https://idp.example.com"},
		}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:   "Valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "Short Secret",
			mutate:  func(c *Config) { c.Session.Secret = "short" },
			wantErr: true,
		},
		{
			name:    "Missing Issuer",
			mutate:  func(c *Config) { c.External.Issuer = "" },
			wantErr: true,
		},
		{
			name: "Two Key Sources",
			mutate: func(c *Config) {
				c.External.Keys = `{"keys":[]}`
				c.External.JWKSURL = "https://idp.example.com/keys"
			},
			wantErr: true,
		},
		{
			name:    "Audience Required",
			mutate:  func(c *Config) { c.External.ValidateAudience = true },
			wantErr: true,
		},
		{
			name:    "Unknown Store",
			mutate:  func(c *Config) { c.Store.Type = "redis" },
			wantErr: true,
		},
		{
			name: "File Audit Without Path",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.Type = "file"
			},
			wantErr: true,
		},
		{
			name: "Incomplete Seed",
			mutate: func(c *Config) {
				c.Seed = []SeedAccount{{Username: "alice"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
