package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/viper"
)

const (
	DefaultExternalHeader = "X-okta-token"
	DefaultSessionIssuer  = "sessionbridge"
	DefaultSessionAud     = "sessionbridge"

	// MinSecretLength is the minimum HS256 key length in bytes.
	MinSecretLength = 32

	EnvPrefix = "BRIDGE"
)

type Config struct {
	Session  SessionConfig  `yaml:"session"`
	External ExternalConfig `yaml:"external"`
	Store    StoreConfig    `yaml:"store"`
	Audit    AuditConfig    `yaml:"audit"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Seed     []SeedAccount  `yaml:"seed"`
}

// SessionConfig holds configuration for internally issued session tokens.
type SessionConfig struct {
	// Secret is the HS256 signing key shared by issuance and validation.
	Secret string `yaml:"secret"`

	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// ExternalConfig holds configuration for the external identity provider.
type ExternalConfig struct {
	// Issuer is the trusted issuer, e.g. "https://dev-123.okta.com/oauth2/default".
	Issuer string `yaml:"issuer"`

	Audience         string `yaml:"audience"`
	ValidateAudience bool   `yaml:"validate_audience"`

	// Header carries the external identity token on bridged requests.
	Header string `yaml:"header"`

	// Key material: at most one of Keys, KeysFile and JWKSURL.
	// If none is set, the JWKS endpoint is discovered from the issuer.
	Keys     string `yaml:"keys"` // inline JWK or JWKS document
	KeysFile string `yaml:"keys_file"`
	JWKSURL  string `yaml:"jwks_url"`

	CacheTTL           time.Duration `yaml:"cache_ttl"`
	MinRefreshInterval time.Duration `yaml:"min_refresh_interval"`
	Leeway             time.Duration `yaml:"leeway"`
}

// UsesDiscovery reports whether the JWKS endpoint has to be discovered from the issuer.
func (c *ExternalConfig) UsesDiscovery() bool {
	return c.Keys == "" && c.KeysFile == "" && c.JWKSURL == ""
}

// StoreConfig selects the account store.
type StoreConfig struct {
	Type    string         `yaml:"type"`    // e.g., "memory", "postgres"
	Options map[string]any `yaml:",inline"` // Capture remaining fields
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory", "log"

	// Capacity bounds the "memory" auditor, which also backs the admin audit route.
	Capacity int `yaml:"capacity"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SeedAccount is created at startup if it does not exist yet.
type SeedAccount struct {
	Username string   `yaml:"username"`
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

// Load reads and parses the configuration file at the given path,
// applies BRIDGE_* environment overrides and validates the result.
// An empty path loads the configuration from the environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.ApplyEnv(newEnv())
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyEnv overrides values with those set in v, e.g. BRIDGE_SESSION_SECRET for "session.secret".
func (c *Config) ApplyEnv(v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("session.secret", &c.Session.Secret)
	str("session.issuer", &c.Session.Issuer)
	str("session.audience", &c.Session.Audience)

	str("external.issuer", &c.External.Issuer)
	str("external.audience", &c.External.Audience)
	boolean("external.validate_audience", &c.External.ValidateAudience)
	str("external.header", &c.External.Header)
	str("external.keys", &c.External.Keys)
	str("external.keys_file", &c.External.KeysFile)
	str("external.jwks_url", &c.External.JWKSURL)
	dur("external.cache_ttl", &c.External.CacheTTL)
	dur("external.min_refresh_interval", &c.External.MinRefreshInterval)
	dur("external.leeway", &c.External.Leeway)

	str("store.type", &c.Store.Type)
	if v.IsSet("store.dsn") {
		if c.Store.Options == nil {
			c.Store.Options = make(map[string]any)
		}
		c.Store.Options["dsn"] = v.GetString("store.dsn")
	}

	boolean("audit.enabled", &c.Audit.Enabled)
	str("audit.type", &c.Audit.Type)
	str("audit.path", &c.Audit.Path)
	if v.IsSet("audit.capacity") {
		c.Audit.Capacity = v.GetInt("audit.capacity")
	}

	boolean("metrics.enabled", &c.Metrics.Enabled)
}

func (c *Config) applyDefaults() {
	if c.Session.Issuer == "" {
		c.Session.Issuer = DefaultSessionIssuer
	}
	if c.Session.Audience == "" {
		c.Session.Audience = DefaultSessionAud
	}
	if c.External.Header == "" {
		c.External.Header = DefaultExternalHeader
	}
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if c.Audit.Enabled && c.Audit.Type == "" {
		c.Audit.Type = "file"
	}
}

func (c *Config) Validate() error {
	if len(c.Session.Secret) < MinSecretLength {
		return fmt.Errorf("session.secret must be at least %d bytes", MinSecretLength)
	}
	if c.Session.Issuer == "" || c.Session.Audience == "" {
		return errors.New("session.issuer and session.audience are required")
	}

	if c.External.Issuer == "" {
		return errors.New("external.issuer is required")
	}
	if c.External.ValidateAudience && c.External.Audience == "" {
		return errors.New("external.audience is required if external.validate_audience is set")
	}
	sources := 0
	for _, s := range []string{c.External.Keys, c.External.KeysFile, c.External.JWKSURL} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		return errors.New("only one of external.keys, external.keys_file and external.jwks_url may be set")
	}
	if c.External.CacheTTL < 0 || c.External.MinRefreshInterval < 0 || c.External.Leeway < 0 {
		return errors.New("external durations must not be negative")
	}

	switch c.Store.Type {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown store.type %q", c.Store.Type)
	}

	if c.Audit.Enabled {
		switch c.Audit.Type {
		case "file":
			if c.Audit.Path == "" {
				return errors.New("audit.path is required for the file auditor")
			}
		case "memory", "log":
		default:
			return fmt.Errorf("unknown audit.type %q", c.Audit.Type)
		}
	}

	for idx, s := range c.Seed {
		if s.Username == "" || s.Email == "" || s.Password == "" {
			return fmt.Errorf("seed account at index %d needs username, email and password", idx)
		}
	}
	return nil
}
