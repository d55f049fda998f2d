package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/darmiel/sessionbridge/internal/accounts"
	"github.com/darmiel/sessionbridge/internal/audit"
	"github.com/darmiel/sessionbridge/internal/bridge"
	"github.com/darmiel/sessionbridge/internal/cliconfig"
	"github.com/darmiel/sessionbridge/internal/config"
	"github.com/darmiel/sessionbridge/internal/core"
	"github.com/darmiel/sessionbridge/internal/keyset"
	"github.com/darmiel/sessionbridge/internal/resolver"
	"github.com/darmiel/sessionbridge/internal/session"
	"github.com/darmiel/sessionbridge/internal/telemetry"
	"github.com/darmiel/sessionbridge/internal/verifier"
	"github.com/darmiel/sessionbridge/pkg/client"
)

const TokenEnv = "SESSIONBRIDGE_TOKEN"

type Factory struct {
	// RemoteAddr is the address of the sessionbridge server to connect to.
	RemoteAddr string

	// ConfigPath is the server configuration used by local commands.
	// Empty means the configuration is read from BRIDGE_* environment variables only.
	ConfigPath string
}

func NewFactory() *Factory {
	return &Factory{}
}

// GetClient returns an authenticated HTTP client for remote operations.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.RemoteAddr
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set BRIDGE_ADDR)")
	}

	var token string
	if cfg, err := cliconfig.Load(); err == nil {
		if cred, err := cfg.GetCredential(server); err == nil { // token prio 1: saved credential
			token = cred.Token
		}
	}

	if envToken := os.Getenv(TokenEnv); envToken != "" { // token prio 2: env var
		token = envToken
	}

	return client.New(server, client.WithAuthToken(token)), nil
}

func (f *Factory) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// Stack holds the wired components of a sessionbridge instance.
type Stack struct {
	Config        *config.Config
	Accounts      *accounts.Service
	Verifier      *verifier.Verifier
	Issuer        *session.Issuer
	Validator     *session.Validator
	Auditor       core.Auditor
	Metrics       *telemetry.Metrics
	Authenticator *bridge.Authenticator
}

// Close releases the account store, the auditor and the meter provider.
func (s *Stack) Close(ctx context.Context) error {
	return errors.Join(
		s.Accounts.Store().Close(),
		s.Auditor.Close(),
		s.Metrics.Shutdown(ctx),
	)
}

// BuildStack wires all components from cfg. The returned stack must be closed.
func BuildStack(ctx context.Context, cfg *config.Config) (_ *Stack, err error) {
	s := &Stack{Config: cfg}

	keys, err := buildKeySet(ctx, &cfg.External)
	if err != nil {
		return nil, err
	}
	s.Verifier, err = verifier.New(keys, verifier.Config{
		Issuer:           cfg.External.Issuer,
		Audience:         cfg.External.Audience,
		ValidateAudience: cfg.External.ValidateAudience,
		Leeway:           cfg.External.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("creating verifier: %w", err)
	}

	sessCfg := session.Config{
		Secret:   []byte(cfg.Session.Secret),
		Issuer:   cfg.Session.Issuer,
		Audience: cfg.Session.Audience,
	}
	if s.Issuer, err = session.NewIssuer(sessCfg); err != nil {
		return nil, fmt.Errorf("creating session issuer: %w", err)
	}
	if s.Validator, err = session.NewValidator(sessCfg); err != nil {
		return nil, fmt.Errorf("creating session validator: %w", err)
	}

	log.Info().Str("type", cfg.Store.Type).Msg("Opening account store...")
	store, err := accounts.NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("creating account store: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		_ = store.Close()
		if s.Auditor != nil {
			_ = s.Auditor.Close()
		}
	}()
	s.Accounts = accounts.NewService(store)
	if err := s.Accounts.Seed(ctx, cfg.Seed); err != nil {
		return nil, err
	}

	if s.Auditor, err = audit.New(cfg.Audit); err != nil {
		return nil, fmt.Errorf("creating auditor: %w", err)
	}

	if cfg.Metrics.Enabled {
		if s.Metrics, err = telemetry.NewPrometheus(); err != nil {
			return nil, err
		}
	} else {
		s.Metrics = telemetry.NewNoop()
	}
	bm, err := bridge.NewMetrics(s.Metrics.Meter())
	if err != nil {
		return nil, fmt.Errorf("creating bridge metrics: %w", err)
	}

	s.Authenticator, err = bridge.New(bridge.Config{
		Verifier:  s.Verifier,
		Resolver:  resolver.New(store),
		Issuer:    s.Issuer,
		Validator: s.Validator,
		Auditor:   s.Auditor,
		Metrics:   bm,
		Header:    cfg.External.Header,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func buildKeySet(ctx context.Context, ext *config.ExternalConfig) (keyset.KeySet, error) {
	switch {
	case ext.Keys != "":
		log.Debug().Msg("Using inline key set")
		return keyset.NewStatic([]byte(ext.Keys))
	case ext.KeysFile != "":
		log.Debug().Str("path", ext.KeysFile).Msg("Using key set from file")
		return keyset.NewStaticFromFile(ext.KeysFile)
	}

	url := ext.JWKSURL
	if url == "" {
		log.Info().Str("issuer", ext.Issuer).Msg("Discovering JWKS endpoint...")
		discovered, err := keyset.DiscoverJWKSURL(ctx, ext.Issuer, http.DefaultClient)
		if err != nil {
			return nil, err
		}
		url = discovered
	}

	remote, err := keyset.NewRemote(keyset.RemoteConfig{
		URL:                url,
		CacheTTL:           ext.CacheTTL,
		MinRefreshInterval: ext.MinRefreshInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("creating remote key set: %w", err)
	}
	// an unreachable IdP at startup is not fatal, keys are fetched on demand
	if err := remote.Warm(ctx); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Could not prefetch key set")
	}
	return remote, nil
}

// bindExternalTokenFlag registers --external-token on flags.
func bindExternalTokenFlag(flags *pflag.FlagSet, dst *string) {
	flags.StringVar(dst, "external-token", "",
		`Identity token of the external identity provider ("-" reads from stdin)`)
}
