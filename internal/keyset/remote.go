package keyset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/darmiel/sessionbridge/internal/buildinfo"
)

const (
	DefaultCacheTTL           = time.Hour
	DefaultMinRefreshInterval = 30 * time.Second
	DefaultFetchTimeout       = 10 * time.Second

	maxDocumentSize = 1 << 20
)

var _ KeySet = (*Remote)(nil)

type RemoteConfig struct {
	// URL is the JWKS endpoint of the IdP.
	URL string

	// CacheTTL is how long a fetched key set is used before it is refreshed.
	CacheTTL time.Duration

	// MinRefreshInterval limits how often an unknown kid may trigger a refresh.
	MinRefreshInterval time.Duration

	// FetchTimeout bounds a single fetch. Fetches are detached from the request that triggered them.
	FetchTimeout time.Duration

	HTTPClient *http.Client

	// Now is used for tests; defaults to time.Now.
	Now func() time.Time
}

type snapshot struct {
	keys      map[string]jose.JSONWebKey
	fetchedAt time.Time
}

// Remote is a key set fetched from the IdP's JWKS endpoint and cached in memory.
// Reads never lock; a refresh atomically replaces the whole snapshot.
// If a refresh fails, the previous snapshot keeps being served.
type Remote struct {
	cfg RemoteConfig

	current     atomic.Pointer[snapshot]
	lastAttempt atomic.Int64 // unix nanos of the last refresh attempt
	group       singleflight.Group
}

func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.URL == "" {
		return nil, errors.New("jwks url is required")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = DefaultMinRefreshInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Remote{cfg: cfg}, nil
}

// URL returns the JWKS endpoint this key set is fetched from.
func (r *Remote) URL() string {
	return r.cfg.URL
}

// Warm fetches the key set once, so the first request does not have to.
func (r *Remote) Warm(ctx context.Context) error {
	return r.refresh(ctx)
}

func (r *Remote) Key(ctx context.Context, kid string) (*jose.JSONWebKey, error) {
	snap := r.current.Load()
	now := r.cfg.Now()

	if snap != nil {
		k, found := snap.keys[kid]
		fresh := now.Sub(snap.fetchedAt) < r.cfg.CacheTTL
		switch {
		case found && fresh:
			return &k, nil
		case found:
			// stale: try to refresh, fall back to the cached key
			if err := r.refresh(ctx); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("jwks_url", r.cfg.URL).Msg("jwks refresh failed, serving stale key")
				return &k, nil
			}
		case fresh && !r.mayRefresh(now):
			return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
		default:
			if err := r.refresh(ctx); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("jwks_url", r.cfg.URL).Msg("jwks refresh failed")
				return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
			}
		}
	} else if err := r.refresh(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	snap = r.current.Load()
	if snap == nil {
		return nil, ErrUnavailable
	}
	k, ok := snap.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}
	return &k, nil
}

func (r *Remote) mayRefresh(now time.Time) bool {
	last := r.lastAttempt.Load()
	return last == 0 || now.Sub(time.Unix(0, last)) >= r.cfg.MinRefreshInterval
}

// refresh fetches the key set. Concurrent callers share one fetch.
func (r *Remote) refresh(ctx context.Context) error {
	ch := r.group.DoChan("jwks", func() (any, error) {
		r.lastAttempt.Store(r.cfg.Now().UnixNano())

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.FetchTimeout)
		defer cancel()

		keys, err := r.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		r.current.Store(&snapshot{keys: keys, fetchedAt: r.cfg.Now()})
		log.Debug().Str("jwks_url", r.cfg.URL).Int("keys", len(keys)).Msg("jwks refreshed")
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Remote) fetch(ctx context.Context) (map[string]jose.JSONWebKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := r.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching jwks: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching jwks: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("reading jwks: %w", err)
	}
	return Parse(body, false)
}
