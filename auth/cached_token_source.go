package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-bca/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"golang.org/x/sync/singleflight"
)

const tokenCacheKeyPrefix = "go-bca::access_token::v1"

type CachedTokenSourceConfig struct {
	TTL         time.Duration
	RenewBefore time.Duration
	// Key separates tokens of different client ids sharing one cache service.
	Key string
	Now func() time.Time
}

// CachedTokenSource reuses tokens from an inner source until they are within
// RenewBefore of expiry. Concurrent misses share a single inner call.
type CachedTokenSource struct {
	source core.TokenSource
	cache  repositorycache.CacheService
	group  singleflight.Group
	key    string
	config CachedTokenSourceConfig
}

func NewCachedTokenSource(source core.TokenSource, cfg CachedTokenSourceConfig) (*CachedTokenSource, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = core.DefaultTokenTTL
	}
	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = cfg.TTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("auth: token cache service: %w", err)
	}
	return NewCachedTokenSourceWithCache(source, cacheService, cfg)
}

func NewCachedTokenSourceWithCache(
	source core.TokenSource,
	cacheService repositorycache.CacheService,
	cfg CachedTokenSourceConfig,
) (*CachedTokenSource, error) {
	if source == nil {
		return nil, fmt.Errorf("auth: inner token source is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("auth: token cache service is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = core.DefaultTokenTTL
	}
	if cfg.RenewBefore < 0 {
		cfg.RenewBefore = 0
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &CachedTokenSource{
		source: source,
		cache:  cacheService,
		key:    TokenCacheKey(cfg.Key),
		config: cfg,
	}, nil
}

// TokenCacheKey returns go-bca::access_token::v1::<key> with the key path
// escaped.
func TokenCacheKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "default"
	}
	return tokenCacheKeyPrefix + "::" + url.PathEscape(key)
}

func (s *CachedTokenSource) EnsureToken(ctx context.Context) (core.AccessToken, error) {
	if s == nil || s.source == nil || s.cache == nil {
		return core.AccessToken{}, core.NewAuthError("auth: cached token source is not configured", nil, 500, nil)
	}
	token, err := s.lookup(ctx)
	if err != nil {
		return core.AccessToken{}, err
	}
	if !s.stale(token) {
		return token, nil
	}
	if err := s.Invalidate(ctx); err != nil {
		return core.AccessToken{}, err
	}
	return s.lookup(ctx)
}

// Refresh discards the cached token and fetches a new one.
func (s *CachedTokenSource) Refresh(ctx context.Context) (core.AccessToken, error) {
	if err := s.Invalidate(ctx); err != nil {
		return core.AccessToken{}, err
	}
	return s.EnsureToken(ctx)
}

// Invalidate drops the cached token so the next call reaches the inner source.
func (s *CachedTokenSource) Invalidate(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, s.key)
}

func (s *CachedTokenSource) lookup(ctx context.Context) (core.AccessToken, error) {
	token, err := repositorycache.GetOrFetch(ctx, s.cache, s.key, func(ctx context.Context) (core.AccessToken, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return core.AccessToken{}, err
	}
	return cloneToken(token), nil
}

func (s *CachedTokenSource) fetch(ctx context.Context) (core.AccessToken, error) {
	result, err, _ := s.group.Do(s.key, func() (any, error) {
		return s.source.EnsureToken(ctx)
	})
	if err != nil {
		return core.AccessToken{}, err
	}
	token, ok := result.(core.AccessToken)
	if !ok {
		return core.AccessToken{}, core.NewAuthError("auth: unexpected token source result", nil, 500, nil)
	}
	return cloneToken(token), nil
}

func (s *CachedTokenSource) stale(token core.AccessToken) bool {
	if token.IsZero() {
		return true
	}
	now := s.config.Now()
	if token.ExpiresWithin(now, s.config.RenewBefore) {
		return true
	}
	return !token.ObtainedAt.IsZero() && !token.ObtainedAt.Add(s.config.TTL).After(now)
}
