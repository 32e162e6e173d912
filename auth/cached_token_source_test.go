package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-bca/core"
)

type countingTokenSource struct {
	calls   atomic.Int32
	now     func() time.Time
	ttl     time.Duration
	err     error
	release chan struct{}
}

func (s *countingTokenSource) EnsureToken(context.Context) (core.AccessToken, error) {
	n := s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return core.AccessToken{}, s.err
	}
	token := core.AccessToken{Value: "token-" + string(rune('0'+n)), ObtainedAt: s.now()}
	if s.ttl > 0 {
		expiresAt := s.now().Add(s.ttl)
		token.ExpiresAt = &expiresAt
	}
	return token, nil
}

func TestCachedTokenSource_ReusesUntilRenewWindow(t *testing.T) {
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	inner := &countingTokenSource{now: clock, ttl: time.Hour}
	source, err := NewCachedTokenSource(inner, CachedTokenSourceConfig{
		TTL:         time.Hour,
		RenewBefore: 2 * time.Minute,
		Key:         "client-id",
		Now:         clock,
	})
	if err != nil {
		t.Fatalf("new cached token source: %v", err)
	}

	first, err := source.EnsureToken(context.Background())
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := source.EnsureToken(context.Background())
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Value != second.Value || inner.calls.Load() != 1 {
		t.Fatalf("expected cached token reuse, got %q/%q after %d calls", first.Value, second.Value, inner.calls.Load())
	}

	now = now.Add(59 * time.Minute)
	third, err := source.EnsureToken(context.Background())
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if third.Value == second.Value || inner.calls.Load() != 2 {
		t.Fatalf("expected renewal inside renew window, got %q after %d calls", third.Value, inner.calls.Load())
	}
}

func TestCachedTokenSource_Invalidate(t *testing.T) {
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	inner := &countingTokenSource{now: func() time.Time { return now }}
	source, err := NewCachedTokenSource(inner, CachedTokenSourceConfig{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new cached token source: %v", err)
	}
	if _, err := source.EnsureToken(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := source.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := source.EnsureToken(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if inner.calls.Load() != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", inner.calls.Load())
	}
}

func TestCachedTokenSource_ConcurrentMissesShareRefresh(t *testing.T) {
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	inner := &countingTokenSource{now: func() time.Time { return now }, ttl: time.Hour, release: make(chan struct{})}
	source, err := NewCachedTokenSource(inner, CachedTokenSourceConfig{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new cached token source: %v", err)
	}

	var wg sync.WaitGroup
	values := make([]string, 8)
	for i := range values {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := source.EnsureToken(context.Background())
			if err == nil {
				values[i] = token.Value
			}
		}(i)
	}
	for inner.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	if inner.calls.Load() != 1 {
		t.Fatalf("expected a single inner refresh, got %d", inner.calls.Load())
	}
	for _, value := range values {
		if value != "token-1" {
			t.Fatalf("expected every caller to get token-1, got %#v", values)
		}
	}
}

func TestCachedTokenSource_PropagatesErrors(t *testing.T) {
	inner := &countingTokenSource{now: time.Now, err: core.NewAuthError("auth: rejected", errors.New("401"), 401, nil)}
	source, err := NewCachedTokenSource(inner, CachedTokenSourceConfig{})
	if err != nil {
		t.Fatalf("new cached token source: %v", err)
	}
	if _, err := source.EnsureToken(context.Background()); !core.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, err := NewCachedTokenSource(nil, CachedTokenSourceConfig{}); err == nil {
		t.Fatalf("expected error for missing inner source")
	}
}

func TestTokenCacheKey(t *testing.T) {
	if got := TokenCacheKey(""); got != "go-bca::access_token::v1::default" {
		t.Fatalf("unexpected default key %q", got)
	}
	if got := TokenCacheKey("client/id"); got != "go-bca::access_token::v1::client%2Fid" {
		t.Fatalf("unexpected escaped key %q", got)
	}
}

func TestCachedTokenSource_RefreshBypassesCache(t *testing.T) {
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	inner := &countingTokenSource{now: clock, ttl: time.Hour}
	source, err := NewCachedTokenSource(inner, CachedTokenSourceConfig{Now: clock})
	if err != nil {
		t.Fatalf("new cached token source: %v", err)
	}

	first, err := source.EnsureToken(context.Background())
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	refreshed, err := source.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.Value == first.Value || inner.calls.Load() != 2 {
		t.Fatalf("expected refresh to reach the inner source, got %q after %d calls", refreshed.Value, inner.calls.Load())
	}
	cached, err := source.EnsureToken(context.Background())
	if err != nil {
		t.Fatalf("ensure after refresh: %v", err)
	}
	if cached.Value != refreshed.Value || inner.calls.Load() != 2 {
		t.Fatalf("expected refreshed token to be cached, got %q", cached.Value)
	}
}
