package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-bca/core"
	glog "github.com/goliatone/go-logger/glog"
)

const grantTypeClientCredentials = "client_credentials"

type TokenManagerConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	Now          func() time.Time
	Logger       core.Logger
}

// TokenManager obtains bearer tokens with the client-credentials grant. Every
// EnsureToken call requests a fresh token; wrap it in a CachedTokenSource to
// reuse tokens until they near expiry.
type TokenManager struct {
	config    TokenManagerConfig
	transport core.TransportAdapter
	logger    core.Logger

	mu      sync.RWMutex
	current core.AccessToken
}

type tokenPayload struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   json.Number `json:"expires_in"`
	Scope       string      `json:"scope"`
}

func NewTokenManager(cfg TokenManagerConfig, transport core.TransportAdapter) *TokenManager {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = core.DefaultRequestTimeout
	}
	return &TokenManager{
		config: TokenManagerConfig{
			BaseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			Timeout:      timeout,
			Now:          now,
		},
		transport: transport,
		logger:    glog.Ensure(cfg.Logger),
	}
}

func (m *TokenManager) EnsureToken(ctx context.Context) (core.AccessToken, error) {
	return m.Refresh(ctx)
}

// Refresh requests a new token and stores it unconditionally on success.
func (m *TokenManager) Refresh(ctx context.Context) (core.AccessToken, error) {
	if m == nil || m.transport == nil {
		return core.AccessToken{}, core.NewAuthError("auth: token manager is not configured", nil, http.StatusInternalServerError, nil)
	}
	tokenURL := m.config.BaseURL + core.TokenPath
	meta := map[string]any{"token_url": tokenURL}

	res, err := m.transport.Do(ctx, core.TransportRequest{
		Method: http.MethodPost,
		URL:    tokenURL,
		Headers: map[string]string{
			core.HeaderAuthorization: "Basic " + BasicCredentials(m.config.ClientID, m.config.ClientSecret),
			core.HeaderContentType:   core.ContentTypeForm,
		},
		Body:    []byte(url.Values{"grant_type": {grantTypeClientCredentials}}.Encode()),
		Timeout: m.config.Timeout,
	})
	if err != nil {
		m.logger.WithContext(ctx).Warn("bca token request failed", "error", err.Error())
		return core.AccessToken{}, core.NewAuthError("auth: token endpoint unreachable", err, http.StatusBadGateway, meta)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		meta["status_code"] = res.StatusCode
		m.logger.WithContext(ctx).Warn("bca token request rejected", "status_code", res.StatusCode)
		return core.AccessToken{}, core.NewAuthError("auth: token endpoint rejected the client credentials", nil, res.StatusCode, meta)
	}

	token, err := m.decode(res.Body)
	if err != nil {
		return core.AccessToken{}, core.NewAuthError("auth: token response is malformed", err, http.StatusBadGateway, meta)
	}

	m.mu.Lock()
	m.current = token
	m.mu.Unlock()

	m.logger.WithContext(ctx).Debug("bca token refreshed", "token_type", token.TokenType, "expires_at", expiresAtField(token))
	return token, nil
}

// Current returns the last stored token, if any.
func (m *TokenManager) Current() (core.AccessToken, bool) {
	if m == nil {
		return core.AccessToken{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, !m.current.IsZero()
}

func (m *TokenManager) decode(body []byte) (core.AccessToken, error) {
	var payload tokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.AccessToken{}, err
	}
	value := strings.TrimSpace(payload.AccessToken)
	if value == "" {
		return core.AccessToken{}, errMissingAccessToken
	}

	obtainedAt := m.config.Now().UTC()
	token := core.AccessToken{
		Value:      value,
		TokenType:  firstNonEmpty(payload.TokenType, "Bearer"),
		Scope:      strings.TrimSpace(payload.Scope),
		ObtainedAt: obtainedAt,
	}
	if seconds, err := payload.ExpiresIn.Int64(); err == nil && seconds > 0 {
		expiresAt := obtainedAt.Add(time.Duration(seconds) * time.Second)
		token.ExpiresAt = &expiresAt
	}
	return token, nil
}

// BasicCredentials returns base64(clientID:clientSecret).
func BasicCredentials(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}
