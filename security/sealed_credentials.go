package security

import (
	"context"
	"strings"

	"github.com/goliatone/go-bca/core"
)

// OpenCredentials decrypts every sealed credential field with provider and
// leaves plain values untouched.
func OpenCredentials(ctx context.Context, provider core.SecretProvider, creds core.Credentials) (core.Credentials, error) {
	fields := []struct {
		name  string
		value *string
	}{
		{"client_id", &creds.ClientID},
		{"client_secret", &creds.ClientSecret},
		{"api_key", &creds.APIKey},
		{"api_key_secret", &creds.APIKeySecret},
	}
	for _, field := range fields {
		if !IsSealed(*field.value) {
			continue
		}
		if provider == nil {
			return core.Credentials{}, core.NewBadInputError(
				"security: sealed credential requires an app key",
				map[string]any{"field": field.name},
			)
		}
		opened, err := provider.Decrypt(ctx, []byte(strings.TrimSpace(*field.value)))
		if err != nil {
			return core.Credentials{}, core.NewInternalError(
				"security: open sealed credential failed",
				err,
				map[string]any{"field": field.name},
			)
		}
		*field.value = strings.TrimSpace(string(opened))
	}
	return creds, nil
}

// OpenConfig opens sealed credentials in cfg using cfg.AppKey.
func OpenConfig(ctx context.Context, cfg core.Config) (core.Config, error) {
	creds := cfg.Credentials()
	if !HasSealed(creds) {
		return cfg, nil
	}
	var provider core.SecretProvider
	if appKey := strings.TrimSpace(cfg.AppKey); appKey != "" {
		appProvider, err := NewAppKeySecretProviderFromString(appKey)
		if err != nil {
			return core.Config{}, core.NewBadInputError("security: invalid app key", nil)
		}
		provider = appProvider
	}
	opened, err := OpenCredentials(ctx, provider, creds)
	if err != nil {
		return core.Config{}, err
	}
	cfg.ClientID = opened.ClientID
	cfg.ClientSecret = opened.ClientSecret
	cfg.APIKey = opened.APIKey
	cfg.APIKeySecret = opened.APIKeySecret
	return cfg, nil
}

func HasSealed(creds core.Credentials) bool {
	return IsSealed(creds.ClientID) ||
		IsSealed(creds.ClientSecret) ||
		IsSealed(creds.APIKey) ||
		IsSealed(creds.APIKeySecret)
}
