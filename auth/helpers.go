package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-bca/core"
)

var errMissingAccessToken = errors.New("auth: access_token is missing")

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func expiresAtField(token core.AccessToken) string {
	if token.ExpiresAt == nil {
		return ""
	}
	return token.ExpiresAt.UTC().Format(time.RFC3339)
}

func cloneToken(token core.AccessToken) core.AccessToken {
	cloned := token
	if token.ExpiresAt != nil {
		value := token.ExpiresAt.UTC()
		cloned.ExpiresAt = &value
	}
	return cloned
}
