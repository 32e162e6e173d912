package command

import (
	"strings"

	"github.com/goliatone/go-bca/core"
)

const (
	TypeExecuteRequest = "bca.command.request.execute"
	TypeRefreshToken   = "bca.command.token.refresh"
)

type ExecuteRequestMessage struct {
	Request core.Request
}

func (ExecuteRequestMessage) Type() string { return TypeExecuteRequest }

func (m ExecuteRequestMessage) Validate() error {
	if strings.TrimSpace(m.Request.Method) == "" {
		return commandValidationError("method", "is required")
	}
	if !strings.HasPrefix(m.Request.Path, "/") {
		return commandValidationError("path", "must start with /")
	}
	return nil
}

type RefreshTokenMessage struct{}

func (RefreshTokenMessage) Type() string { return TypeRefreshToken }

// TokenStatus describes a refreshed token without exposing its value.
type TokenStatus struct {
	TokenType  string
	Scope      string
	ObtainedAt string
	ExpiresAt  string
}

func tokenStatus(token core.AccessToken) TokenStatus {
	status := TokenStatus{
		TokenType: token.TokenType,
		Scope:     token.Scope,
	}
	if !token.ObtainedAt.IsZero() {
		status.ObtainedAt = core.FormatTimestamp(token.ObtainedAt)
	}
	if token.ExpiresAt != nil {
		status.ExpiresAt = core.FormatTimestamp(*token.ExpiresAt)
	}
	return status
}
