package command

import (
	"context"

	"github.com/goliatone/go-bca/core"
	gocmd "github.com/goliatone/go-command"
)

// TokenRefresher forces a new token from the BCA token endpoint.
type TokenRefresher interface {
	Refresh(ctx context.Context) (core.AccessToken, error)
}

type ExecuteRequestCommand struct {
	executor core.Executor
}

func NewExecuteRequestCommand(executor core.Executor) *ExecuteRequestCommand {
	return &ExecuteRequestCommand{executor: executor}
}

// Execute runs the signed request. A non-2xx response is stored before the
// transport error is returned so callers can inspect the upstream payload.
func (c *ExecuteRequestCommand) Execute(ctx context.Context, msg ExecuteRequestMessage) error {
	if c == nil || c.executor == nil {
		return commandDependencyError("command: request executor is required")
	}
	out, err := c.executor.Do(ctx, msg.Request)
	if out.StatusCode != 0 {
		storeResult(ctx, out)
	}
	return err
}

type RefreshTokenCommand struct {
	refresher TokenRefresher
}

func NewRefreshTokenCommand(refresher TokenRefresher) *RefreshTokenCommand {
	return &RefreshTokenCommand{refresher: refresher}
}

func (c *RefreshTokenCommand) Execute(ctx context.Context, _ RefreshTokenMessage) error {
	if c == nil || c.refresher == nil {
		return commandDependencyError("command: token refresher is required")
	}
	token, err := c.refresher.Refresh(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, tokenStatus(token))
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
