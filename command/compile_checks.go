package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ExecuteRequestMessage] = (*ExecuteRequestCommand)(nil)
	_ gocmd.Commander[RefreshTokenMessage]   = (*RefreshTokenCommand)(nil)
)
