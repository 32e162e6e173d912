package bca

import (
	"fmt"

	bcacommand "github.com/goliatone/go-bca/command"
	"github.com/goliatone/go-bca/core"
	bcaquery "github.com/goliatone/go-bca/query"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
)

type Commands struct {
	ExecuteRequest *bcacommand.ExecuteRequestCommand
	RefreshToken   *bcacommand.RefreshTokenCommand
}

type Queries struct {
	GetForexRates *bcaquery.GetForexRatesQuery
	ListActivity  *bcaquery.ListActivityQuery
}

type Facade struct {
	client   *Client
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	activityReader core.ActivityReader
}

func WithActivityReader(reader core.ActivityReader) FacadeOption {
	return func(options *facadeOptions) {
		options.activityReader = reader
	}
}

func NewFacade(client *Client, opts ...FacadeOption) (*Facade, error) {
	if client == nil || client.service == nil {
		return nil, fmt.Errorf("bca: client is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.activityReader
	if reader == nil && client.activity != nil {
		reader = client.activity
	}

	return &Facade{
		client: client,
		commands: Commands{
			ExecuteRequest: bcacommand.NewExecuteRequestCommand(client),
			RefreshToken:   bcacommand.NewRefreshTokenCommand(client),
		},
		queries: Queries{
			GetForexRates: bcaquery.NewGetForexRatesQuery(client.forex),
			ListActivity:  bcaquery.NewListActivityQuery(reader),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Client() *Client {
	if f == nil {
		return nil
	}
	return f.client
}

// Register subscribes every command and query on the go-command dispatcher
// and records them in adapter's registry. The returned subscriptions must be
// released by the caller.
func (f *Facade) Register(adapter *bcacommand.RegistryAdapter) ([]commanddispatcher.Subscription, error) {
	if f == nil {
		return nil, fmt.Errorf("bca: facade is nil")
	}
	subscriptions := []commanddispatcher.Subscription{}
	release := func() {
		for _, sub := range subscriptions {
			sub.Unsubscribe()
		}
	}

	execSub, err := bcacommand.RegisterAndSubscribe(adapter, f.commands.ExecuteRequest)
	if err != nil {
		return nil, err
	}
	subscriptions = append(subscriptions, execSub)

	refreshSub, err := bcacommand.RegisterAndSubscribe(adapter, f.commands.RefreshToken)
	if err != nil {
		release()
		return nil, err
	}
	subscriptions = append(subscriptions, refreshSub)

	forexSub, err := bcacommand.RegisterAndSubscribeQuery(adapter, f.queries.GetForexRates)
	if err != nil {
		release()
		return nil, err
	}
	subscriptions = append(subscriptions, forexSub)

	activitySub, err := bcacommand.RegisterAndSubscribeQuery(adapter, f.queries.ListActivity)
	if err != nil {
		release()
		return nil, err
	}
	subscriptions = append(subscriptions, activitySub)

	return subscriptions, nil
}
