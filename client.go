// Package bca is a client for the BCA banking API. It obtains bearer tokens
// with the OAuth2 client-credentials grant and signs every request with
// HMAC-SHA256 before dispatch.
package bca

import (
	"context"

	"github.com/goliatone/go-bca/auth"
	"github.com/goliatone/go-bca/command"
	"github.com/goliatone/go-bca/core"
	"github.com/goliatone/go-bca/forex"
	"github.com/goliatone/go-bca/security"
	sqlstore "github.com/goliatone/go-bca/store/sql"
	"github.com/goliatone/go-bca/transport"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
)

type Config = core.Config

type Request = core.Request

type Response = core.Response

type Option func(*clientOptions)

type clientOptions struct {
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	transport       core.TransportAdapter
	httpClient      transport.HTTPDoer
	activityStore   *sqlstore.ActivityStore
	serviceOptions  []core.Option
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(o *clientOptions) {
		o.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(o *clientOptions) {
		o.optionsResolver = resolver
	}
}

func WithLogger(logger core.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *clientOptions) {
		o.loggerProvider = provider
	}
}

// WithTransport replaces the HTTP transport used for both the token call and
// signed requests.
func WithTransport(adapter core.TransportAdapter) Option {
	return func(o *clientOptions) {
		o.transport = adapter
	}
}

func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithActivityStore records executions in store instead of opening one from
// the activity config.
func WithActivityStore(store *sqlstore.ActivityStore) Option {
	return func(o *clientOptions) {
		o.activityStore = store
	}
}

// WithServiceOptions forwards options to core.NewService, e.g. a metrics
// recorder or a fixed clock.
func WithServiceOptions(opts ...core.Option) Option {
	return func(o *clientOptions) {
		o.serviceOptions = append(o.serviceOptions, opts...)
	}
}

// Client bundles the signed request pipeline with its token source and the
// optional activity ledger.
type Client struct {
	service      *core.Service
	tokenManager *auth.TokenManager
	tokenSource  core.TokenSource
	forex        *forex.Client
	activity     *sqlstore.ActivityStore
	persistence  *persistence.Client
	logger       core.Logger
}

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewFromEnv loads configuration from the optional dotenv files and the
// BCA_* process environment.
func NewFromEnv(ctx context.Context, files []string, opts ...Option) (*Client, error) {
	loader := core.NewEnvConfigLoader(files...)
	opts = append([]Option{WithConfigProvider(core.NewCfgxConfigProvider(loader))}, opts...)
	return New(ctx, Config{}, opts...)
}

func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	options := clientOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	provider, logger := glog.Resolve("bca", options.loggerProvider, options.logger)
	logger = glog.Ensure(logger)

	resolved, err := core.ResolveConfig(ctx, cfg, options.configProvider, options.optionsResolver)
	if err != nil {
		return nil, err
	}
	resolved, err = security.OpenConfig(ctx, resolved)
	if err != nil {
		return nil, err
	}

	adapter := options.transport
	if adapter == nil {
		if options.httpClient != nil {
			adapter = transport.NewHTTPSender(options.httpClient)
		} else {
			adapter = transport.NewHTTPSenderWithTimeout(resolved.RequestTimeout())
		}
	}

	creds := resolved.Credentials()
	tokenManager := auth.NewTokenManager(auth.TokenManagerConfig{
		BaseURL:      resolved.ResolvedBaseURL(),
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Timeout:      resolved.RequestTimeout(),
		Logger:       logger,
	}, adapter)

	client := &Client{tokenManager: tokenManager, tokenSource: tokenManager, logger: logger}
	if resolved.Token.CacheEnabled {
		cached, err := auth.NewCachedTokenSource(tokenManager, auth.CachedTokenSourceConfig{
			TTL:         resolved.Token.TTL,
			RenewBefore: resolved.Token.RenewBefore,
			Key:         creds.ClientID,
		})
		if err != nil {
			return nil, core.NewInternalError("bca: token cache", err, nil)
		}
		client.tokenSource = cached
	}

	client.activity = options.activityStore
	if client.activity == nil && resolved.Activity.Enabled {
		persistenceClient, err := sqlstore.Open(ctx, resolved.Activity.Driver, resolved.Activity.DSN)
		if err != nil {
			return nil, core.NewInternalError("bca: open activity store", err, map[string]any{"driver": resolved.Activity.Driver})
		}
		factory, err := sqlstore.NewRepositoryFactoryFromPersistence(persistenceClient)
		if err != nil {
			_ = persistenceClient.Close()
			return nil, core.NewInternalError("bca: activity repository", err, nil)
		}
		client.persistence = persistenceClient
		client.activity = factory.ActivityStore()
	}

	serviceOpts := []core.Option{
		core.WithLogger(logger),
		core.WithLoggerProvider(provider),
		core.WithTokenSource(client.tokenSource),
		core.WithSigner(auth.NewSigner(creds.APIKeySecret)),
		core.WithTransport(adapter),
	}
	if client.activity != nil {
		serviceOpts = append(serviceOpts, core.WithActivityRecorder(client.activity))
	}
	serviceOpts = append(serviceOpts, options.serviceOptions...)

	service, err := core.NewService(resolved, serviceOpts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	client.service = service
	client.forex = forex.NewClient(service)

	logger.Info("bca client ready", "config", resolved.String())
	return client, nil
}

// Do signs and dispatches req. See core.Service.Execute for error semantics.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	if c == nil || c.service == nil {
		return Response{}, core.NewInternalError("bca: client is not initialized", nil, nil)
	}
	return c.service.Do(ctx, req)
}

func (c *Client) Execute(ctx context.Context, method string, path string, body any) (Response, error) {
	return c.Do(ctx, Request{Method: method, Path: path, Body: body})
}

// EnsureToken returns a token from the configured source. Without token
// caching every call reaches the token endpoint.
func (c *Client) EnsureToken(ctx context.Context) (core.AccessToken, error) {
	if c == nil || c.tokenSource == nil {
		return core.AccessToken{}, core.NewInternalError("bca: client is not initialized", nil, nil)
	}
	return c.tokenSource.EnsureToken(ctx)
}

// Refresh bypasses any token cache.
func (c *Client) Refresh(ctx context.Context) (core.AccessToken, error) {
	if c == nil || c.tokenManager == nil {
		return core.AccessToken{}, core.NewInternalError("bca: client is not initialized", nil, nil)
	}
	if cached, ok := c.tokenSource.(*auth.CachedTokenSource); ok {
		return cached.Refresh(ctx)
	}
	return c.tokenManager.Refresh(ctx)
}

func (c *Client) Forex() *forex.Client {
	if c == nil {
		return nil
	}
	return c.forex
}

func (c *Client) Service() *core.Service {
	if c == nil {
		return nil
	}
	return c.service
}

func (c *Client) TokenManager() *auth.TokenManager {
	if c == nil {
		return nil
	}
	return c.tokenManager
}

// ActivityStore is nil unless activity recording is enabled.
func (c *Client) ActivityStore() *sqlstore.ActivityStore {
	if c == nil {
		return nil
	}
	return c.activity
}

func (c *Client) Close() error {
	if c == nil || c.persistence == nil {
		return nil
	}
	err := c.persistence.Close()
	c.persistence = nil
	if err != nil {
		return core.NewInternalError("bca: close activity store", err, nil)
	}
	return nil
}

var (
	_ core.Executor          = (*Client)(nil)
	_ command.TokenRefresher = (*Client)(nil)
)
