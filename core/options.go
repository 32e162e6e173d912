package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
	"github.com/google/uuid"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig    Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	configProvider   ConfigProvider
	optionsResolver  OptionsResolver
	tokenSource      TokenSource
	signer           RequestSigner
	transport        TransportAdapter
	activityRecorder ActivityRecorder
	clock            Clock
	idGenerator      IDGenerator
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithTokenSource(source TokenSource) Option {
	return func(b *serviceBuilder) {
		b.tokenSource = source
	}
}

func WithSigner(signer RequestSigner) Option {
	return func(b *serviceBuilder) {
		b.signer = signer
	}
}

func WithTransport(adapter TransportAdapter) Option {
	return func(b *serviceBuilder) {
		b.transport = adapter
	}
}

// WithActivityRecorder registers a ledger that receives one entry per
// finished execution.
func WithActivityRecorder(recorder ActivityRecorder) Option {
	return func(b *serviceBuilder) {
		b.activityRecorder = recorder
	}
}

func WithClock(clock Clock) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func WithIDGenerator(generator IDGenerator) Option {
	return func(b *serviceBuilder) {
		b.idGenerator = generator
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("bca", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           time.Now,
		idGenerator:     uuid.NewString,
	}
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load decodes the raw values over defaults. Validation is deferred to the
// options resolver since credentials may only arrive with the runtime layer.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw, cfgx.WithDefaults(defaults))
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, nil),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, &defaults),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, &defaults),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap emits every field when base is nil. Otherwise it only
// emits fields that are set and differ from base, so a layer built on top of
// DefaultConfig never overrides a lower layer with a default value.
func configToLayerMap(cfg Config, base *Config) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key, value, baseValue string) {
		if base == nil || (strings.TrimSpace(value) != "" && value != baseValue) {
			target[key] = value
		}
	}
	setDuration := func(target map[string]any, key string, value, baseValue time.Duration) {
		if base == nil || (value != 0 && value != baseValue) {
			target[key] = value
		}
	}
	setBool := func(target map[string]any, key string, value, baseValue bool) {
		if base == nil || (value && value != baseValue) {
			target[key] = value
		}
	}
	ref := Config{}
	if base != nil {
		ref = *base
	}

	setString(layer, "service_name", cfg.ServiceName, ref.ServiceName)
	setString(layer, "environment", cfg.Environment, ref.Environment)
	setString(layer, "base_url", cfg.BaseURL, ref.BaseURL)
	setString(layer, "client_id", cfg.ClientID, ref.ClientID)
	setString(layer, "client_secret", cfg.ClientSecret, ref.ClientSecret)
	setString(layer, "api_key", cfg.APIKey, ref.APIKey)
	setString(layer, "api_key_secret", cfg.APIKeySecret, ref.APIKeySecret)
	setString(layer, "app_key", cfg.AppKey, ref.AppKey)
	setDuration(layer, "timeout", cfg.Timeout, ref.Timeout)

	token := map[string]any{}
	setBool(token, "cache_enabled", cfg.Token.CacheEnabled, ref.Token.CacheEnabled)
	setDuration(token, "ttl", cfg.Token.TTL, ref.Token.TTL)
	setDuration(token, "renew_before", cfg.Token.RenewBefore, ref.Token.RenewBefore)
	if len(token) > 0 {
		layer["token"] = token
	}

	activity := map[string]any{}
	setBool(activity, "enabled", cfg.Activity.Enabled, ref.Activity.Enabled)
	setString(activity, "driver", cfg.Activity.Driver, ref.Activity.Driver)
	setString(activity, "dsn", cfg.Activity.DSN, ref.Activity.DSN)
	if len(activity) > 0 {
		layer["activity"] = activity
	}
	return layer
}

// ResolveConfig runs the provider and resolver pair outside of NewService so
// callers can build adapters from the final configuration first.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}
