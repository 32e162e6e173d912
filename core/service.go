package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service runs the signed request pipeline against the BCA API.
type Service struct {
	config           Config
	credentials      Credentials
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorMapper      ErrorMapper
	tokenSource      TokenSource
	signer           RequestSigner
	transport        TransportAdapter
	activityRecorder ActivityRecorder
	clock            Clock
	idGenerator      IDGenerator
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("bca", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("bca"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.clock == nil {
		builder.clock = time.Now
	}
	if builder.idGenerator == nil {
		builder.idGenerator = defaultServiceBuilder(cfg).idGenerator
	}

	finalConfig, err := ResolveConfig(context.Background(), builder.runtimeConfig, builder.configProvider, builder.optionsResolver)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	switch {
	case builder.tokenSource == nil:
		return nil, NewBadInputError("core: token source is required", nil)
	case builder.signer == nil:
		return nil, NewBadInputError("core: request signer is required", nil)
	case builder.transport == nil:
		return nil, NewBadInputError("core: transport adapter is required", nil)
	}

	return &Service{
		config:           finalConfig,
		credentials:      finalConfig.Credentials(),
		logger:           logger,
		loggerProvider:   provider,
		metricsRecorder:  builder.metricsRecorder,
		errorMapper:      builder.errorMapper,
		tokenSource:      builder.tokenSource,
		signer:           builder.signer,
		transport:        builder.transport,
		activityRecorder: builder.activityRecorder,
		clock:            builder.clock,
		idGenerator:      builder.idGenerator,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

// Do is the single entry point used by endpoint modules.
func (s *Service) Do(ctx context.Context, req Request) (Response, error) {
	return s.Execute(ctx, req.Method, req.Path, req.Body)
}

// Execute runs ensure_token, build_headers, sign and dispatch in order. A
// non-2xx reply is returned together with a transport error.
func (s *Service) Execute(ctx context.Context, method string, path string, body any) (Response, error) {
	if s == nil {
		return Response{}, NewInternalError("core: service is nil", nil, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	normalizedMethod, normalizedPath, err := normalizeRequest(method, path)
	if err != nil {
		return Response{}, err
	}

	exec := &execution{
		id:        s.idGenerator(),
		method:    normalizedMethod,
		path:      normalizedPath,
		body:      body,
		startedAt: s.clock(),
		state:     StateIdle,
	}
	logger := s.logger.WithContext(ctx)

	var runErr error
	for _, st := range pipelineStages {
		exec.state = st.state
		logger.Debug("bca pipeline stage", "request_id", exec.id, "stage", st.name, "state", string(exec.state))
		if err := st.run(s, ctx, exec); err != nil {
			runErr = err
			exec.failedStage = st.name
			break
		}
	}

	if runErr != nil {
		exec.state = StateFailed
	} else {
		exec.state = StateCompleted
	}
	s.finish(ctx, exec, runErr)

	if runErr != nil {
		if exec.response.StatusCode != 0 {
			return exec.response, runErr
		}
		return Response{}, runErr
	}
	return exec.response, nil
}

func (s *Service) finish(ctx context.Context, exec *execution, runErr error) {
	elapsed := s.clock().Sub(exec.startedAt)
	s.recordMetrics(ctx, exec, elapsed)

	logger := s.logger.WithContext(ctx)
	if runErr == nil {
		logger.Info("bca request completed",
			"request_id", exec.id,
			"method", exec.method,
			"path", exec.path,
			"status_code", exec.response.StatusCode,
			"duration_ms", elapsed.Milliseconds(),
		)
	} else if exec.failedStage == StageDispatch {
		logger.Warn("bca request failed",
			"request_id", exec.id,
			"method", exec.method,
			"path", exec.path,
			"stage", exec.failedStage,
			"status_code", exec.response.StatusCode,
			"error", runErr.Error(),
		)
	} else {
		logger.Error("bca request failed",
			"request_id", exec.id,
			"method", exec.method,
			"path", exec.path,
			"stage", exec.failedStage,
			"error", runErr.Error(),
		)
	}

	if s.activityRecorder == nil {
		return
	}
	entry := ActivityEntry{
		ID:          exec.id,
		Method:      exec.method,
		Path:        exec.path,
		State:       exec.state,
		FailedStage: exec.failedStage,
		StatusCode:  exec.response.StatusCode,
		ErrorCode:   TextCode(runErr),
		DurationMS:  elapsed.Milliseconds(),
		CreatedAt:   exec.startedAt.UTC(),
	}
	if err := s.activityRecorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("bca activity record failed", "request_id", exec.id, "error", err.Error())
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return MapError(err)
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}
