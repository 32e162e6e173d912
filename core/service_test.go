package core

import (
	"context"
	"net/http"
	"reflect"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

var testInstant = time.Date(2026, 10, 18, 8, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, tokens *stubTokenSource, signer *stubSigner, transport *stubTransport, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithLogger(stubLogger{}),
		WithTokenSource(tokens),
		WithSigner(signer),
		WithTransport(transport),
		WithClock(fixedClock(testInstant)),
		WithIDGenerator(func() string { return "req-1" }),
	}
	svc, err := NewService(testConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestStages_FixedOrder(t *testing.T) {
	want := []string{StageEnsureToken, StageBuildHeaders, StageSign, StageDispatch}
	if got := Stages(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected stages %v, got %v", want, got)
	}
}

func TestPipelineStages_RunStepByStep(t *testing.T) {
	tokens := &stubTokenSource{token: AccessToken{Value: "abc123"}}
	signer := &stubSigner{}
	transport := &stubTransport{response: TransportResponse{StatusCode: http.StatusOK}}
	svc := newTestService(t, tokens, signer, transport)
	exec := &execution{id: "req-1", method: http.MethodGet, path: "/general/rate/forex"}

	for _, st := range pipelineStages {
		if err := st.run(svc, context.Background(), exec); err != nil {
			t.Fatalf("stage %s: %v", st.name, err)
		}
		switch st.name {
		case StageEnsureToken:
			if exec.token.Value != "abc123" {
				t.Fatalf("expected token after %s, got %q", st.name, exec.token.Value)
			}
		case StageBuildHeaders:
			if _, signed := exec.outgoing.Headers[HeaderSignature]; signed {
				t.Fatalf("signature set before the sign stage")
			}
		case StageSign:
			if exec.outgoing.Headers[HeaderSignature] == "" {
				t.Fatalf("expected signature after %s", st.name)
			}
			if len(transport.requests) != 0 {
				t.Fatalf("dispatched before the dispatch stage")
			}
		case StageDispatch:
			if len(transport.requests) != 1 || exec.response.StatusCode != http.StatusOK {
				t.Fatalf("expected one dispatched request, got %d", len(transport.requests))
			}
		}
	}
}

func TestService_ExecuteSignsAndDispatches(t *testing.T) {
	tokens := &stubTokenSource{token: AccessToken{Value: "abc123"}}
	signer := &stubSigner{}
	transport := &stubTransport{response: TransportResponse{StatusCode: http.StatusOK, Body: []byte(`{"ok":true}`)}}
	svc := newTestService(t, tokens, signer, transport)

	res, err := svc.Execute(context.Background(), "post", "/banking/corporates/transfers", map[string]any{"amount": 100})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.StatusCode != http.StatusOK || string(res.Body) != `{"ok":true}` {
		t.Fatalf("unexpected response %#v", res)
	}
	if len(signer.calls) != 1 {
		t.Fatalf("expected one sign call, got %d", len(signer.calls))
	}
	call := signer.calls[0]
	if call.method != "POST" || call.path != "/banking/corporates/transfers" || call.token != "abc123" {
		t.Fatalf("unexpected signing inputs %#v", call)
	}
	if call.timestamp != "2026-10-18T08:30:00.000Z" {
		t.Fatalf("unexpected timestamp %q", call.timestamp)
	}
	if got, ok := call.body.([]byte); !ok || string(got) != `{"amount":100}` {
		t.Fatalf("expected serialized body to be signed, got %#v", call.body)
	}

	if len(transport.requests) != 1 {
		t.Fatalf("expected one dispatch, got %d", len(transport.requests))
	}
	req := transport.requests[0]
	if req.URL != SandboxBaseURL+"/banking/corporates/transfers" {
		t.Fatalf("unexpected url %q", req.URL)
	}
	if string(req.Body) != `{"amount":100}` {
		t.Fatalf("expected sent body to equal signed body, got %q", req.Body)
	}
	if req.Timeout != DefaultRequestTimeout {
		t.Fatalf("expected default timeout, got %s", req.Timeout)
	}
	wantHeaders := map[string]string{
		HeaderAuthorization: "Bearer abc123",
		HeaderContentType:   ContentTypeJSON,
		HeaderAPIKey:        "api-key",
		HeaderTimestamp:     "2026-10-18T08:30:00.000Z",
		HeaderSignature:     "sig:POST:/banking/corporates/transfers:2026-10-18T08:30:00.000Z",
	}
	if !reflect.DeepEqual(req.Headers, wantHeaders) {
		t.Fatalf("unexpected headers %#v", req.Headers)
	}
}

func TestService_DoUsesRequestFields(t *testing.T) {
	tokens := &stubTokenSource{token: AccessToken{Value: "abc123"}}
	signer := &stubSigner{}
	transport := &stubTransport{response: TransportResponse{StatusCode: http.StatusOK}}
	svc := newTestService(t, tokens, signer, transport)

	if _, err := svc.Do(context.Background(), Request{Method: http.MethodGet, Path: "/general/rate/forex"}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if body, _ := signer.calls[0].body.([]byte); len(body) != 0 {
		t.Fatalf("expected empty body for GET, got %#v", signer.calls[0].body)
	}
}

func TestService_TokenFailureAbortsBeforeSigning(t *testing.T) {
	tokens := &stubTokenSource{err: errStub}
	signer := &stubSigner{}
	transport := &stubTransport{}
	activity := &recordingActivity{}
	svc := newTestService(t, tokens, signer, transport, WithActivityRecorder(activity))

	_, err := svc.Execute(context.Background(), http.MethodGet, "/general/rate/forex", nil)
	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if !goerrors.Is(err, errStub) {
		t.Fatalf("expected source error to stay reachable")
	}
	if len(signer.calls) != 0 || len(transport.requests) != 0 {
		t.Fatalf("expected no signing or dispatch after token failure")
	}
	if len(activity.entries) != 1 {
		t.Fatalf("expected one activity entry, got %d", len(activity.entries))
	}
	entry := activity.entries[0]
	if entry.State != StateFailed || entry.FailedStage != StageEnsureToken || entry.ErrorCode != ErrorAuthFailed {
		t.Fatalf("unexpected activity entry %#v", entry)
	}
}

func TestService_EmptyTokenIsAuthError(t *testing.T) {
	svc := newTestService(t, &stubTokenSource{}, &stubSigner{}, &stubTransport{})
	if _, err := svc.Execute(context.Background(), http.MethodGet, "/x", nil); !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestService_NonSuccessStatusReturnsResponseAndError(t *testing.T) {
	tokens := &stubTokenSource{token: AccessToken{Value: "abc123"}}
	transport := &stubTransport{response: TransportResponse{
		StatusCode: http.StatusBadRequest,
		Body:       []byte(`{"ErrorCode":"ESB-14-001"}`),
		Metadata:   map[string]any{MetaBCAErrorCode: "ESB-14-001"},
	}}
	metrics := &recordingMetrics{}
	svc := newTestService(t, tokens, &stubSigner{}, transport, WithMetricsRecorder(metrics))

	res, err := svc.Execute(context.Background(), http.MethodGet, "/general/rate/forex", nil)
	if !IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected raw response to be returned, got %d", res.StatusCode)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Code != http.StatusBadRequest {
		t.Fatalf("expected upstream status as error code, got %#v", rich)
	}
	if rich.Metadata["status_code"] != http.StatusBadRequest || rich.Metadata[MetaBCAErrorCode] != "ESB-14-001" {
		t.Fatalf("expected status and BCA error code metadata, got %#v", rich.Metadata)
	}
	if metrics.counters[MetricRequestTotal] != 1 {
		t.Fatalf("expected one request counter increment")
	}
	tags := metrics.tags[0]
	if tags["state"] != string(StateFailed) || tags["stage"] != StageDispatch {
		t.Fatalf("expected failed dispatch tags, got %#v", tags)
	}
	if tags["status_class"] != "4xx" || tags[MetaBCAErrorCode] != "ESB-14-001" {
		t.Fatalf("expected status class and BCA error code tags, got %#v", tags)
	}
}

func TestService_TransportFailureIsPropagated(t *testing.T) {
	tokens := &stubTokenSource{token: AccessToken{Value: "abc123"}}
	transport := &stubTransport{err: errStub}
	svc := newTestService(t, tokens, &stubSigner{}, transport)

	res, err := svc.Execute(context.Background(), http.MethodGet, "/general/rate/forex", nil)
	if !IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if res.StatusCode != 0 {
		t.Fatalf("expected empty response, got %#v", res)
	}
}

func TestService_SignerFailureIsSigningError(t *testing.T) {
	tokens := &stubTokenSource{token: AccessToken{Value: "abc123"}}
	transport := &stubTransport{}
	svc := newTestService(t, tokens, &stubSigner{err: errStub}, transport)

	_, err := svc.Execute(context.Background(), http.MethodPost, "/x", map[string]any{"a": 1})
	if !IsSigningError(err) {
		t.Fatalf("expected signing error, got %v", err)
	}
	if len(transport.requests) != 0 {
		t.Fatalf("expected no dispatch after signing failure")
	}
}

func TestService_UnserializableBodyIsSigningError(t *testing.T) {
	tokens := &stubTokenSource{token: AccessToken{Value: "abc123"}}
	svc := newTestService(t, tokens, &stubSigner{}, &stubTransport{})

	_, err := svc.Execute(context.Background(), http.MethodPost, "/x", map[string]any{"ch": make(chan int)})
	if !IsSigningError(err) {
		t.Fatalf("expected signing error, got %v", err)
	}
}

func TestService_RejectsPathWithoutLeadingSlash(t *testing.T) {
	tokens := &stubTokenSource{token: AccessToken{Value: "abc123"}}
	svc := newTestService(t, tokens, &stubSigner{}, &stubTransport{})

	_, err := svc.Execute(context.Background(), http.MethodGet, "general/rate/forex", nil)
	if !IsBadInputError(err) {
		t.Fatalf("expected bad input error, got %v", err)
	}
	if tokens.calls != 0 {
		t.Fatalf("expected no token request for invalid path")
	}
}

func TestService_ActivityRecorderFailureIsNotReturned(t *testing.T) {
	tokens := &stubTokenSource{token: AccessToken{Value: "abc123"}}
	transport := &stubTransport{response: TransportResponse{StatusCode: http.StatusOK}}
	activity := &recordingActivity{err: errStub}
	svc := newTestService(t, tokens, &stubSigner{}, transport, WithActivityRecorder(activity))

	if _, err := svc.Execute(context.Background(), http.MethodGet, "/general/rate/forex", nil); err != nil {
		t.Fatalf("expected recorder failure to be swallowed, got %v", err)
	}
	entry := activity.entries[0]
	if entry.ID != "req-1" || entry.State != StateCompleted || entry.StatusCode != http.StatusOK || entry.ErrorCode != "" {
		t.Fatalf("unexpected activity entry %#v", entry)
	}
}

func TestNewService_RequiresPipelineDependencies(t *testing.T) {
	_, err := NewService(testConfig(), WithSigner(&stubSigner{}), WithTransport(&stubTransport{}))
	if !IsBadInputError(err) {
		t.Fatalf("expected bad input error for missing token source, got %v", err)
	}
}

func TestNewService_WithLoggerProvider(t *testing.T) {
	svc, err := NewService(testConfig(),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
		WithTokenSource(&stubTokenSource{}),
		WithSigner(&stubSigner{}),
		WithTransport(&stubTransport{}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, ok := svc.Logger().(stubLogger); !ok {
		t.Fatalf("expected provider logger, got %T", svc.Logger())
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"environment":  EnvironmentProduction,
		"token": map[string]any{
			"cache_enabled": true,
		},
	}})
	runtime := testConfig()
	runtime.ServiceName = "from-runtime"

	svc, err := NewService(runtime,
		WithConfigProvider(provider),
		WithTokenSource(&stubTokenSource{}),
		WithSigner(&stubSigner{}),
		WithTransport(&stubTransport{}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config, got %q", cfg.ServiceName)
	}
	if cfg.Environment != EnvironmentProduction || cfg.ResolvedBaseURL() != ProductionBaseURL {
		t.Fatalf("expected config layer environment, got %q", cfg.Environment)
	}
	if !cfg.Token.CacheEnabled {
		t.Fatalf("expected config layer token cache flag")
	}
	if cfg.Token.TTL != DefaultTokenTTL {
		t.Fatalf("expected default ttl, got %s", cfg.Token.TTL)
	}
}

func TestConfigToLayerMap_SkipsDefaultValues(t *testing.T) {
	defaults := DefaultConfig()
	runtime := testConfig()

	layer := configToLayerMap(runtime, &defaults)
	for _, key := range []string{"service_name", "environment", "timeout", "token"} {
		if _, ok := layer[key]; ok {
			t.Fatalf("expected default valued %q to be skipped, got %#v", key, layer)
		}
	}
	if layer["client_id"] != "client-id" {
		t.Fatalf("expected explicit client id in layer, got %#v", layer)
	}

	full := configToLayerMap(defaults, nil)
	if full["environment"] != EnvironmentSandbox || full["client_id"] != "" {
		t.Fatalf("expected the base layer to carry every field, got %#v", full)
	}
}

func TestResolveConfig_DefaultRuntimeKeepsLoadedEnvironment(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"environment": EnvironmentProduction,
		"timeout":     30 * time.Second,
	}})

	cfg, err := ResolveConfig(context.Background(), testConfig(), provider, nil)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.ResolvedBaseURL() != ProductionBaseURL {
		t.Fatalf("expected production base url, got %q", cfg.ResolvedBaseURL())
	}
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("expected loaded timeout, got %s", cfg.Timeout)
	}
	if cfg.ClientID != "client-id" {
		t.Fatalf("expected runtime credentials, got %q", cfg.ClientID)
	}
}

func TestNewService_InvalidConfig(t *testing.T) {
	_, err := NewService(Config{},
		WithTokenSource(&stubTokenSource{}),
		WithSigner(&stubSigner{}),
		WithTransport(&stubTransport{}),
	)
	if err == nil {
		t.Fatalf("expected missing credentials to fail validation")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
}
