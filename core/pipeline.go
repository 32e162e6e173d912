package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	StageEnsureToken  = "ensure_token"
	StageBuildHeaders = "build_headers"
	StageSign         = "sign"
	StageDispatch     = "dispatch"
)

type stage struct {
	name  string
	state ExecutionState
	run   func(s *Service, ctx context.Context, exec *execution) error
}

var pipelineStages = []stage{
	{name: StageEnsureToken, state: StateTokenEnsuring, run: (*Service).ensureToken},
	{name: StageBuildHeaders, state: StateSigning, run: (*Service).buildHeaders},
	{name: StageSign, state: StateSigning, run: (*Service).sign},
	{name: StageDispatch, state: StateDispatching, run: (*Service).dispatch},
}

// execution is owned by a single Execute call and never shared.
type execution struct {
	id          string
	method      string
	path        string
	body        any
	startedAt   time.Time
	state       ExecutionState
	failedStage string

	token     AccessToken
	timestamp string
	outgoing  OutgoingRequest
	signing   SigningContext
	response  Response
}

func (e *execution) metadata() map[string]any {
	return map[string]any{
		"request_id": e.id,
		"method":     e.method,
		"path":       e.path,
	}
}

func (s *Service) ensureToken(ctx context.Context, exec *execution) error {
	token, err := s.tokenSource.EnsureToken(ctx)
	if err != nil {
		if IsAuthError(err) {
			return err
		}
		return NewAuthError("core: access token acquisition failed", err, 0, exec.metadata())
	}
	if token.IsZero() {
		return NewAuthError("core: token source returned an empty access token", nil, 0, exec.metadata())
	}
	exec.token = token
	return nil
}

func (s *Service) buildHeaders(_ context.Context, exec *execution) error {
	payload, err := MarshalBody(exec.body)
	if err != nil {
		return NewSigningError("core: request body serialization failed", err, exec.metadata())
	}
	exec.timestamp = FormatTimestamp(s.clock())
	exec.outgoing = OutgoingRequest{
		Method: exec.method,
		URL:    s.config.ResolvedBaseURL() + exec.path,
		Path:   exec.path,
		Body:   payload,
		Headers: map[string]string{
			HeaderAuthorization: "Bearer " + exec.token.Value,
			HeaderContentType:   ContentTypeJSON,
			HeaderAPIKey:        s.credentials.APIKey,
			HeaderTimestamp:     exec.timestamp,
		},
	}
	return nil
}

func (s *Service) sign(_ context.Context, exec *execution) error {
	exec.signing = SigningContext{
		Method:      exec.method,
		URLPath:     exec.path,
		AccessToken: exec.token.Value,
		Timestamp:   exec.timestamp,
	}
	signature, err := s.signer.Sign(
		exec.signing.Method,
		exec.signing.URLPath,
		exec.signing.AccessToken,
		exec.outgoing.Body,
		exec.signing.Timestamp,
	)
	if err != nil {
		if IsSigningError(err) {
			return err
		}
		return NewSigningError("core: request signing failed", err, exec.metadata())
	}
	exec.outgoing.Headers[HeaderSignature] = signature
	return nil
}

func (s *Service) dispatch(ctx context.Context, exec *execution) error {
	res, err := s.transport.Do(ctx, TransportRequest{
		Method:   exec.outgoing.Method,
		URL:      exec.outgoing.URL,
		Headers:  exec.outgoing.Headers,
		Body:     exec.outgoing.Body,
		Timeout:  s.config.RequestTimeout(),
		Metadata: exec.metadata(),
	})
	if err != nil {
		if IsTransportError(err) {
			return err
		}
		return NewTransportError("core: request dispatch failed", err, 0, exec.metadata())
	}

	exec.response = Response{
		StatusCode: res.StatusCode,
		Headers:    res.Headers,
		Body:       res.Body,
		Metadata:   res.Metadata,
	}
	if exec.response.Successful() {
		return nil
	}
	meta := exec.metadata()
	meta["status_code"] = res.StatusCode
	if code, ok := res.Metadata[MetaBCAErrorCode]; ok {
		meta[MetaBCAErrorCode] = code
	}
	return NewTransportError(
		fmt.Sprintf("core: BCA responded with status %d", res.StatusCode),
		nil,
		res.StatusCode,
		meta,
	)
}

// Stages returns the pipeline stage names in execution order.
func Stages() []string {
	names := make([]string, 0, len(pipelineStages))
	for _, st := range pipelineStages {
		names = append(names, st.name)
	}
	return names
}

func normalizeRequest(method, path string) (string, string, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return "", "", NewBadInputError("core: request method is required", nil)
	}
	if !strings.HasPrefix(path, "/") {
		return "", "", NewBadInputError("core: request path must start with /", map[string]any{"path": path})
	}
	return method, path, nil
}
