package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-bca/core"
	goerrors "github.com/goliatone/go-errors"
)

const KindHTTP = "bca-http"

// DefaultResponseLimit caps how much of a BCA reply is buffered. Forex
// tables are the largest payloads and stay well below it.
const DefaultResponseLimit int64 = 4 << 20

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSender puts a signed request on the wire exactly as the pipeline built
// it. The URL and headers are covered by the signature, so neither is
// rewritten. One attempt per call; non-2xx replies are responses, not errors.
type HTTPSender struct {
	Client        HTTPDoer
	ResponseLimit int64
}

func NewHTTPSender(client HTTPDoer) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: core.DefaultRequestTimeout}
	}
	return &HTTPSender{Client: client, ResponseLimit: DefaultResponseLimit}
}

func NewHTTPSenderWithTimeout(timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = core.DefaultRequestTimeout
	}
	return NewHTTPSender(&http.Client{Timeout: timeout})
}

func (*HTTPSender) Kind() string {
	return KindHTTP
}

func (s *HTTPSender) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	meta := requestMetadata(req)
	if s == nil || s.Client == nil {
		return core.TransportResponse{}, transportError(
			"transport: sender requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			meta,
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := parseTarget(req.URL)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(err, goerrors.CategoryBadInput,
			"transport: invalid BCA url", http.StatusBadRequest, meta)
	}
	meta["host"] = target.Host

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(err, goerrors.CategoryBadInput,
			"transport: build http request", http.StatusBadRequest, meta)
	}
	for key, value := range req.Headers {
		if key == "" {
			continue
		}
		httpReq.Header.Set(key, value)
	}

	startedAt := time.Now()
	httpRes, err := s.Client.Do(httpReq)
	if err != nil {
		message := "transport: BCA unreachable"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			message = "transport: BCA request canceled"
		}
		return core.TransportResponse{}, transportWrapError(err, goerrors.CategoryExternal,
			message, http.StatusBadGateway, meta)
	}
	defer httpRes.Body.Close()

	meta["status_code"] = httpRes.StatusCode
	limit := s.ResponseLimit
	if limit <= 0 {
		limit = DefaultResponseLimit
	}
	payload, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(err, goerrors.CategoryExternal,
			"transport: read BCA reply", http.StatusBadGateway, meta)
	}
	if int64(len(payload)) > limit {
		meta["response_limit"] = limit
		return core.TransportResponse{}, transportError(
			fmt.Sprintf("transport: BCA reply exceeds %d bytes", limit),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			meta,
		)
	}

	meta["duration_ms"] = time.Since(startedAt).Milliseconds()
	if httpRes.StatusCode >= http.StatusBadRequest {
		if code := bcaErrorCode(payload); code != "" {
			meta[core.MetaBCAErrorCode] = code
		}
	}
	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    responseHeaders(httpRes.Header),
		Body:       payload,
		Metadata:   meta,
	}, nil
}

func parseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty url")
	}
	target, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("url %q is not absolute", raw)
	}
	return target, nil
}

// requestMetadata carries the execution identifiers the pipeline attached so
// errors and replies can be traced back to one Execute call.
func requestMetadata(req core.TransportRequest) map[string]any {
	meta := map[string]any{"sender": KindHTTP}
	for _, key := range []string{"request_id", "method", "path"} {
		if value, ok := req.Metadata[key]; ok {
			meta[key] = value
		}
	}
	return meta
}

// bcaErrorCode pulls ErrorCode out of a BCA error envelope such as
// {"ErrorCode":"ESB-14-009","ErrorMessage":{...}}.
func bcaErrorCode(payload []byte) string {
	var envelope struct {
		ErrorCode string `json:"ErrorCode"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return strings.TrimSpace(envelope.ErrorCode)
}

func responseHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key := range header {
		out[key] = strings.Join(header.Values(key), ", ")
	}
	return out
}

var _ core.TransportAdapter = (*HTTPSender)(nil)
