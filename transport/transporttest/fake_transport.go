// Package transporttest provides a scripted core.TransportAdapter for tests.
package transporttest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-bca/core"
)

const KindFake = "fake"

type Script struct {
	Response core.TransportResponse
	Err      error
}

// OK scripts a 200 reply carrying body.
func OK(body string) Script {
	return Status(200, body)
}

func Status(code int, body string) Script {
	return Script{Response: core.TransportResponse{
		StatusCode: code,
		Headers:    map[string]string{core.HeaderContentType: core.ContentTypeJSON},
		Body:       []byte(body),
	}}
}

func Failure(err error) Script {
	return Script{Err: err}
}

// FakeTransportAdapter replays scripts in order and repeats the last one once
// they run out. Every request is recorded.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	scripts  []Script
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(scripts ...Script) *FakeTransportAdapter {
	return &FakeTransportAdapter{scripts: append([]Script(nil), scripts...)}
}

func (*FakeTransportAdapter) Kind() string {
	return KindFake
}

func (a *FakeTransportAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("transporttest: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	index := len(a.requests) - 1
	if index < len(a.scripts) {
		script := a.scripts[index]
		return cloneTransportResponse(script.Response), script.Err
	}
	if len(a.scripts) > 0 {
		last := a.scripts[len(a.scripts)-1]
		return cloneTransportResponse(last.Response), last.Err
	}
	return core.TransportResponse{
		StatusCode: 200,
		Headers:    map[string]string{},
		Metadata:   map[string]any{"kind": KindFake},
	}, nil
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// RequestsTo returns the recorded requests whose url ends with path.
func (a *FakeTransportAdapter) RequestsTo(path string) []core.TransportRequest {
	out := []core.TransportRequest{}
	for _, req := range a.Requests() {
		if strings.HasSuffix(strings.SplitN(req.URL, "?", 2)[0], path) {
			out = append(out, req)
		}
	}
	return out
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:   in.Method,
		URL:      in.URL,
		Headers:  map[string]string{},
		Body:     append([]byte(nil), in.Body...),
		Metadata: map[string]any{},
		Timeout:  in.Timeout,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
