package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type stubTokenSource struct {
	mu    sync.Mutex
	token AccessToken
	err   error
	calls int
}

func (s *stubTokenSource) EnsureToken(context.Context) (AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return AccessToken{}, s.err
	}
	return s.token, nil
}

type signCall struct {
	method    string
	path      string
	token     string
	body      any
	timestamp string
}

type stubSigner struct {
	mu    sync.Mutex
	calls []signCall
	err   error
}

func (s *stubSigner) Sign(method, path, token string, body any, timestamp string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, signCall{method: method, path: path, token: token, body: body, timestamp: timestamp})
	if s.err != nil {
		return "", s.err
	}
	return "sig:" + method + ":" + path + ":" + timestamp, nil
}

type stubTransport struct {
	mu       sync.Mutex
	requests []TransportRequest
	response TransportResponse
	err      error
}

func (s *stubTransport) Kind() string { return "stub" }

func (s *stubTransport) Do(_ context.Context, req TransportRequest) (TransportResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return TransportResponse{}, s.err
	}
	return s.response, nil
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []ActivityEntry
	err     error
}

func (r *recordingActivity) Record(_ context.Context, entry ActivityEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return r.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
	tags     []map[string]string
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name] += value
	m.tags = append(m.tags, tags)
}

func (m *recordingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var errStub = errors.New("stub failure")

func fixedClock(ts time.Time) Clock {
	return func() time.Time { return ts }
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ClientID = "client-id"
	cfg.ClientSecret = "client-secret"
	cfg.APIKey = "api-key"
	cfg.APIKeySecret = "api-key-secret"
	return cfg
}
