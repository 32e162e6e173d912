package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type TokenSource interface {
	EnsureToken(ctx context.Context) (AccessToken, error)
}

type BodyHasher interface {
	Hash(body any) (string, error)
}

type RequestSigner interface {
	Sign(method string, urlPath string, accessToken string, body any, timestamp string) (string, error)
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry) error
}

type ActivityReader interface {
	List(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Executor is the single call exposed to endpoint specific modules.
type Executor interface {
	Do(ctx context.Context, req Request) (Response, error)
}

type Clock func() time.Time

type IDGenerator func() string
