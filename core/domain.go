package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderAPIKey        = "X-BCA-Key"
	HeaderTimestamp     = "X-BCA-Timestamp"
	HeaderSignature     = "X-BCA-Signature"

	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"

	TokenPath = "/api/oauth/token"

	// MetaBCAErrorCode holds the ErrorCode BCA puts in non-2xx replies.
	MetaBCAErrorCode = "bca_error_code"
)

const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"

	SandboxBaseURL    = "https://sandbox.bca.co.id"
	ProductionBaseURL = "https://api.klikbca.com:443"
)

// Credentials are the static secrets issued by the BCA developer portal.
type Credentials struct {
	ClientID     string
	ClientSecret string
	APIKey       string
	APIKeySecret string
}

func (c Credentials) String() string {
	return fmt.Sprintf(
		"Credentials{ClientID:%s ClientSecret:%s APIKey:%s APIKeySecret:%s}",
		redact(c.ClientID),
		redact(c.ClientSecret),
		redact(c.APIKey),
		redact(c.APIKeySecret),
	)
}

func (c Credentials) GoString() string {
	return c.String()
}

func redact(value string) string {
	if strings.TrimSpace(value) == "" {
		return `""`
	}
	return "[redacted]"
}

type AccessToken struct {
	Value      string
	TokenType  string
	Scope      string
	ObtainedAt time.Time
	ExpiresAt  *time.Time
}

func (t AccessToken) IsZero() bool {
	return strings.TrimSpace(t.Value) == ""
}

// ExpiresWithin reports whether the token expires before now+window. Tokens
// without an expiry never report true.
func (t AccessToken) ExpiresWithin(now time.Time, window time.Duration) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return !t.ExpiresAt.After(now.Add(window))
}

func (t AccessToken) String() string {
	return fmt.Sprintf("AccessToken{Value:%s ObtainedAt:%s}", redact(t.Value), t.ObtainedAt.Format(time.RFC3339))
}

// SigningContext holds the inputs of a single signature computation.
type SigningContext struct {
	Method      string
	URLPath     string
	AccessToken string
	BodyDigest  string
	Timestamp   string
}

type OutgoingRequest struct {
	Method  string
	URL     string
	Path    string
	Body    []byte
	Headers map[string]string
}

// Request is the consumer-facing input of the pipeline. Body may be nil, a
// string, a byte slice, a json.RawMessage, or any JSON serializable value.
type Request struct {
	Method string
	Path   string
	Body   any
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

func (r Response) Decode(target any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("core: response body is empty")
	}
	return json.Unmarshal(r.Body, target)
}

func (r Response) Successful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type TransportRequest struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
	Timeout  time.Duration
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type ExecutionState string

const (
	StateIdle          ExecutionState = "idle"
	StateTokenEnsuring ExecutionState = "token_ensuring"
	StateSigning       ExecutionState = "signing"
	StateDispatching   ExecutionState = "dispatching"
	StateCompleted     ExecutionState = "completed"
	StateFailed        ExecutionState = "failed"
)

func (s ExecutionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ActivityEntry is the audit record of one pipeline execution. It never
// carries credentials, tokens, signatures, or bodies.
type ActivityEntry struct {
	ID          string
	Method      string
	Path        string
	State       ExecutionState
	FailedStage string
	StatusCode  int
	ErrorCode   string
	DurationMS  int64
	CreatedAt   time.Time
}

type ActivityFilter struct {
	Method  string
	State   ExecutionState
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

type ActivityPage struct {
	Items   []ActivityEntry
	Page    int
	PerPage int
	Total   int
	HasNext bool
}
