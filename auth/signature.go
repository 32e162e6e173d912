package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/goliatone/go-bca/core"
)

// Signer computes X-BCA-Signature values keyed by the API key secret.
type Signer struct {
	secret []byte
	hasher core.BodyHasher
}

func NewSigner(apiKeySecret string) *Signer {
	return &Signer{secret: []byte(apiKeySecret), hasher: Hasher{}}
}

// WithHasher swaps the body digest implementation.
func (s *Signer) WithHasher(hasher core.BodyHasher) *Signer {
	if s == nil || hasher == nil {
		return s
	}
	s.hasher = hasher
	return s
}

func (s *Signer) Sign(method string, urlPath string, accessToken string, body any, timestamp string) (string, error) {
	if s == nil {
		return "", core.NewSigningError("auth: signer is not configured", nil, nil)
	}
	digest, err := s.hasher.Hash(body)
	if err != nil {
		if core.IsSigningError(err) {
			return "", err
		}
		return "", core.NewSigningError("auth: body digest failed", err, nil)
	}
	return s.SignContext(core.SigningContext{
		Method:      method,
		URLPath:     urlPath,
		AccessToken: accessToken,
		BodyDigest:  digest,
		Timestamp:   timestamp,
	}), nil
}

// SignContext signs an already digested request.
func (s *Signer) SignContext(sc core.SigningContext) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(CanonicalString(sc)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time.
func (s *Signer) Verify(signature string, method string, urlPath string, accessToken string, body any, timestamp string) bool {
	expected, err := s.Sign(method, urlPath, accessToken, body, timestamp)
	if err != nil {
		return false
	}
	provided := strings.ToLower(strings.TrimSpace(signature))
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// CanonicalString renders METHOD:path:token:digest:timestamp. The access
// token is used as given, empty included.
func CanonicalString(sc core.SigningContext) string {
	return strings.Join([]string{
		strings.ToUpper(sc.Method),
		sc.URLPath,
		sc.AccessToken,
		sc.BodyDigest,
		sc.Timestamp,
	}, ":")
}
