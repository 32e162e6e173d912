package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/goliatone/go-bca/core"
)

// Hasher produces the body digest that goes into the canonical string.
type Hasher struct{}

func (Hasher) Hash(body any) (string, error) {
	return HashBody(body)
}

// HashBody serializes body, removes every whitespace rune and returns the
// lowercase hex SHA-256 of the result. A nil body hashes the empty string.
func HashBody(body any) (string, error) {
	payload, err := core.MarshalBody(body)
	if err != nil {
		return "", core.NewSigningError("auth: body serialization failed", err, nil)
	}
	sum := sha256.Sum256([]byte(stripWhitespace(string(payload))))
	return hex.EncodeToString(sum[:]), nil
}

func stripWhitespace(value string) string {
	return strings.Map(func(r rune) rune {
		if isSignatureWhitespace(r) {
			return -1
		}
		return r
	}, value)
}

// isSignatureWhitespace matches the ECMAScript \s class: WhiteSpace plus
// LineTerminator. U+0085 is not part of it.
func isSignatureWhitespace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ',
		'\u00a0', '\u1680', '\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}
