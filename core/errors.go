package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorAuthFailed      = "BCA_AUTH_FAILED"
	ErrorSigningFailed   = "BCA_SIGNING_FAILED"
	ErrorTransportFailed = "BCA_TRANSPORT_FAILED"
	ErrorBadInput        = "BCA_BAD_INPUT"
	ErrorInternal        = "BCA_INTERNAL_ERROR"
)

// NewAuthError reports a token endpoint failure: unreachable, non-2xx, or a
// malformed token payload.
func NewAuthError(message string, source error, code int, metadata map[string]any) *goerrors.Error {
	if code == 0 {
		code = http.StatusUnauthorized
	}
	return newEnvelope(source, goerrors.CategoryAuth, ErrorAuthFailed, message, code, metadata)
}

func NewSigningError(message string, source error, metadata map[string]any) *goerrors.Error {
	return newEnvelope(source, goerrors.CategoryOperation, ErrorSigningFailed, message, http.StatusInternalServerError, metadata)
}

func NewTransportError(message string, source error, code int, metadata map[string]any) *goerrors.Error {
	if code == 0 {
		code = http.StatusBadGateway
	}
	return newEnvelope(source, goerrors.CategoryExternal, ErrorTransportFailed, message, code, metadata)
}

func NewBadInputError(message string, metadata map[string]any) *goerrors.Error {
	return newEnvelope(nil, goerrors.CategoryBadInput, ErrorBadInput, message, http.StatusBadRequest, metadata)
}

func NewInternalError(message string, source error, metadata map[string]any) *goerrors.Error {
	return newEnvelope(source, goerrors.CategoryInternal, ErrorInternal, message, http.StatusInternalServerError, metadata)
}

// newEnvelope keeps the requested category even when source is already a
// go-errors envelope; goerrors.Wrap would clone the source category instead.
func newEnvelope(
	source error,
	category goerrors.Category,
	textCode string,
	message string,
	code int,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	err.Source = source
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func IsAuthError(err error) bool {
	return hasTextCode(err, ErrorAuthFailed)
}

func IsSigningError(err error) bool {
	return hasTextCode(err, ErrorSigningFailed)
}

func IsTransportError(err error) bool {
	return hasTextCode(err, ErrorTransportFailed)
}

func IsBadInputError(err error) bool {
	return hasTextCode(err, ErrorBadInput)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

// TextCode returns the text code of the outermost go-errors envelope.
func TextCode(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ErrorInternal
}

// MapError normalizes any error into a go-errors envelope with a BCA text code.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).WithTextCode(ErrorBadInput))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuth:
		return ErrorAuthFailed
	case goerrors.CategoryExternal:
		return ErrorTransportFailed
	case goerrors.CategoryOperation:
		return ErrorSigningFailed
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
