package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorTextBadInput          = "COMMERCE_BAD_INPUT"
	ErrorTextAuthentication    = "COMMERCE_AUTHENTICATION_REQUIRED"
	ErrorTextTokenRefresh      = "COMMERCE_TOKEN_REFRESH_FAILED"
	ErrorTextTokenRejected     = "COMMERCE_TOKEN_REJECTED"
	ErrorTextRefreshInProgress = "COMMERCE_REFRESH_IN_PROGRESS"
	ErrorTextCallbackSignature = "COMMERCE_CALLBACK_SIGNATURE_INVALID"
	ErrorTextUnauthorized      = "COMMERCE_UNAUTHORIZED"
	ErrorTextNotFound          = "COMMERCE_NOT_FOUND"
	ErrorTextRateLimited       = "COMMERCE_RATE_LIMITED"
	ErrorTextAPIFailure        = "COMMERCE_API_FAILURE"
	ErrorTextExternalFailure   = "COMMERCE_EXTERNAL_FAILURE"
	ErrorTextInternal          = "COMMERCE_INTERNAL_ERROR"
)

var (
	ErrAuthentication    = errors.New("core: authentication required")
	ErrTokenRefresh      = errors.New("core: token refresh failed")
	ErrRefreshInProgress = errors.New("core: token refresh already in progress")
)

// AuthenticationError reports that no refresh token is held, so no refresh
// can be attempted.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e == nil || strings.TrimSpace(e.Message) == "" {
		return ErrAuthentication.Error()
	}
	return ErrAuthentication.Error() + ": " + strings.TrimSpace(e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return ErrAuthentication
}

func (e *AuthenticationError) ToServiceError() *goerrors.Error {
	message := ErrAuthentication.Error()
	if e != nil {
		message = e.Error()
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorTextAuthentication)
}

type RefreshFailureReason string

const (
	RefreshFailureNetwork           RefreshFailureReason = "network"
	RefreshFailureRejected          RefreshFailureReason = "rejected"
	RefreshFailureMalformedResponse RefreshFailureReason = "malformed_response"
	RefreshFailureCancelled         RefreshFailureReason = "cancelled"
)

// TokenRefreshError wraps every failure of the refresh exchange. Reason lets
// callers tell a credential rejection apart from an unreachable endpoint.
type TokenRefreshError struct {
	Reason     RefreshFailureReason
	StatusCode int
	ErrorCode  string
	Message    string
	Cause      error
}

func (e *TokenRefreshError) Error() string {
	if e == nil {
		return ErrTokenRefresh.Error()
	}
	base := ErrTokenRefresh.Error()
	if e.Reason != "" {
		base += ": " + string(e.Reason)
	}
	if strings.TrimSpace(e.ErrorCode) != "" {
		base += ": " + strings.TrimSpace(e.ErrorCode)
	}
	if strings.TrimSpace(e.Message) != "" {
		base += ": " + strings.TrimSpace(e.Message)
	}
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (status=%d)", e.StatusCode)
	}
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}

func (e *TokenRefreshError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return ErrTokenRefresh
	}
	return errors.Join(ErrTokenRefresh, e.Cause)
}

func (e *TokenRefreshError) ToServiceError() *goerrors.Error {
	if e == nil {
		return goerrors.New(ErrTokenRefresh.Error(), goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorTextTokenRefresh)
	}
	var out *goerrors.Error
	switch e.Reason {
	case RefreshFailureRejected:
		out = goerrors.New(e.Error(), goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).
			WithTextCode(ErrorTextTokenRejected)
	case RefreshFailureCancelled:
		out = goerrors.New(e.Error(), goerrors.CategoryOperation).
			WithCode(499).
			WithTextCode(ErrorTextTokenRefresh)
	default:
		out = goerrors.New(e.Error(), goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorTextTokenRefresh)
	}
	metadata := map[string]any{"reason": string(e.Reason)}
	if e.StatusCode > 0 {
		metadata["status_code"] = e.StatusCode
	}
	if strings.TrimSpace(e.ErrorCode) != "" {
		metadata["error_code"] = strings.TrimSpace(e.ErrorCode)
	}
	out.WithMetadata(metadata)
	return out
}

// RefreshReason returns the discriminator of a refresh failure, or "" when
// err is not a TokenRefreshError.
func RefreshReason(err error) RefreshFailureReason {
	var refreshErr *TokenRefreshError
	if errors.As(err, &refreshErr) && refreshErr != nil {
		return refreshErr.Reason
	}
	return ""
}

func refreshFailure(ctx context.Context, fallback RefreshFailureReason, cause error) *TokenRefreshError {
	reason := fallback
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		reason = RefreshFailureCancelled
	} else if ctx != nil && ctx.Err() != nil {
		reason = RefreshFailureCancelled
	}
	return &TokenRefreshError{Reason: reason, Cause: cause}
}

type serviceErrorConverter interface {
	ToServiceError() *goerrors.Error
}

// MapError converts any library error into a go-errors envelope.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var converter serviceErrorConverter
	if errors.As(err, &converter) && converter != nil {
		return ensureErrorEnvelope(converter.ToServiceError())
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	if errors.Is(err, ErrRefreshInProgress) {
		return newError(err.Error(), goerrors.CategoryConflict, ErrorTextRefreshInProgress)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "must"):
		return newError(err.Error(), goerrors.CategoryBadInput, ErrorTextBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

// CategoryError builds an envelope for category, wrapping source when it is
// set. Code and text code follow the same defaults MapError applies.
func CategoryError(source error, category goerrors.Category, message string, metadata map[string]any) *goerrors.Error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return ensureErrorEnvelope(err)
}

func newError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = errorHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultErrorTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultErrorTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorTextBadInput
	case goerrors.CategoryNotFound:
		return ErrorTextNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorTextUnauthorized
	case goerrors.CategoryConflict:
		return ErrorTextRefreshInProgress
	case goerrors.CategoryRateLimit:
		return ErrorTextRateLimited
	case goerrors.CategoryExternal:
		return ErrorTextExternalFailure
	default:
		return ErrorTextInternal
	}
}

func errorHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
