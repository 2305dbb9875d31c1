package commerce

import (
	"github.com/goliatone/go-commerce/core"
	"github.com/goliatone/go-commerce/webhooks"
)

type Config = core.Config
type OAuthConfig = core.OAuthConfig

type Credentials = core.Credentials
type TokenResponse = core.TokenResponse
type TokenManager = core.TokenManager
type CredentialStore = core.CredentialStore
type RefreshConcurrency = core.RefreshConcurrency
type RefreshFailureReason = core.RefreshFailureReason

type AuthenticationError = core.AuthenticationError
type TokenRefreshError = core.TokenRefreshError

type CallbackVerifier = webhooks.CallbackVerifier

const (
	RefreshConcurrencyShare  = core.RefreshConcurrencyShare
	RefreshConcurrencyReject = core.RefreshConcurrencyReject

	RefreshFailureNetwork           = core.RefreshFailureNetwork
	RefreshFailureRejected          = core.RefreshFailureRejected
	RefreshFailureMalformedResponse = core.RefreshFailureMalformedResponse
	RefreshFailureCancelled         = core.RefreshFailureCancelled
)

var (
	ErrAuthentication    = core.ErrAuthentication
	ErrTokenRefresh      = core.ErrTokenRefresh
	ErrRefreshInProgress = core.ErrRefreshInProgress
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// MapError converts any error returned by this module into a go-errors
// envelope.
var MapError = core.MapError
