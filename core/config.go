package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseAPIURI          = "https://api.coinbase.com/v2/"
	DefaultTokenURI            = "https://api.coinbase.com/oauth/token"
	DefaultAPIVersion          = "2016-02-18"
	DefaultRequestTimeout      = 30 * time.Second
	DefaultTokenRequestTimeout = 30 * time.Second
)

type RefreshConcurrency string

const (
	// RefreshConcurrencyShare makes late callers wait for the in-flight
	// refresh and receive its result.
	RefreshConcurrencyShare RefreshConcurrency = "share"
	// RefreshConcurrencyReject fails late callers with ErrRefreshInProgress.
	RefreshConcurrencyReject RefreshConcurrency = "reject"
)

type OAuthConfig struct {
	TokenURI            string             `koanf:"token_uri" mapstructure:"token_uri"`
	ClientID            string             `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret        string             `koanf:"client_secret" mapstructure:"client_secret"`
	TokenRequestTimeout time.Duration      `koanf:"token_request_timeout" mapstructure:"token_request_timeout"`
	RefreshConcurrency  RefreshConcurrency `koanf:"refresh_concurrency" mapstructure:"refresh_concurrency"`
}

type Config struct {
	ServiceName    string        `koanf:"service_name" mapstructure:"service_name"`
	BaseAPIURI     string        `koanf:"base_api_uri" mapstructure:"base_api_uri"`
	APIVersion     string        `koanf:"api_version" mapstructure:"api_version"`
	RequestTimeout time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	// DisableUnauthorizedRetry turns off the refresh-and-retry-once behaviour
	// of the resource client on a 401 response.
	DisableUnauthorizedRetry bool        `koanf:"disable_unauthorized_retry" mapstructure:"disable_unauthorized_retry"`
	OAuth                    OAuthConfig `koanf:"oauth" mapstructure:"oauth"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "commerce",
		BaseAPIURI:     DefaultBaseAPIURI,
		APIVersion:     DefaultAPIVersion,
		RequestTimeout: DefaultRequestTimeout,
		OAuth: OAuthConfig{
			TokenURI:            DefaultTokenURI,
			TokenRequestTimeout: DefaultTokenRequestTimeout,
			RefreshConcurrency:  RefreshConcurrencyShare,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if err := validateAbsoluteURI("base_api_uri", c.BaseAPIURI); err != nil {
		return err
	}
	if err := validateAbsoluteURI("oauth.token_uri", c.OAuth.TokenURI); err != nil {
		return err
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("core: request_timeout must not be negative")
	}
	if c.OAuth.TokenRequestTimeout < 0 {
		return fmt.Errorf("core: oauth.token_request_timeout must not be negative")
	}
	switch c.OAuth.RefreshConcurrency {
	case "", RefreshConcurrencyShare, RefreshConcurrencyReject:
	default:
		return fmt.Errorf("core: oauth.refresh_concurrency %q is invalid", c.OAuth.RefreshConcurrency)
	}
	return nil
}

func validateAbsoluteURI(field string, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("core: %s is required", field)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("core: %s is invalid: %w", field, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: %s must be an absolute uri", field)
	}
	return nil
}
