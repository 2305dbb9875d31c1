package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

func TestResolveConfig_Defaults(t *testing.T) {
	cfg, err := ResolveConfig(context.Background(), Config{}, nil, nil)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.ServiceName != "commerce" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.BaseAPIURI != DefaultBaseAPIURI || cfg.OAuth.TokenURI != DefaultTokenURI {
		t.Fatalf("expected default endpoints, got %q / %q", cfg.BaseAPIURI, cfg.OAuth.TokenURI)
	}
	if cfg.OAuth.RefreshConcurrency != RefreshConcurrencyShare {
		t.Fatalf("expected share concurrency, got %q", cfg.OAuth.RefreshConcurrency)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Fatalf("expected default request timeout, got %v", cfg.RequestTimeout)
	}
}

func TestResolveConfig_LayersLoadedAndRuntime(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"base_api_uri": "https://sandbox.example.test/v2/",
		"oauth": map[string]any{
			"client_id":           "client-from-config",
			"refresh_concurrency": "reject",
		},
	}})

	cfg, err := ResolveConfig(context.Background(), Config{
		ServiceName: "runtime",
		OAuth: OAuthConfig{
			TokenRequestTimeout: 5 * time.Second,
		},
	}, provider, nil)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.ServiceName != "runtime" {
		t.Fatalf("expected runtime to win, got %q", cfg.ServiceName)
	}
	if cfg.BaseAPIURI != "https://sandbox.example.test/v2/" {
		t.Fatalf("expected loaded base uri, got %q", cfg.BaseAPIURI)
	}
	if cfg.OAuth.ClientID != "client-from-config" {
		t.Fatalf("expected loaded client id, got %q", cfg.OAuth.ClientID)
	}
	if cfg.OAuth.RefreshConcurrency != RefreshConcurrencyReject {
		t.Fatalf("expected loaded concurrency, got %q", cfg.OAuth.RefreshConcurrency)
	}
	if cfg.OAuth.TokenRequestTimeout != 5*time.Second {
		t.Fatalf("expected runtime timeout, got %v", cfg.OAuth.TokenRequestTimeout)
	}
	if cfg.OAuth.TokenURI != DefaultTokenURI {
		t.Fatalf("expected default token uri to survive, got %q", cfg.OAuth.TokenURI)
	}
}

func TestResolveConfig_LoaderErrorIsMapped(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{err: errors.New("config file unreadable")})
	_, err := ResolveConfig(context.Background(), Config{}, provider, nil)
	if err == nil {
		t.Fatalf("expected loader error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
}

func TestResolveConfig_RejectsInvalidRuntimeOverride(t *testing.T) {
	_, err := ResolveConfig(context.Background(), Config{BaseAPIURI: "not-a-uri"}, nil, nil)
	if err == nil {
		t.Fatalf("expected relative base uri to be rejected")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != ErrorTextBadInput {
		t.Fatalf("expected bad input error, got %v", err)
	}
}

func TestResolveConfig_CustomProvider(t *testing.T) {
	provider := &fixedConfigProvider{cfg: Config{
		ServiceName: "fixed",
		BaseAPIURI:  "https://fixed.example.test/",
		OAuth:       OAuthConfig{TokenURI: "https://fixed.example.test/token"},
	}}
	cfg, err := ResolveConfig(context.Background(), Config{}, provider, nil)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.ServiceName != "fixed" || cfg.OAuth.TokenURI != "https://fixed.example.test/token" {
		t.Fatalf("expected provider values, got %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
	cfg.OAuth.RefreshConcurrency = "queue"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown concurrency to fail")
	}
	cfg = DefaultConfig()
	cfg.RequestTimeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative timeout to fail")
	}
}

func TestTokenManagerConfigFrom(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = "merchant-a"
	cfg.OAuth.ClientID = "cid"
	tm := TokenManagerConfigFrom(cfg)
	if tm.TokenURI != DefaultTokenURI || tm.ClientID != "cid" || tm.StoreKey != "merchant-a" {
		t.Fatalf("unexpected token manager config %+v", tm)
	}
}
