package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StaticRawConfigLoader serves a fixed raw map, mostly useful for tests and
// for callers that already parsed their own configuration source.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// ResolveConfig layers defaults, the provider's loaded config and runtime
// overrides. Nil provider or resolver fall back to the cfgx/go-options pair.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, MapError(err)
	}
	resolved, err := resolver.Resolve(defaults, loaded, runtime)
	if err != nil {
		return Config{}, MapError(err)
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.BaseAPIURI) != "" {
		layer["base_api_uri"] = cfg.BaseAPIURI
	}
	if includeZero || strings.TrimSpace(cfg.APIVersion) != "" {
		layer["api_version"] = cfg.APIVersion
	}
	if includeZero || cfg.RequestTimeout > 0 {
		layer["request_timeout"] = cfg.RequestTimeout
	}
	if includeZero || cfg.DisableUnauthorizedRetry {
		layer["disable_unauthorized_retry"] = cfg.DisableUnauthorizedRetry
	}

	oauth := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.OAuth.TokenURI) != "" {
		oauth["token_uri"] = cfg.OAuth.TokenURI
	}
	if includeZero || strings.TrimSpace(cfg.OAuth.ClientID) != "" {
		oauth["client_id"] = cfg.OAuth.ClientID
	}
	if includeZero || strings.TrimSpace(cfg.OAuth.ClientSecret) != "" {
		oauth["client_secret"] = cfg.OAuth.ClientSecret
	}
	if includeZero || cfg.OAuth.TokenRequestTimeout > 0 {
		oauth["token_request_timeout"] = cfg.OAuth.TokenRequestTimeout
	}
	if includeZero || cfg.OAuth.RefreshConcurrency != "" {
		oauth["refresh_concurrency"] = string(cfg.OAuth.RefreshConcurrency)
	}
	if len(oauth) > 0 {
		layer["oauth"] = oauth
	}
	return layer
}
