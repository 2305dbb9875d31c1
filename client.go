package commerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-commerce/core"
	"github.com/goliatone/go-commerce/transport"
	"github.com/goliatone/go-commerce/webhooks"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const referenceDataCacheTTL = 5 * time.Minute

type Option func(*clientBuilder)

type clientBuilder struct {
	httpClient      core.HTTPDoer
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metrics         core.MetricsRecorder
	store           core.CredentialStore
	accessToken     string
	refreshToken    string
	verifier        *webhooks.CallbackVerifier
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	cache           repositorycache.CacheService
}

func WithHTTPClient(client core.HTTPDoer) Option {
	return func(b *clientBuilder) {
		b.httpClient = client
	}
}

func WithLogger(logger core.Logger) Option {
	return func(b *clientBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *clientBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *clientBuilder) {
		b.metrics = recorder
	}
}

// WithCredentialStore persists every refreshed pair and lets Restore load it.
func WithCredentialStore(store core.CredentialStore) Option {
	return func(b *clientBuilder) {
		b.store = store
	}
}

func WithTokens(accessToken string, refreshToken string) Option {
	return func(b *clientBuilder) {
		b.accessToken = accessToken
		b.refreshToken = refreshToken
	}
}

// WithCallbackVerifier sets the provider key used by VerifyCallback.
func WithCallbackVerifier(verifier *webhooks.CallbackVerifier) Option {
	return func(b *clientBuilder) {
		b.verifier = verifier
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *clientBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *clientBuilder) {
		b.optionsResolver = resolver
	}
}

// WithCacheService sets the cache backing currency and exchange rate lookups.
func WithCacheService(cache repositorycache.CacheService) Option {
	return func(b *clientBuilder) {
		b.cache = cache
	}
}

// Client is the resource client. Every authorized call carries the current
// access token of its TokenManager and, on a 401, refreshes once and retries
// once unless Config.DisableUnauthorizedRetry is set.
type Client struct {
	cfg       Config
	baseURL   *url.URL
	tokens    *core.TokenManager
	api       *transport.RESTAdapter
	public    *transport.RESTAdapter
	verifier  *webhooks.CallbackVerifier
	cache     repositorycache.CacheService
	observer  core.Observer
	cacheKeys string
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	builder := clientBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	resolved, err := core.ResolveConfig(context.Background(), cfg, builder.configProvider, builder.optionsResolver)
	if err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(ensureTrailingSlash(resolved.BaseAPIURI))
	if err != nil {
		return nil, core.MapError(fmt.Errorf("commerce: base_api_uri is invalid: %w", err))
	}

	httpClient := builder.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: resolved.RequestTimeout}
	}

	tokenCfg := core.TokenManagerConfigFrom(resolved)
	tokenCfg.HTTPClient = httpClient
	tokens, err := core.NewTokenManager(tokenCfg,
		core.WithInitialTokens(builder.accessToken, builder.refreshToken),
		core.WithCredentialStore(builder.store),
		core.WithTokenLogger(builder.logger),
		core.WithTokenLoggerProvider(builder.loggerProvider),
		core.WithTokenMetricsRecorder(builder.metrics),
	)
	if err != nil {
		return nil, core.MapError(err)
	}

	cache := builder.cache
	if cache == nil {
		cacheCfg := repositorycache.DefaultConfig()
		cacheCfg.TTL = referenceDataCacheTTL
		cache, err = repositorycache.NewCacheService(cacheCfg)
		if err != nil {
			return nil, core.MapError(fmt.Errorf("commerce: reference data cache: %w", err))
		}
	}

	return &Client{
		cfg:       resolved,
		baseURL:   baseURL,
		tokens:    tokens,
		api:       newAdapter(httpClient, core.BearerTokenSigner{Source: tokens}, resolved.APIVersion),
		public:    newAdapter(httpClient, nil, resolved.APIVersion),
		verifier:  builder.verifier,
		cache:     cache,
		observer:  core.NewObserver("commerce", builder.loggerProvider, builder.logger, builder.metrics),
		cacheKeys: baseURL.String(),
	}, nil
}

func newAdapter(client core.HTTPDoer, signer core.Signer, apiVersion string) *transport.RESTAdapter {
	adapter := transport.NewRESTAdapter(client, signer)
	adapter.DefaultHeaders["Accept"] = "application/json"
	adapter.DefaultHeaders[APIVersionHeader] = apiVersion
	return adapter
}

// APIVersionHeader pins the API version every request is served with.
const APIVersionHeader = "CB-VERSION"

func (c *Client) String() string {
	return "Commerce API Client for " + c.cfg.BaseAPIURI
}

func (c *Client) Config() Config {
	return c.cfg
}

// TokenManager exposes the owned credential lifecycle.
func (c *Client) TokenManager() *core.TokenManager {
	return c.tokens
}

func (c *Client) Credentials() Credentials {
	return c.tokens.Credentials()
}

// Refresh exchanges the held refresh token for a new pair and returns the
// full token endpoint payload.
func (c *Client) Refresh(ctx context.Context) (TokenResponse, error) {
	return c.tokens.Refresh(ctx)
}

// EnsureFresh refreshes ahead of time when the access token expires within
// leadWindow.
func (c *Client) EnsureFresh(ctx context.Context, leadWindow time.Duration) (core.EnsureFreshResult, error) {
	return c.tokens.EnsureFresh(ctx, leadWindow)
}

// Restore loads the last persisted pair from the configured CredentialStore.
func (c *Client) Restore(ctx context.Context) (Credentials, error) {
	return c.tokens.Restore(ctx)
}

// VerifyCallback reports whether signature is the provider's RSA-SHA256
// signature of body. Without WithCallbackVerifier every callback is rejected.
func (c *Client) VerifyCallback(body []byte, signature string) bool {
	verifier := c.verifier
	if verifier == nil {
		defaultVerifier, err := webhooks.DefaultCallbackVerifier()
		if err != nil {
			c.observer.Warn(context.Background(), "callback key unavailable", map[string]any{
				"error": err.Error(),
			})
			return false
		}
		verifier = defaultVerifier
	}
	return verifier.Verify(body, signature)
}

func ensureTrailingSlash(value string) string {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "/") {
		return value
	}
	return value + "/"
}
