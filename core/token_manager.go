package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	maxTokenResponseBodyBytes = 1 << 20 // 1 MiB
	refreshFlightKey          = "refresh"
	defaultCredentialStoreKey = "default"
)

type TokenManagerConfig struct {
	TokenURI            string
	ClientID            string
	ClientSecret        string
	TokenRequestTimeout time.Duration
	Concurrency         RefreshConcurrency
	// StoreKey names the persisted pair when a CredentialStore is attached.
	StoreKey   string
	Now        func() time.Time
	HTTPClient HTTPDoer
}

// TokenManagerConfigFrom derives the token manager settings from the
// resolved client configuration.
func TokenManagerConfigFrom(cfg Config) TokenManagerConfig {
	return TokenManagerConfig{
		TokenURI:            cfg.OAuth.TokenURI,
		ClientID:            cfg.OAuth.ClientID,
		ClientSecret:        cfg.OAuth.ClientSecret,
		TokenRequestTimeout: cfg.OAuth.TokenRequestTimeout,
		Concurrency:         cfg.OAuth.RefreshConcurrency,
		StoreKey:            cfg.ServiceName,
	}
}

type TokenManagerOption func(*tokenManagerBuilder)

type tokenManagerBuilder struct {
	logger         Logger
	loggerProvider LoggerProvider
	metrics        MetricsRecorder
	store          CredentialStore
	initial        Credentials
}

func WithTokenLogger(logger Logger) TokenManagerOption {
	return func(b *tokenManagerBuilder) {
		b.logger = logger
	}
}

func WithTokenLoggerProvider(provider LoggerProvider) TokenManagerOption {
	return func(b *tokenManagerBuilder) {
		b.loggerProvider = provider
	}
}

func WithTokenMetricsRecorder(recorder MetricsRecorder) TokenManagerOption {
	return func(b *tokenManagerBuilder) {
		b.metrics = recorder
	}
}

func WithCredentialStore(store CredentialStore) TokenManagerOption {
	return func(b *tokenManagerBuilder) {
		b.store = store
	}
}

// WithInitialTokens seeds the pair held before the first refresh.
func WithInitialTokens(accessToken string, refreshToken string) TokenManagerOption {
	return func(b *tokenManagerBuilder) {
		b.initial.AccessToken = strings.TrimSpace(accessToken)
		b.initial.RefreshToken = strings.TrimSpace(refreshToken)
	}
}

// TokenManager owns one OAuth token pair. Refresh is its only mutator that
// talks to the network, and at most one refresh is in flight at a time.
type TokenManager struct {
	cfg        TokenManagerConfig
	httpClient HTTPDoer
	state      *credentialState
	store      CredentialStore
	observer   Observer

	// mu serializes every write to state. generation counts those writes.
	mu         sync.Mutex
	generation atomic.Uint64
	flight     singleflight.Group
	inflight   atomic.Bool
}

func NewTokenManager(cfg TokenManagerConfig, opts ...TokenManagerOption) (*TokenManager, error) {
	cfg.TokenURI = strings.TrimSpace(cfg.TokenURI)
	if cfg.TokenURI == "" {
		cfg.TokenURI = DefaultTokenURI
	}
	if err := validateAbsoluteURI("token uri", cfg.TokenURI); err != nil {
		return nil, err
	}
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = DefaultTokenRequestTimeout
	}
	switch cfg.Concurrency {
	case "":
		cfg.Concurrency = RefreshConcurrencyShare
	case RefreshConcurrencyShare, RefreshConcurrencyReject:
	default:
		return nil, fmt.Errorf("core: refresh concurrency %q is invalid", cfg.Concurrency)
	}
	cfg.StoreKey = strings.TrimSpace(cfg.StoreKey)
	if cfg.StoreKey == "" {
		cfg.StoreKey = defaultCredentialStoreKey
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	builder := tokenManagerBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}

	initial := builder.initial
	initial.TokenURI = cfg.TokenURI

	return &TokenManager{
		cfg:        cfg,
		httpClient: httpClient,
		state:      newCredentialState(initial),
		store:      builder.store,
		observer:   NewObserver("commerce", builder.loggerProvider, builder.logger, builder.metrics),
	}, nil
}

// Credentials returns a consistent snapshot of the held pair.
func (m *TokenManager) Credentials() Credentials {
	if m == nil || m.state == nil {
		return Credentials{}
	}
	return m.state.load()
}

func (m *TokenManager) AccessToken() string {
	return m.Credentials().AccessToken
}

// SetCredentials replaces the held pair. It waits for an in-flight refresh
// so the two writers never interleave.
func (m *TokenManager) SetCredentials(creds Credentials) {
	if m == nil || m.state == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCredentialsLocked(creds)
}

func (m *TokenManager) setCredentialsLocked(creds Credentials) {
	creds.AccessToken = strings.TrimSpace(creds.AccessToken)
	creds.RefreshToken = strings.TrimSpace(creds.RefreshToken)
	creds.TokenURI = m.cfg.TokenURI
	if creds.UpdatedAt.IsZero() {
		creds.UpdatedAt = m.cfg.Now().UTC()
	}
	m.storeLocked(creds)
}

// storeLocked publishes next. Callers hold mu.
func (m *TokenManager) storeLocked(next Credentials) {
	m.state.store(next)
	m.generation.Add(1)
}

// Restore loads the last persisted pair from the attached CredentialStore.
// A pair written by Refresh or SetCredentials while the load was running is
// newer than the stored one and is kept; Restore then returns it unchanged.
func (m *TokenManager) Restore(ctx context.Context) (Credentials, error) {
	if m == nil {
		return Credentials{}, fmt.Errorf("core: token manager is nil")
	}
	if m.store == nil {
		return Credentials{}, fmt.Errorf("core: credential store is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	observed := m.generation.Load()
	loaded, err := m.store.Load(ctx, m.cfg.StoreKey)
	if err != nil {
		m.observer.Observe(ctx, startedAt, "credentials_restore", err, map[string]any{
			"store_key": m.cfg.StoreKey,
		})
		return Credentials{}, err
	}

	m.mu.Lock()
	applied := m.generation.Load() == observed
	if applied {
		m.setCredentialsLocked(loaded)
	}
	current := m.state.load()
	m.mu.Unlock()

	m.observer.Observe(ctx, startedAt, "credentials_restore", nil, map[string]any{
		"store_key": m.cfg.StoreKey,
		"applied":   applied,
	})
	return current, nil
}

// Refresh exchanges the held refresh token for a new pair with a single POST
// to the token endpoint. Both tokens are replaced together on success and the
// full decoded payload is returned.
func (m *TokenManager) Refresh(ctx context.Context) (TokenResponse, error) {
	if m == nil {
		return TokenResponse{}, fmt.Errorf("core: token manager is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !m.Credentials().HasRefreshToken() {
		err := &AuthenticationError{Message: "refresh token is not set"}
		m.observer.Observe(ctx, time.Now(), "token_refresh", err, nil)
		return TokenResponse{}, err
	}
	if err := ctx.Err(); err != nil {
		return TokenResponse{}, refreshFailure(ctx, RefreshFailureCancelled, err)
	}

	if m.cfg.Concurrency == RefreshConcurrencyReject {
		if !m.inflight.CompareAndSwap(false, true) {
			m.observer.Count(ctx, "token_refresh.rejected_concurrent", nil)
			return TokenResponse{}, ErrRefreshInProgress
		}
	}

	// The exchange runs detached from the caller's cancellation: once the
	// request is sent the endpoint may already have rotated the refresh token,
	// so the response must still be applied. The token request timeout bounds it.
	flightCtx := context.WithoutCancel(ctx)
	results := m.flight.DoChan(refreshFlightKey, func() (any, error) {
		if m.cfg.Concurrency == RefreshConcurrencyReject {
			defer m.inflight.Store(false)
		}
		return m.refresh(flightCtx)
	})

	select {
	case <-ctx.Done():
		return TokenResponse{}, refreshFailure(ctx, RefreshFailureCancelled, ctx.Err())
	case result := <-results:
		if result.Err != nil {
			return TokenResponse{}, result.Err
		}
		response, ok := result.Val.(TokenResponse)
		if !ok {
			return TokenResponse{}, &TokenRefreshError{
				Reason:  RefreshFailureMalformedResponse,
				Message: "unexpected refresh result",
			}
		}
		return response.clone(), nil
	}
}

func (m *TokenManager) refresh(ctx context.Context) (TokenResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	startedAt := time.Now()
	current := m.state.load()
	refreshToken := strings.TrimSpace(current.RefreshToken)
	if refreshToken == "" {
		err := &AuthenticationError{Message: "refresh token is not set"}
		m.observer.Observe(ctx, startedAt, "token_refresh", err, nil)
		return TokenResponse{}, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	payload, statusCode, err := m.exchange(ctx, form)
	fields := map[string]any{"token_uri": m.cfg.TokenURI}
	if statusCode > 0 {
		fields["status_code"] = statusCode
	}
	if err != nil {
		m.observer.Observe(ctx, startedAt, "token_refresh", err, fields)
		return TokenResponse{}, err
	}

	now := m.cfg.Now().UTC()
	next := Credentials{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		TokenURI:     m.cfg.TokenURI,
		UpdatedAt:    now,
	}
	if payload.ExpiresIn > 0 {
		expiresAt := now.Add(time.Duration(payload.ExpiresIn) * time.Second)
		next.ExpiresAt = &expiresAt
	}
	m.storeLocked(next)
	m.observer.Observe(ctx, startedAt, "token_refresh", nil, fields)

	m.persist(ctx, next)
	return payload.TokenResponse.clone(), nil
}

func (m *TokenManager) persist(ctx context.Context, creds Credentials) {
	if m.store == nil {
		return
	}
	startedAt := time.Now()
	err := m.store.Save(ctx, m.cfg.StoreKey, creds)
	m.observer.Observe(ctx, startedAt, "credentials_persist", err, map[string]any{
		"store_key": m.cfg.StoreKey,
	})
}

func (m *TokenManager) exchange(ctx context.Context, form url.Values) (tokenEndpointPayload, int, error) {
	if m.cfg.ClientID != "" {
		form.Set("client_id", m.cfg.ClientID)
	}
	if m.cfg.ClientSecret != "" {
		form.Set("client_secret", m.cfg.ClientSecret)
	}

	requestCtx, cancel := context.WithTimeout(ctx, m.cfg.TokenRequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		m.cfg.TokenURI,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return tokenEndpointPayload{}, 0, refreshFailure(requestCtx, RefreshFailureNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	response, err := m.httpClient.Do(httpReq)
	if err != nil {
		return tokenEndpointPayload{}, 0, refreshFailure(requestCtx, RefreshFailureNetwork, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if err != nil {
		return tokenEndpointPayload{}, response.StatusCode, refreshFailure(requestCtx, RefreshFailureNetwork, err)
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return tokenEndpointPayload{}, response.StatusCode, &TokenRefreshError{
			Reason:     RefreshFailureMalformedResponse,
			StatusCode: response.StatusCode,
			Message:    fmt.Sprintf("token response exceeds %d bytes", maxTokenResponseBodyBytes),
		}
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		reason := RefreshFailureRejected
		if response.StatusCode >= http.StatusInternalServerError {
			reason = RefreshFailureNetwork
		}
		refreshErr := &TokenRefreshError{
			Reason:     reason,
			StatusCode: response.StatusCode,
			Message:    "token endpoint returned an error status",
		}
		if parseErr == nil {
			refreshErr.ErrorCode = payload.ErrorCode
			if payload.ErrorDescription != "" {
				refreshErr.Message = payload.ErrorDescription
			}
		}
		return tokenEndpointPayload{}, response.StatusCode, refreshErr
	}
	if parseErr != nil {
		return tokenEndpointPayload{}, response.StatusCode, &TokenRefreshError{
			Reason:     RefreshFailureMalformedResponse,
			StatusCode: response.StatusCode,
			Message:    "decode token response",
			Cause:      parseErr,
		}
	}
	if payload.ErrorCode != "" {
		return tokenEndpointPayload{}, response.StatusCode, &TokenRefreshError{
			Reason:     RefreshFailureRejected,
			StatusCode: response.StatusCode,
			ErrorCode:  payload.ErrorCode,
			Message:    payload.ErrorDescription,
		}
	}
	if payload.AccessToken == "" || payload.RefreshToken == "" {
		return tokenEndpointPayload{}, response.StatusCode, &TokenRefreshError{
			Reason:     RefreshFailureMalformedResponse,
			StatusCode: response.StatusCode,
			Message:    "token response missing access_token or refresh_token",
		}
	}
	return payload, response.StatusCode, nil
}
