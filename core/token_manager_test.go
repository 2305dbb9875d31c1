package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestTokenManager_RefreshReplacesPairAndReturnsFullPayload(t *testing.T) {
	var gotMethod, gotContentType string
	var gotGrant, gotRefresh string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotGrant = r.PostForm.Get("grant_type")
		gotRefresh = r.PostForm.Get("refresh_token")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-456","refresh_token":"rt-789"}`))
	}))
	defer server.Close()

	manager, err := NewTokenManager(TokenManagerConfig{TokenURI: server.URL + "/oauth/token"},
		WithInitialTokens("at-123", "rt-123"),
	)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	result, err := manager.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("expected form content type, got %q", gotContentType)
	}
	if gotGrant != "refresh_token" || gotRefresh != "rt-123" {
		t.Fatalf("unexpected form grant=%q refresh=%q", gotGrant, gotRefresh)
	}

	creds := manager.Credentials()
	if creds.AccessToken != "at-456" || creds.RefreshToken != "rt-789" {
		t.Fatalf("expected rotated pair, got %q/%q", creds.AccessToken, creds.RefreshToken)
	}
	expected := map[string]any{"access_token": "at-456", "refresh_token": "rt-789"}
	if !reflect.DeepEqual(result.Raw, expected) {
		t.Fatalf("expected full payload %#v, got %#v", expected, result.Raw)
	}
	if result.AccessToken != "at-456" || result.RefreshToken != "rt-789" {
		t.Fatalf("unexpected typed payload %+v", result)
	}
}

func TestTokenManager_RefreshExposesExtraFields(t *testing.T) {
	doer := &countingDoer{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"access_token":"a","refresh_token":"r","token_type":"bearer","expires_in":7200,"scope":"wallet:user:read"}`), nil
	}}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	manager, err := NewTokenManager(TokenManagerConfig{
		TokenURI:   "https://auth.example.test/oauth/token",
		HTTPClient: doer,
		Now:        func() time.Time { return now },
	}, WithInitialTokens("", "rt-1"))
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	result, err := manager.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if result.ExpiresIn != 7200 || result.TokenType != "bearer" || result.Scope != "wallet:user:read" {
		t.Fatalf("unexpected typed metadata %+v", result)
	}
	if fmt.Sprint(result.Raw["expires_in"]) != "7200" {
		t.Fatalf("expected raw expires_in to be preserved, got %#v", result.Raw["expires_in"])
	}
	creds := manager.Credentials()
	if creds.ExpiresAt == nil || !creds.ExpiresAt.Equal(now.Add(2*time.Hour)) {
		t.Fatalf("expected expiry two hours after refresh, got %v", creds.ExpiresAt)
	}
	if creds.Expired(now) {
		t.Fatalf("expected fresh credential")
	}
}

func TestTokenManager_RefreshWithoutRefreshTokenSkipsNetwork(t *testing.T) {
	doer := &countingDoer{}
	manager, err := newTestTokenManager(doer, "")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	_, err = manager.Refresh(context.Background())
	if err == nil {
		t.Fatalf("expected authentication error")
	}
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %T", err)
	}
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected errors.Is(err, ErrAuthentication)")
	}
	if calls := doer.calls.Load(); calls != 0 {
		t.Fatalf("expected no network call, got %d", calls)
	}
}

func TestTokenManager_RefreshRejectedByEndpoint(t *testing.T) {
	doer := &countingDoer{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"error":"invalid_grant","error_description":"refresh token revoked"}`), nil
	}}
	manager, err := newTestTokenManager(doer, "rt-123")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	_, err = manager.Refresh(context.Background())
	var refreshErr *TokenRefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("expected TokenRefreshError, got %v", err)
	}
	if refreshErr.Reason != RefreshFailureRejected {
		t.Fatalf("expected rejected reason, got %q", refreshErr.Reason)
	}
	if refreshErr.StatusCode != http.StatusBadRequest || refreshErr.ErrorCode != "invalid_grant" {
		t.Fatalf("unexpected error detail %+v", refreshErr)
	}
	if !errors.Is(err, ErrTokenRefresh) {
		t.Fatalf("expected errors.Is(err, ErrTokenRefresh)")
	}
	creds := manager.Credentials()
	if creds.AccessToken != "at-old" || creds.RefreshToken != "rt-123" {
		t.Fatalf("expected pair to stay untouched, got %q/%q", creds.AccessToken, creds.RefreshToken)
	}
}

func TestTokenManager_RefreshNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	tokenURI := server.URL + "/oauth/token"
	server.Close()

	manager, err := NewTokenManager(TokenManagerConfig{TokenURI: tokenURI}, WithInitialTokens("", "rt-123"))
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	_, err = manager.Refresh(context.Background())
	if reason := RefreshReason(err); reason != RefreshFailureNetwork {
		t.Fatalf("expected network reason, got %q (%v)", reason, err)
	}
}

func TestTokenManager_RefreshServerErrorIsNetworkFailure(t *testing.T) {
	doer := &countingDoer{handler: func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, `{}`), nil
	}}
	manager, err := newTestTokenManager(doer, "rt-123")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	_, err = manager.Refresh(context.Background())
	if reason := RefreshReason(err); reason != RefreshFailureNetwork {
		t.Fatalf("expected network reason for 503, got %q", reason)
	}
}

func TestTokenManager_RefreshMalformedResponses(t *testing.T) {
	cases := map[string]*http.Response{
		"invalid json":          jsonResponse(http.StatusOK, `{"access_token":`),
		"missing refresh token": jsonResponse(http.StatusOK, `{"access_token":"at-1"}`),
		"missing access token":  jsonResponse(http.StatusOK, `{"refresh_token":"rt-1"}`),
		"array body":            jsonResponse(http.StatusOK, `[]`),
		"non-string tokens":     jsonResponse(http.StatusOK, `{"access_token":12345,"refresh_token":{"nested":true}}`),
		"numeric access token":  jsonResponse(http.StatusOK, `{"access_token":12345,"refresh_token":"rt-1"}`),
		"boolean refresh token": jsonResponse(http.StatusOK, `{"access_token":"at-1","refresh_token":true}`),
	}
	for name, response := range cases {
		t.Run(name, func(t *testing.T) {
			doer := &countingDoer{handler: func(*http.Request) (*http.Response, error) {
				return response, nil
			}}
			manager, err := newTestTokenManager(doer, "rt-123")
			if err != nil {
				t.Fatalf("new token manager: %v", err)
			}
			_, err = manager.Refresh(context.Background())
			if reason := RefreshReason(err); reason != RefreshFailureMalformedResponse {
				t.Fatalf("expected malformed_response, got %q (%v)", reason, err)
			}
			if got := manager.Credentials().RefreshToken; got != "rt-123" {
				t.Fatalf("expected refresh token untouched, got %q", got)
			}
		})
	}
}

func TestTokenManager_RefreshAcceptsFormEncodedResponse(t *testing.T) {
	doer := &countingDoer{handler: func(*http.Request) (*http.Response, error) {
		response := jsonResponse(http.StatusOK, "access_token=at-form&refresh_token=rt-form&expires_in=60")
		response.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return response, nil
	}}
	manager, err := newTestTokenManager(doer, "rt-123")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	result, err := manager.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if result.AccessToken != "at-form" || result.ExpiresIn != 60 {
		t.Fatalf("unexpected form payload %+v", result)
	}
	if result.Raw["refresh_token"] != "rt-form" {
		t.Fatalf("expected raw form fields, got %#v", result.Raw)
	}
}

func TestTokenManager_RefreshSendsClientCredentials(t *testing.T) {
	doer := &countingDoer{}
	manager, err := NewTokenManager(TokenManagerConfig{
		TokenURI:     "https://auth.example.test/oauth/token",
		ClientID:     " client-1 ",
		ClientSecret: "secret-1",
		HTTPClient:   doer,
	}, WithInitialTokens("", "rt-123"))
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	if _, err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	form := doer.lastForm()
	if form.Get("client_id") != "client-1" || form.Get("client_secret") != "secret-1" {
		t.Fatalf("expected client credentials in body, got %v", form)
	}
}

func TestTokenManager_RefreshCancelledByCaller(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	doer := &countingDoer{handler: func(req *http.Request) (*http.Response, error) {
		close(entered)
		select {
		case <-release:
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
		return jsonResponse(http.StatusOK, `{"access_token":"at-late","refresh_token":"rt-late"}`), nil
	}}
	manager, err := newTestTokenManager(doer, "rt-123")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := manager.Refresh(ctx)
		done <- err
	}()
	<-entered
	cancel()

	err = <-done
	if reason := RefreshReason(err); reason != RefreshFailureCancelled {
		t.Fatalf("expected cancelled reason, got %q (%v)", reason, err)
	}
}

func TestTokenManager_RefreshWithCancelledContextSkipsNetwork(t *testing.T) {
	doer := &countingDoer{}
	manager, err := newTestTokenManager(doer, "rt-123")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = manager.Refresh(ctx)
	if reason := RefreshReason(err); reason != RefreshFailureCancelled {
		t.Fatalf("expected cancelled reason, got %q (%v)", reason, err)
	}
	if calls := doer.calls.Load(); calls != 0 {
		t.Fatalf("expected no token request, got %d", calls)
	}
	if creds := manager.Credentials(); creds.AccessToken != "at-old" || creds.RefreshToken != "rt-123" {
		t.Fatalf("expected pair untouched, got %q/%q", creds.AccessToken, creds.RefreshToken)
	}
}

func TestTokenManager_RefreshTimeoutIsCancelled(t *testing.T) {
	doer := &countingDoer{handler: func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	}}
	manager, err := NewTokenManager(TokenManagerConfig{
		TokenURI:            "https://auth.example.test/oauth/token",
		TokenRequestTimeout: 20 * time.Millisecond,
		HTTPClient:          doer,
	}, WithInitialTokens("", "rt-123"))
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	_, err = manager.Refresh(context.Background())
	if reason := RefreshReason(err); reason != RefreshFailureCancelled {
		t.Fatalf("expected cancelled reason on timeout, got %q (%v)", reason, err)
	}
}

func TestTokenManager_ReadersNeverObservePartialPair(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	doer := &countingDoer{handler: func(*http.Request) (*http.Response, error) {
		close(entered)
		<-release
		return jsonResponse(http.StatusOK, `{"access_token":"at-456","refresh_token":"rt-789"}`), nil
	}}
	manager, err := newTestTokenManager(doer, "rt-123")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := manager.Refresh(context.Background())
		done <- err
	}()

	<-entered
	mid := manager.Credentials()
	if mid.AccessToken != "at-old" || mid.RefreshToken != "rt-123" {
		t.Fatalf("expected old pair while refresh is in flight, got %q/%q", mid.AccessToken, mid.RefreshToken)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var inconsistent sync.Map
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				creds := manager.Credentials()
				oldPair := creds.AccessToken == "at-old" && creds.RefreshToken == "rt-123"
				newPair := creds.AccessToken == "at-456" && creds.RefreshToken == "rt-789"
				if !oldPair && !newPair {
					inconsistent.Store(creds.AccessToken+"/"+creds.RefreshToken, true)
				}
			}
		}()
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("refresh: %v", err)
	}
	close(stop)
	wg.Wait()

	inconsistent.Range(func(key, _ any) bool {
		t.Fatalf("observed partial pair %v", key)
		return false
	})
	final := manager.Credentials()
	if final.AccessToken != "at-456" || final.RefreshToken != "rt-789" {
		t.Fatalf("expected new pair, got %q/%q", final.AccessToken, final.RefreshToken)
	}
}

func TestTokenManager_ConcurrentRefreshSharesInFlightResult(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	doer := &countingDoer{handler: func(*http.Request) (*http.Response, error) {
		select {
		case <-entered:
		default:
			close(entered)
		}
		<-release
		return jsonResponse(http.StatusOK, `{"access_token":"at-456","refresh_token":"rt-789"}`), nil
	}}
	manager, err := newTestTokenManager(doer, "rt-123")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	type outcome struct {
		result TokenResponse
		err    error
	}
	outcomes := make(chan outcome, 3)
	go func() {
		result, err := manager.Refresh(context.Background())
		outcomes <- outcome{result, err}
	}()
	<-entered
	for i := 0; i < 2; i++ {
		go func() {
			result, err := manager.Refresh(context.Background())
			outcomes <- outcome{result, err}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < 3; i++ {
		got := <-outcomes
		if got.err != nil {
			t.Fatalf("refresh %d: %v", i, got.err)
		}
		if got.result.AccessToken != "at-456" || got.result.RefreshToken != "rt-789" {
			t.Fatalf("expected shared result, got %+v", got.result)
		}
	}
	if calls := doer.calls.Load(); calls != 1 {
		t.Fatalf("expected one token request, got %d", calls)
	}
}

func TestTokenManager_ConcurrentRefreshRejectedWhenConfigured(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	doer := &countingDoer{handler: func(*http.Request) (*http.Response, error) {
		close(entered)
		<-release
		return jsonResponse(http.StatusOK, `{"access_token":"at-456","refresh_token":"rt-789"}`), nil
	}}
	manager, err := NewTokenManager(TokenManagerConfig{
		TokenURI:    "https://auth.example.test/oauth/token",
		Concurrency: RefreshConcurrencyReject,
		HTTPClient:  doer,
	}, WithInitialTokens("at-old", "rt-123"))
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := manager.Refresh(context.Background())
		done <- err
	}()
	<-entered

	if _, err := manager.Refresh(context.Background()); !errors.Is(err, ErrRefreshInProgress) {
		t.Fatalf("expected ErrRefreshInProgress, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if calls := doer.calls.Load(); calls != 1 {
		t.Fatalf("expected one token request, got %d", calls)
	}
}

func TestTokenManager_PersistsAndRestoresPair(t *testing.T) {
	store := newMemoryCredentialStore()
	doer := &countingDoer{}
	manager, err := NewTokenManager(TokenManagerConfig{
		TokenURI:   "https://auth.example.test/oauth/token",
		StoreKey:   "merchant-1",
		HTTPClient: doer,
	}, WithInitialTokens("at-old", "rt-123"), WithCredentialStore(store))
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	if _, err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	saved, err := store.Load(context.Background(), "merchant-1")
	if err != nil {
		t.Fatalf("load saved pair: %v", err)
	}
	if saved.AccessToken != "at-new" || saved.RefreshToken != "rt-new" {
		t.Fatalf("expected persisted new pair, got %+v", saved)
	}

	restored, err := NewTokenManager(TokenManagerConfig{
		TokenURI:   "https://auth.example.test/oauth/token",
		StoreKey:   "merchant-1",
		HTTPClient: doer,
	}, WithCredentialStore(store))
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	creds, err := restored.Restore(context.Background())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if creds.RefreshToken != "rt-new" || restored.AccessToken() != "at-new" {
		t.Fatalf("expected restored pair, got %+v", creds)
	}
}

// loadSignalingStore reports when Load has read the stored pair.
type loadSignalingStore struct {
	*memoryCredentialStore
	loaded chan struct{}
}

func (s *loadSignalingStore) Load(ctx context.Context, key string) (Credentials, error) {
	creds, err := s.memoryCredentialStore.Load(ctx, key)
	close(s.loaded)
	return creds, err
}

func TestTokenManager_RestoreDoesNotOverwriteConcurrentRefresh(t *testing.T) {
	store := &loadSignalingStore{memoryCredentialStore: newMemoryCredentialStore(), loaded: make(chan struct{})}
	store.byKey["default"] = Credentials{AccessToken: "at-stale", RefreshToken: "rt-stale"}
	store.saveErr = errors.New("read only")

	entered := make(chan struct{})
	release := make(chan struct{})
	doer := &countingDoer{handler: func(*http.Request) (*http.Response, error) {
		close(entered)
		<-release
		return jsonResponse(http.StatusOK, `{"access_token":"at-456","refresh_token":"rt-789"}`), nil
	}}
	manager, err := newTestTokenManager(doer, "rt-123", WithCredentialStore(store))
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	refreshed := make(chan error, 1)
	go func() {
		_, err := manager.Refresh(context.Background())
		refreshed <- err
	}()
	<-entered

	type restoreResult struct {
		creds Credentials
		err   error
	}
	restored := make(chan restoreResult, 1)
	go func() {
		creds, err := manager.Restore(context.Background())
		restored <- restoreResult{creds: creds, err: err}
	}()
	<-store.loaded
	close(release)

	if err := <-refreshed; err != nil {
		t.Fatalf("refresh: %v", err)
	}
	result := <-restored
	if result.err != nil {
		t.Fatalf("restore: %v", result.err)
	}
	if result.creds.AccessToken != "at-456" || result.creds.RefreshToken != "rt-789" {
		t.Fatalf("expected restore to report rotated pair, got %q/%q", result.creds.AccessToken, result.creds.RefreshToken)
	}
	if creds := manager.Credentials(); creds.AccessToken != "at-456" || creds.RefreshToken != "rt-789" {
		t.Fatalf("expected rotated pair to survive restore, got %q/%q", creds.AccessToken, creds.RefreshToken)
	}
}

func TestTokenManager_PersistenceFailureDoesNotFailRefresh(t *testing.T) {
	store := newMemoryCredentialStore()
	store.saveErr = errors.New("disk full")
	logger := &capturingLogger{}
	manager, err := newTestTokenManager(&countingDoer{}, "rt-123",
		WithCredentialStore(store),
		WithTokenLogger(logger),
	)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	if _, err := manager.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh should succeed despite persistence failure: %v", err)
	}
	if manager.Credentials().RefreshToken != "rt-new" {
		t.Fatalf("expected in-memory pair to be rotated")
	}
	foundError := false
	for _, call := range logger.snapshot() {
		if call.level == "error" && call.msg == "credentials_persist failed" {
			foundError = true
		}
	}
	if !foundError {
		t.Fatalf("expected persistence failure to be logged")
	}
}

func TestTokenManager_SetCredentialsKeepsTokenURI(t *testing.T) {
	manager, err := newTestTokenManager(&countingDoer{}, "rt-123")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	manager.SetCredentials(Credentials{AccessToken: " at-x ", RefreshToken: "rt-x", TokenURI: "https://elsewhere.test"})
	creds := manager.Credentials()
	if creds.AccessToken != "at-x" || creds.RefreshToken != "rt-x" {
		t.Fatalf("unexpected pair %+v", creds)
	}
	if creds.TokenURI != "https://auth.example.test/oauth/token" {
		t.Fatalf("expected configured token uri, got %q", creds.TokenURI)
	}
	if creds.UpdatedAt.IsZero() {
		t.Fatalf("expected updated at to be stamped")
	}
}

func TestNewTokenManager_Validation(t *testing.T) {
	if _, err := NewTokenManager(TokenManagerConfig{TokenURI: "/relative"}); err == nil {
		t.Fatalf("expected relative token uri to be rejected")
	}
	if _, err := NewTokenManager(TokenManagerConfig{Concurrency: "queue"}); err == nil {
		t.Fatalf("expected unknown concurrency mode to be rejected")
	}
	manager, err := NewTokenManager(TokenManagerConfig{})
	if err != nil {
		t.Fatalf("expected defaults to be valid: %v", err)
	}
	if manager.Credentials().TokenURI != DefaultTokenURI {
		t.Fatalf("expected default token uri, got %q", manager.Credentials().TokenURI)
	}
}
