package core

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type staticTokenSource string

func (s staticTokenSource) AccessToken() string {
	return string(s)
}

func TestBearerTokenSigner_SetsAuthorizationHeader(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.test/v2/user", nil)
	if err := (BearerTokenSigner{Source: staticTokenSource("at-123")}).Sign(context.Background(), req); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer at-123" {
		t.Fatalf("unexpected authorization header %q", got)
	}
}

func TestBearerTokenSigner_UsesTokenManagerPair(t *testing.T) {
	manager, err := newTestTokenManager(&countingDoer{}, "rt-123")
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.test/v2/user", nil)
	if err := (BearerTokenSigner{Source: manager}).Sign(context.Background(), req); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer at-old" {
		t.Fatalf("unexpected authorization header %q", got)
	}
}

func TestBearerTokenSigner_EmptyTokenIsAuthenticationError(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.test/v2/user", nil)
	err := (BearerTokenSigner{Source: staticTokenSource(" ")}).Sign(context.Background(), req)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if err := (BearerTokenSigner{}).Sign(context.Background(), req); err == nil {
		t.Fatalf("expected missing source error")
	}
}
