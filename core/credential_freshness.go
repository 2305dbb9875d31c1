package core

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultCredentialExpiringSoonWindow = 5 * time.Minute
	DefaultCredentialRefreshLeadWindow  = 5 * time.Minute
)

// CredentialTokenState is the expiry view of a credential pair at one instant.
type CredentialTokenState struct {
	ExpiresAt       *time.Time
	HasAccessToken  bool
	HasRefreshToken bool
	IsExpired       bool
	IsExpiringSoon  bool
}

type EnsureFreshResult struct {
	State            CredentialTokenState
	RefreshAttempted bool
	Refreshed        bool
	Response         TokenResponse
}

func ResolveCredentialTokenState(now time.Time, creds Credentials, expiringSoonWindow time.Duration) CredentialTokenState {
	now = normalizeNow(now)
	if expiringSoonWindow <= 0 {
		expiringSoonWindow = DefaultCredentialExpiringSoonWindow
	}
	state := CredentialTokenState{
		HasAccessToken:  creds.HasAccessToken(),
		HasRefreshToken: creds.HasRefreshToken(),
	}
	if creds.ExpiresAt == nil {
		return state
	}
	expiresAt := creds.ExpiresAt.UTC()
	state.ExpiresAt = &expiresAt
	if !expiresAt.After(now) {
		state.IsExpired = true
		return state
	}
	state.IsExpiringSoon = !expiresAt.After(now.Add(expiringSoonWindow))
	return state
}

// ShouldRefreshCredential is false without a refresh token and without a
// known expiry, since the server is then the only judge of validity.
func ShouldRefreshCredential(now time.Time, state CredentialTokenState, refreshLeadWindow time.Duration) bool {
	if !state.HasRefreshToken {
		return false
	}
	if !state.HasAccessToken {
		return true
	}
	if state.ExpiresAt == nil {
		return false
	}
	if refreshLeadWindow <= 0 {
		refreshLeadWindow = DefaultCredentialRefreshLeadWindow
	}
	return !state.ExpiresAt.UTC().After(normalizeNow(now).Add(refreshLeadWindow))
}

// EnsureFresh refreshes ahead of a request when the access token is missing
// or expires within leadWindow. The 401 driven refresh stays in place for
// tokens revoked before their expiry.
func (m *TokenManager) EnsureFresh(ctx context.Context, leadWindow time.Duration) (EnsureFreshResult, error) {
	if m == nil {
		return EnsureFreshResult{}, fmt.Errorf("core: token manager is nil")
	}
	now := m.cfg.Now()
	state := ResolveCredentialTokenState(now, m.Credentials(), leadWindow)
	result := EnsureFreshResult{State: state}
	if !ShouldRefreshCredential(now, state, leadWindow) {
		return result, nil
	}

	result.RefreshAttempted = true
	response, err := m.Refresh(ctx)
	if err != nil {
		return result, err
	}
	result.Refreshed = true
	result.Response = response
	result.State = ResolveCredentialTokenState(m.cfg.Now(), m.Credentials(), leadWindow)
	return result, nil
}

func normalizeNow(now time.Time) time.Time {
	if now.IsZero() {
		return time.Now().UTC()
	}
	return now.UTC()
}
