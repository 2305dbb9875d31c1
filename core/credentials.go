package core

import (
	"strings"
	"sync/atomic"
	"time"
)

// Credentials is an immutable snapshot of the OAuth token pair. A new value
// replaces the previous one as a whole, never field by field.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenURI     string
	ExpiresAt    *time.Time
	UpdatedAt    time.Time
}

func (c Credentials) HasRefreshToken() bool {
	return strings.TrimSpace(c.RefreshToken) != ""
}

func (c Credentials) HasAccessToken() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

// Expired reports whether the access token expiry is known and not after now.
func (c Credentials) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.After(now)
}

func (c Credentials) clone() Credentials {
	cloned := c
	if c.ExpiresAt != nil {
		value := c.ExpiresAt.UTC()
		cloned.ExpiresAt = &value
	}
	return cloned
}

type credentialState struct {
	current atomic.Pointer[Credentials]
}

func newCredentialState(initial Credentials) *credentialState {
	state := &credentialState{}
	state.store(initial)
	return state
}

func (s *credentialState) load() Credentials {
	current := s.current.Load()
	if current == nil {
		return Credentials{}
	}
	return current.clone()
}

func (s *credentialState) store(next Credentials) {
	snapshot := next.clone()
	s.current.Store(&snapshot)
}
