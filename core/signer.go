package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

type Signer interface {
	Sign(ctx context.Context, req *http.Request) error
}

// BearerTokenSigner attaches the current access token of Source to outgoing
// resource requests.
type BearerTokenSigner struct {
	Source AccessTokenSource
}

func (s BearerTokenSigner) Sign(_ context.Context, req *http.Request) error {
	if req == nil {
		return fmt.Errorf("core: http request is required")
	}
	if s.Source == nil {
		return fmt.Errorf("core: access token source is required for bearer signing")
	}
	token := strings.TrimSpace(s.Source.AccessToken())
	if token == "" {
		return &AuthenticationError{Message: "access token is required for bearer signing"}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}
