package command

import (
	gocmd "github.com/goliatone/go-command"
	commerce "github.com/goliatone/go-commerce"
	"github.com/goliatone/go-commerce/webhooks"
)

var (
	_ gocmd.Commander[RefreshTokensMessage]  = (*RefreshTokensCommand)(nil)
	_ gocmd.Commander[VerifyCallbackMessage] = (*VerifyCallbackCommand)(nil)
	_ gocmd.Commander[CreateAccountMessage]  = (*CreateAccountCommand)(nil)
	_ gocmd.Commander[CreateOrderMessage]    = (*CreateOrderCommand)(nil)
	_ gocmd.Commander[CreateCheckoutMessage] = (*CreateCheckoutCommand)(nil)

	_ TokenRefresher   = (*commerce.Client)(nil)
	_ MutatingService  = (*commerce.Client)(nil)
	_ SignatureChecker = (*webhooks.CallbackVerifier)(nil)
)
