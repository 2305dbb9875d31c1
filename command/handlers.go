package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	commerce "github.com/goliatone/go-commerce"
	"github.com/goliatone/go-commerce/core"
)

type TokenRefresher interface {
	Refresh(ctx context.Context) (core.TokenResponse, error)
}

// SignatureChecker reports why a callback signature is rejected.
type SignatureChecker interface {
	Check(body []byte, signature string) error
}

type MutatingService interface {
	CreateAccount(ctx context.Context, req commerce.CreateAccountRequest) (commerce.Account, error)
	CreateOrder(ctx context.Context, req commerce.CreateOrderRequest) (commerce.Order, error)
	CreateCheckout(ctx context.Context, req commerce.CreateCheckoutRequest) (commerce.Checkout, error)
}

// RefreshTokensCommand stores the token endpoint payload as its result.
type RefreshTokensCommand struct {
	tokens TokenRefresher
}

func NewRefreshTokensCommand(tokens TokenRefresher) *RefreshTokensCommand {
	return &RefreshTokensCommand{tokens: tokens}
}

func (c *RefreshTokensCommand) Execute(ctx context.Context, msg RefreshTokensMessage) error {
	if c == nil || c.tokens == nil {
		return commandDependencyError("command: token refresher is required")
	}
	out, err := c.tokens.Refresh(ctx)
	if err != nil {
		return core.MapError(err)
	}
	storeResult(ctx, out)
	return nil
}

type VerifyCallbackCommand struct {
	checker SignatureChecker
}

func NewVerifyCallbackCommand(checker SignatureChecker) *VerifyCallbackCommand {
	return &VerifyCallbackCommand{checker: checker}
}

func (c *VerifyCallbackCommand) Execute(ctx context.Context, msg VerifyCallbackMessage) error {
	if c == nil || c.checker == nil {
		return commandDependencyError("command: callback verifier is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := c.checker.Check(msg.Body, msg.Signature); err != nil {
		return core.MapError(err)
	}
	storeResult(ctx, true)
	return nil
}

type CreateAccountCommand struct {
	service MutatingService
}

func NewCreateAccountCommand(service MutatingService) *CreateAccountCommand {
	return &CreateAccountCommand{service: service}
}

func (c *CreateAccountCommand) Execute(ctx context.Context, msg CreateAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: account service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.CreateAccount(ctx, msg.Request)
	if err != nil {
		return core.MapError(err)
	}
	storeResult(ctx, out)
	return nil
}

type CreateOrderCommand struct {
	service MutatingService
}

func NewCreateOrderCommand(service MutatingService) *CreateOrderCommand {
	return &CreateOrderCommand{service: service}
}

func (c *CreateOrderCommand) Execute(ctx context.Context, msg CreateOrderMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: order service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.CreateOrder(ctx, msg.Request)
	if err != nil {
		return core.MapError(err)
	}
	storeResult(ctx, out)
	return nil
}

type CreateCheckoutCommand struct {
	service MutatingService
}

func NewCreateCheckoutCommand(service MutatingService) *CreateCheckoutCommand {
	return &CreateCheckoutCommand{service: service}
}

func (c *CreateCheckoutCommand) Execute(ctx context.Context, msg CreateCheckoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: checkout service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.CreateCheckout(ctx, msg.Request)
	if err != nil {
		return core.MapError(err)
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
