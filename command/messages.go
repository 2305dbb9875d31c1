package command

import (
	"strings"

	commerce "github.com/goliatone/go-commerce"
)

const (
	TypeRefreshTokens  = "commerce.command.tokens.refresh"
	TypeVerifyCallback = "commerce.command.callback.verify"
	TypeCreateAccount  = "commerce.command.account.create"
	TypeCreateOrder    = "commerce.command.order.create"
	TypeCreateCheckout = "commerce.command.checkout.create"
)

type RefreshTokensMessage struct{}

func (RefreshTokensMessage) Type() string { return TypeRefreshTokens }

func (RefreshTokensMessage) Validate() error { return nil }

type VerifyCallbackMessage struct {
	Body      []byte
	Signature string
}

func (VerifyCallbackMessage) Type() string { return TypeVerifyCallback }

func (m VerifyCallbackMessage) Validate() error {
	if m.Body == nil {
		return commandValidationError("body", "callback body is required")
	}
	if strings.TrimSpace(m.Signature) == "" {
		return commandValidationError("signature", "callback signature is required")
	}
	return nil
}

type CreateAccountMessage struct {
	Request commerce.CreateAccountRequest
}

func (CreateAccountMessage) Type() string { return TypeCreateAccount }

func (m CreateAccountMessage) Validate() error {
	if strings.TrimSpace(m.Request.Name) == "" {
		return commandValidationError("name", "account name is required")
	}
	return nil
}

type CreateOrderMessage struct {
	Request commerce.CreateOrderRequest
}

func (CreateOrderMessage) Type() string { return TypeCreateOrder }

func (m CreateOrderMessage) Validate() error {
	return validateAmount(m.Request.Amount, m.Request.Currency, m.Request.Name)
}

type CreateCheckoutMessage struct {
	Request commerce.CreateCheckoutRequest
}

func (CreateCheckoutMessage) Type() string { return TypeCreateCheckout }

func (m CreateCheckoutMessage) Validate() error {
	if m.Request.CustomerDefinedAmount && strings.TrimSpace(m.Request.Amount) == "" {
		if strings.TrimSpace(m.Request.Name) == "" {
			return commandValidationError("name", "checkout name is required")
		}
		if strings.TrimSpace(m.Request.Currency) == "" {
			return commandValidationError("currency", "currency is required")
		}
		return nil
	}
	return validateAmount(m.Request.Amount, m.Request.Currency, m.Request.Name)
}

func validateAmount(amount string, currency string, name string) error {
	if strings.TrimSpace(amount) == "" {
		return commandValidationError("amount", "amount is required")
	}
	if strings.TrimSpace(currency) == "" {
		return commandValidationError("currency", "currency is required")
	}
	if strings.TrimSpace(name) == "" {
		return commandValidationError("name", "name is required")
	}
	return nil
}
