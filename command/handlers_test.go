package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	commerce "github.com/goliatone/go-commerce"
	"github.com/goliatone/go-commerce/core"
	goerrors "github.com/goliatone/go-errors"
)

type stubRefresher struct {
	calls int
	out   core.TokenResponse
	err   error
}

func (s *stubRefresher) Refresh(context.Context) (core.TokenResponse, error) {
	s.calls++
	return s.out, s.err
}

type stubChecker struct {
	err error
}

func (s stubChecker) Check([]byte, string) error {
	return s.err
}

type stubMutatingService struct {
	lastOrder    commerce.CreateOrderRequest
	lastCheckout commerce.CreateCheckoutRequest
	lastAccount  commerce.CreateAccountRequest
	err          error
}

func (s *stubMutatingService) CreateAccount(_ context.Context, req commerce.CreateAccountRequest) (commerce.Account, error) {
	s.lastAccount = req
	return commerce.Account{Resource: commerce.Resource{ID: "acct_1"}, Name: req.Name}, s.err
}

func (s *stubMutatingService) CreateOrder(_ context.Context, req commerce.CreateOrderRequest) (commerce.Order, error) {
	s.lastOrder = req
	return commerce.Order{Resource: commerce.Resource{ID: "ord_1"}}, s.err
}

func (s *stubMutatingService) CreateCheckout(_ context.Context, req commerce.CreateCheckoutRequest) (commerce.Checkout, error) {
	s.lastCheckout = req
	return commerce.Checkout{Resource: commerce.Resource{ID: "chk_1"}}, s.err
}

func TestRefreshTokensCommand_StoresTokenResponse(t *testing.T) {
	refresher := &stubRefresher{out: core.TokenResponse{AccessToken: "at-new", RefreshToken: "rt-new"}}
	cmd := NewRefreshTokensCommand(refresher)

	collector := gocmd.NewResult[core.TokenResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, RefreshTokensMessage{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out, ok := collector.Load()
	if !ok {
		t.Fatalf("expected stored result")
	}
	if out.AccessToken != "at-new" || out.RefreshToken != "rt-new" {
		t.Fatalf("unexpected token response: %#v", out)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.calls)
	}
}

func TestRefreshTokensCommand_MapsRefreshFailure(t *testing.T) {
	cmd := NewRefreshTokensCommand(&stubRefresher{
		err: &core.TokenRefreshError{Reason: core.RefreshFailureRejected, StatusCode: 401, ErrorCode: "invalid_grant"},
	})
	err := cmd.Execute(context.Background(), RefreshTokensMessage{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorTextTokenRejected {
		t.Fatalf("expected %q, got %q", core.ErrorTextTokenRejected, rich.TextCode)
	}
}

func TestCommands_RequireDependencies(t *testing.T) {
	cases := []struct {
		name string
		run  func() error
	}{
		{"refresh", func() error { return (&RefreshTokensCommand{}).Execute(context.Background(), RefreshTokensMessage{}) }},
		{"verify", func() error {
			return (&VerifyCallbackCommand{}).Execute(context.Background(), VerifyCallbackMessage{Body: []byte("{}"), Signature: "sig"})
		}},
		{"order", func() error {
			return (&CreateOrderCommand{}).Execute(context.Background(), CreateOrderMessage{})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rich *goerrors.Error
			if err := tc.run(); !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %v", err)
			}
			if rich.TextCode != core.ErrorTextInternal {
				t.Fatalf("expected %q, got %q", core.ErrorTextInternal, rich.TextCode)
			}
		})
	}
}

func TestVerifyCallbackCommand_ValidatesAndDelegates(t *testing.T) {
	cmd := NewVerifyCallbackCommand(stubChecker{})

	err := cmd.Execute(context.Background(), VerifyCallbackMessage{Body: []byte("{}")})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if rich.Category != goerrors.CategoryValidation || rich.TextCode != core.ErrorTextBadInput {
		t.Fatalf("unexpected envelope: category=%s text=%s", rich.Category, rich.TextCode)
	}
	if validation := rich.AllValidationErrors(); len(validation) != 1 || validation[0].Field != "signature" {
		t.Fatalf("expected signature field error, got %#v", validation)
	}

	collector := gocmd.NewResult[bool]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, VerifyCallbackMessage{Body: []byte("{}"), Signature: "c2ln"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if verified, ok := collector.Load(); !ok || !verified {
		t.Fatalf("expected verified result")
	}
}

func TestVerifyCallbackCommand_PropagatesMismatch(t *testing.T) {
	cmd := NewVerifyCallbackCommand(stubChecker{err: errors.New("signature mismatch")})
	if err := cmd.Execute(context.Background(), VerifyCallbackMessage{Body: []byte("{}"), Signature: "c2ln"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestCreateOrderCommand_DelegatesAndStoresOrder(t *testing.T) {
	service := &stubMutatingService{}
	cmd := NewCreateOrderCommand(service)

	collector := gocmd.NewResult[commerce.Order]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	msg := CreateOrderMessage{Request: commerce.CreateOrderRequest{Amount: "10.00", Currency: "USD", Name: "Order"}}
	if err := cmd.Execute(ctx, msg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out, ok := collector.Load()
	if !ok || out.ID != "ord_1" {
		t.Fatalf("expected stored order, got %#v", out)
	}
	if service.lastOrder.Amount != "10.00" {
		t.Fatalf("expected request to be forwarded, got %#v", service.lastOrder)
	}
}

func TestCreateOrderCommand_RejectsMissingAmount(t *testing.T) {
	service := &stubMutatingService{}
	cmd := NewCreateOrderCommand(service)
	err := cmd.Execute(context.Background(), CreateOrderMessage{Request: commerce.CreateOrderRequest{Currency: "USD", Name: "x"}})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if service.lastOrder.Currency != "" {
		t.Fatalf("service must not be called on invalid input")
	}
}

func TestCreateCheckoutCommand_AllowsCustomerDefinedAmount(t *testing.T) {
	service := &stubMutatingService{}
	cmd := NewCreateCheckoutCommand(service)
	msg := CreateCheckoutMessage{Request: commerce.CreateCheckoutRequest{
		Currency:              "USD",
		Name:                  "Donation",
		CustomerDefinedAmount: true,
	}}
	if err := cmd.Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if service.lastCheckout.Name != "Donation" {
		t.Fatalf("expected forwarded checkout, got %#v", service.lastCheckout)
	}
}

func TestCreateAccountCommand_RequiresName(t *testing.T) {
	service := &stubMutatingService{}
	cmd := NewCreateAccountCommand(service)
	if err := cmd.Execute(context.Background(), CreateAccountMessage{}); err == nil {
		t.Fatalf("expected validation error")
	}

	collector := gocmd.NewResult[commerce.Account]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := cmd.Execute(ctx, CreateAccountMessage{Request: commerce.CreateAccountRequest{Name: "Savings"}}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out, ok := collector.Load(); !ok || out.Name != "Savings" {
		t.Fatalf("expected stored account, got %#v", out)
	}
}
