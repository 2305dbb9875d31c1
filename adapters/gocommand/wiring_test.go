package gocommand

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	commerce "github.com/goliatone/go-commerce"
	commercecmd "github.com/goliatone/go-commerce/command"
	"github.com/goliatone/go-commerce/core"
	commercequery "github.com/goliatone/go-commerce/query"
)

type stubClient struct {
	orders []commerce.CreateOrderRequest
}

func (s *stubClient) Refresh(context.Context) (core.TokenResponse, error) {
	return core.TokenResponse{AccessToken: "at"}, nil
}

func (s *stubClient) CreateAccount(_ context.Context, req commerce.CreateAccountRequest) (commerce.Account, error) {
	return commerce.Account{Name: req.Name}, nil
}

func (s *stubClient) CreateOrder(_ context.Context, req commerce.CreateOrderRequest) (commerce.Order, error) {
	s.orders = append(s.orders, req)
	return commerce.Order{Resource: commerce.Resource{ID: "ord_1"}}, nil
}

func (s *stubClient) CreateCheckout(context.Context, commerce.CreateCheckoutRequest) (commerce.Checkout, error) {
	return commerce.Checkout{}, nil
}

func (s *stubClient) GetTime(context.Context) (commerce.ServerTime, error) {
	return commerce.ServerTime{Epoch: 1420674461, ISO: time.Unix(1420674461, 0).UTC()}, nil
}

func (s *stubClient) GetSpotPrice(context.Context, commerce.PriceParams) (commerce.Price, error) {
	return commerce.Price{Amount: "1.00"}, nil
}

func (s *stubClient) GetExchangeRates(context.Context, string) (commerce.ExchangeRates, error) {
	return commerce.ExchangeRates{}, nil
}

func (s *stubClient) GetAccount(_ context.Context, id string) (commerce.Account, error) {
	return commerce.Account{Resource: commerce.Resource{ID: id}}, nil
}

func (s *stubClient) GetAccounts(context.Context, commerce.ListOptions) (commerce.Page[commerce.Account], error) {
	return commerce.Page[commerce.Account]{}, nil
}

func (s *stubClient) GetOrder(_ context.Context, id string) (commerce.Order, error) {
	return commerce.Order{Resource: commerce.Resource{ID: id}}, nil
}

func TestRegisterCommerce_DispatchesCommandsAndQueries(t *testing.T) {
	registry := NewRegistry(command.NewRegistry())
	client := &stubClient{}

	reg, err := RegisterCommerce(registry, Handlers{Client: client})
	if err != nil {
		t.Fatalf("register commerce: %v", err)
	}
	t.Cleanup(reg.Unsubscribe)
	if reg.Len() != 10 {
		t.Fatalf("expected ten subscriptions without a callback checker, got %d", reg.Len())
	}
	if err := registry.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if err := Dispatch(context.Background(), commercecmd.CreateOrderMessage{
		Request: commerce.CreateOrderRequest{Amount: "5.00", Currency: "USD", Name: "Order"},
	}); err != nil {
		t.Fatalf("dispatch create order: %v", err)
	}
	if len(client.orders) != 1 || client.orders[0].Amount != "5.00" {
		t.Fatalf("expected order creation to reach the client, got %#v", client.orders)
	}

	serverTime, err := Query[commercequery.GetServerTimeMessage, commerce.ServerTime](context.Background(), commercequery.GetServerTimeMessage{})
	if err != nil {
		t.Fatalf("query server time: %v", err)
	}
	if serverTime.Epoch != 1420674461 {
		t.Fatalf("unexpected server time: %#v", serverTime)
	}
}

func TestRegisterCommerce_RequiresClient(t *testing.T) {
	if _, err := RegisterCommerce(NewRegistry(nil), Handlers{}); err == nil {
		t.Fatalf("expected missing client error")
	}
}
