package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	commerce "github.com/goliatone/go-commerce"
	commercecmd "github.com/goliatone/go-commerce/command"
	commercequery "github.com/goliatone/go-commerce/query"
)

// Client is the client surface the registered commands and queries need.
type Client interface {
	commercecmd.TokenRefresher
	commercecmd.MutatingService
	commercequery.MarketDataReader
	commercequery.AccountReader
	commercequery.OrderReader
}

type Handlers struct {
	Client   Client
	Callback commercecmd.SignatureChecker
	Runner   []runner.Option
}

// Registration keeps the dispatcher subscriptions so they can be released.
type Registration struct {
	subscriptions []commanddispatcher.Subscription
}

func (r *Registration) Len() int {
	if r == nil {
		return 0
	}
	return len(r.subscriptions)
}

func (r *Registration) Unsubscribe() {
	if r == nil {
		return
	}
	for _, sub := range r.subscriptions {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	r.subscriptions = nil
}

func (r *Registration) add(sub commanddispatcher.Subscription, err error) error {
	if err != nil {
		return err
	}
	r.subscriptions = append(r.subscriptions, sub)
	return nil
}

// RegisterCommerce registers every commerce command and query on registry and subscribes them on the global dispatcher. The callback command
// is skipped when no checker is set.
func RegisterCommerce(registry *Registry, handlers Handlers) (*Registration, error) {
	if handlers.Client == nil {
		return nil, fmt.Errorf("gocommand: commerce client is required")
	}
	client := handlers.Client
	opts := handlers.Runner
	reg := &Registration{}

	steps := []func() error{
		func() error {
			return reg.add(RegisterCommand[commercecmd.RefreshTokensMessage](registry, commercecmd.NewRefreshTokensCommand(client), opts...))
		},
		func() error {
			return reg.add(RegisterCommand[commercecmd.CreateAccountMessage](registry, commercecmd.NewCreateAccountCommand(client), opts...))
		},
		func() error {
			return reg.add(RegisterCommand[commercecmd.CreateOrderMessage](registry, commercecmd.NewCreateOrderCommand(client), opts...))
		},
		func() error {
			return reg.add(RegisterCommand[commercecmd.CreateCheckoutMessage](registry, commercecmd.NewCreateCheckoutCommand(client), opts...))
		},
		func() error {
			return reg.add(RegisterQuery[commercequery.GetServerTimeMessage, commerce.ServerTime](registry, commercequery.NewGetServerTimeQuery(client), opts...))
		},
		func() error {
			return reg.add(RegisterQuery[commercequery.GetSpotPriceMessage, commerce.Price](registry, commercequery.NewGetSpotPriceQuery(client), opts...))
		},
		func() error {
			return reg.add(RegisterQuery[commercequery.GetExchangeRatesMessage, commerce.ExchangeRates](registry, commercequery.NewGetExchangeRatesQuery(client), opts...))
		},
		func() error {
			return reg.add(RegisterQuery[commercequery.GetAccountMessage, commerce.Account](registry, commercequery.NewGetAccountQuery(client), opts...))
		},
		func() error {
			return reg.add(RegisterQuery[commercequery.ListAccountsMessage, commerce.Page[commerce.Account]](registry, commercequery.NewListAccountsQuery(client), opts...))
		},
		func() error {
			return reg.add(RegisterQuery[commercequery.GetOrderMessage, commerce.Order](registry, commercequery.NewGetOrderQuery(client), opts...))
		},
	}
	if handlers.Callback != nil {
		steps = append(steps, func() error {
			return reg.add(RegisterCommand[commercecmd.VerifyCallbackMessage](registry, commercecmd.NewVerifyCallbackCommand(handlers.Callback), opts...))
		})
	}
	for _, step := range steps {
		if err := step(); err != nil {
			reg.Unsubscribe()
			return nil, err
		}
	}
	return reg, nil
}
