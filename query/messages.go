package query

import (
	"strings"

	commerce "github.com/goliatone/go-commerce"
)

const (
	TypeGetServerTime    = "commerce.query.time.get"
	TypeGetSpotPrice     = "commerce.query.price.spot"
	TypeGetExchangeRates = "commerce.query.exchange_rates.get"
	TypeGetAccount       = "commerce.query.account.get"
	TypeListAccounts     = "commerce.query.account.list"
	TypeGetOrder         = "commerce.query.order.get"
)

type GetServerTimeMessage struct{}

func (GetServerTimeMessage) Type() string { return TypeGetServerTime }

func (GetServerTimeMessage) Validate() error { return nil }

// GetSpotPriceMessage defaults to BTC-USD when no pair or currency is set.
type GetSpotPriceMessage struct {
	Params commerce.PriceParams
}

func (GetSpotPriceMessage) Type() string { return TypeGetSpotPrice }

func (GetSpotPriceMessage) Validate() error { return nil }

type GetExchangeRatesMessage struct {
	Currency string
}

func (GetExchangeRatesMessage) Type() string { return TypeGetExchangeRates }

func (GetExchangeRatesMessage) Validate() error { return nil }

type GetAccountMessage struct {
	AccountID string
}

func (GetAccountMessage) Type() string { return TypeGetAccount }

func (m GetAccountMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return queryValidationError("account_id", "account id is required")
	}
	return nil
}

type ListAccountsMessage struct {
	Options commerce.ListOptions
}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (m ListAccountsMessage) Validate() error {
	if m.Options.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if strings.TrimSpace(m.Options.StartingAfter) != "" && strings.TrimSpace(m.Options.EndingBefore) != "" {
		return queryValidationError("ending_before", "starting_after and ending_before are mutually exclusive")
	}
	return nil
}

type GetOrderMessage struct {
	OrderID string
}

func (GetOrderMessage) Type() string { return TypeGetOrder }

func (m GetOrderMessage) Validate() error {
	if strings.TrimSpace(m.OrderID) == "" {
		return queryValidationError("order_id", "order id is required")
	}
	return nil
}
