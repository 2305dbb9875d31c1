package query

import (
	"context"

	commerce "github.com/goliatone/go-commerce"
)

type MarketDataReader interface {
	GetTime(ctx context.Context) (commerce.ServerTime, error)
	GetSpotPrice(ctx context.Context, params commerce.PriceParams) (commerce.Price, error)
	GetExchangeRates(ctx context.Context, currency string) (commerce.ExchangeRates, error)
}

type AccountReader interface {
	GetAccount(ctx context.Context, id string) (commerce.Account, error)
	GetAccounts(ctx context.Context, opts commerce.ListOptions) (commerce.Page[commerce.Account], error)
}

type OrderReader interface {
	GetOrder(ctx context.Context, id string) (commerce.Order, error)
}

type GetServerTimeQuery struct {
	reader MarketDataReader
}

func NewGetServerTimeQuery(reader MarketDataReader) *GetServerTimeQuery {
	return &GetServerTimeQuery{reader: reader}
}

func (q *GetServerTimeQuery) Query(ctx context.Context, _ GetServerTimeMessage) (commerce.ServerTime, error) {
	if q == nil || q.reader == nil {
		return commerce.ServerTime{}, queryDependencyError("query: market data reader is required")
	}
	return q.reader.GetTime(ctx)
}

type GetSpotPriceQuery struct {
	reader MarketDataReader
}

func NewGetSpotPriceQuery(reader MarketDataReader) *GetSpotPriceQuery {
	return &GetSpotPriceQuery{reader: reader}
}

func (q *GetSpotPriceQuery) Query(ctx context.Context, msg GetSpotPriceMessage) (commerce.Price, error) {
	if q == nil || q.reader == nil {
		return commerce.Price{}, queryDependencyError("query: market data reader is required")
	}
	return q.reader.GetSpotPrice(ctx, msg.Params)
}

type GetExchangeRatesQuery struct {
	reader MarketDataReader
}

func NewGetExchangeRatesQuery(reader MarketDataReader) *GetExchangeRatesQuery {
	return &GetExchangeRatesQuery{reader: reader}
}

func (q *GetExchangeRatesQuery) Query(ctx context.Context, msg GetExchangeRatesMessage) (commerce.ExchangeRates, error) {
	if q == nil || q.reader == nil {
		return commerce.ExchangeRates{}, queryDependencyError("query: market data reader is required")
	}
	return q.reader.GetExchangeRates(ctx, msg.Currency)
}

type GetAccountQuery struct {
	reader AccountReader
}

func NewGetAccountQuery(reader AccountReader) *GetAccountQuery {
	return &GetAccountQuery{reader: reader}
}

func (q *GetAccountQuery) Query(ctx context.Context, msg GetAccountMessage) (commerce.Account, error) {
	if q == nil || q.reader == nil {
		return commerce.Account{}, queryDependencyError("query: account reader is required")
	}
	if err := msg.Validate(); err != nil {
		return commerce.Account{}, err
	}
	return q.reader.GetAccount(ctx, msg.AccountID)
}

type ListAccountsQuery struct {
	reader AccountReader
}

func NewListAccountsQuery(reader AccountReader) *ListAccountsQuery {
	return &ListAccountsQuery{reader: reader}
}

func (q *ListAccountsQuery) Query(ctx context.Context, msg ListAccountsMessage) (commerce.Page[commerce.Account], error) {
	if q == nil || q.reader == nil {
		return commerce.Page[commerce.Account]{}, queryDependencyError("query: account reader is required")
	}
	if err := msg.Validate(); err != nil {
		return commerce.Page[commerce.Account]{}, err
	}
	return q.reader.GetAccounts(ctx, msg.Options)
}

type GetOrderQuery struct {
	reader OrderReader
}

func NewGetOrderQuery(reader OrderReader) *GetOrderQuery {
	return &GetOrderQuery{reader: reader}
}

func (q *GetOrderQuery) Query(ctx context.Context, msg GetOrderMessage) (commerce.Order, error) {
	if q == nil || q.reader == nil {
		return commerce.Order{}, queryDependencyError("query: order reader is required")
	}
	if err := msg.Validate(); err != nil {
		return commerce.Order{}, err
	}
	return q.reader.GetOrder(ctx, msg.OrderID)
}
