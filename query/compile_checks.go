package query

import (
	gocmd "github.com/goliatone/go-command"
	commerce "github.com/goliatone/go-commerce"
)

var (
	_ gocmd.Querier[GetServerTimeMessage, commerce.ServerTime]            = (*GetServerTimeQuery)(nil)
	_ gocmd.Querier[GetSpotPriceMessage, commerce.Price]                  = (*GetSpotPriceQuery)(nil)
	_ gocmd.Querier[GetExchangeRatesMessage, commerce.ExchangeRates]      = (*GetExchangeRatesQuery)(nil)
	_ gocmd.Querier[GetAccountMessage, commerce.Account]                  = (*GetAccountQuery)(nil)
	_ gocmd.Querier[ListAccountsMessage, commerce.Page[commerce.Account]] = (*ListAccountsQuery)(nil)
	_ gocmd.Querier[GetOrderMessage, commerce.Order]                      = (*GetOrderQuery)(nil)

	_ MarketDataReader = (*commerce.Client)(nil)
	_ AccountReader    = (*commerce.Client)(nil)
	_ OrderReader      = (*commerce.Client)(nil)
)
