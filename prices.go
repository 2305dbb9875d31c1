package commerce

import (
	"context"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const defaultCurrencyPair = "BTC-USD"

// PriceParams selects the currency pair of a price lookup. CurrencyPair wins
// over Currency, which is quoted against BTC. Date and Extra are forwarded
// as query parameters by GetSpotPrice only.
type PriceParams struct {
	CurrencyPair string
	Currency     string
	Date         string
	Extra        map[string]string
}

func (p PriceParams) pair() string {
	if pair := strings.TrimSpace(p.CurrencyPair); pair != "" {
		return strings.ToUpper(pair)
	}
	if currency := strings.TrimSpace(p.Currency); currency != "" {
		return "BTC-" + strings.ToUpper(currency)
	}
	return defaultCurrencyPair
}

func (p PriceParams) query() map[string]string {
	query := map[string]string{}
	for key, value := range p.Extra {
		switch strings.TrimSpace(key) {
		case "", "currencyPair", "currency_pair", "currency":
			continue
		}
		query[key] = value
	}
	if date := strings.TrimSpace(p.Date); date != "" {
		query["date"] = date
	}
	return query
}

func (c *Client) GetBuyPrice(ctx context.Context, params PriceParams) (Price, error) {
	return getOne[Price](ctx, c, apiRequest{path: "prices/" + params.pair() + "/buy", public: true})
}

func (c *Client) GetSellPrice(ctx context.Context, params PriceParams) (Price, error) {
	return getOne[Price](ctx, c, apiRequest{path: "prices/" + params.pair() + "/sell", public: true})
}

func (c *Client) GetSpotPrice(ctx context.Context, params PriceParams) (Price, error) {
	return getOne[Price](ctx, c, apiRequest{
		path:   "prices/" + params.pair() + "/spot",
		query:  params.query(),
		public: true,
	})
}

// Deprecated: the historic prices endpoint is no longer maintained upstream.
// Use GetSpotPrice with PriceParams.Date.
func (c *Client) GetHistoricPrices(ctx context.Context, params map[string]string) (HistoricPrices, error) {
	return getOne[HistoricPrices](ctx, c, apiRequest{path: "prices/historic", query: params, public: true})
}

// GetCurrencies lists the supported fiat currencies. Results are cached.
func (c *Client) GetCurrencies(ctx context.Context) ([]Currency, error) {
	return repositorycache.GetOrFetch(ctx, c.cache, c.cacheKey("currencies"), func(ctx context.Context) ([]Currency, error) {
		return getOne[[]Currency](ctx, c, apiRequest{path: "currencies", public: true})
	})
}

// GetExchangeRates returns rates against currency, or USD when empty.
// Results are cached per currency.
func (c *Client) GetExchangeRates(ctx context.Context, currency string) (ExchangeRates, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	query := map[string]string{}
	if currency != "" {
		query["currency"] = currency
	}
	return repositorycache.GetOrFetch(ctx, c.cache, c.cacheKey("exchange-rates:"+currency), func(ctx context.Context) (ExchangeRates, error) {
		return getOne[ExchangeRates](ctx, c, apiRequest{path: "exchange-rates", query: query, public: true})
	})
}

// InvalidateReferenceData drops cached currencies and the exchange rates of
// the given currencies, or of the default currency when none are given.
func (c *Client) InvalidateReferenceData(ctx context.Context, currencies ...string) error {
	if err := c.cache.Delete(ctx, c.cacheKey("currencies")); err != nil {
		return err
	}
	if len(currencies) == 0 {
		currencies = []string{""}
	}
	for _, currency := range currencies {
		key := c.cacheKey("exchange-rates:" + strings.ToUpper(strings.TrimSpace(currency)))
		if err := c.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) GetTime(ctx context.Context) (ServerTime, error) {
	return getOne[ServerTime](ctx, c, apiRequest{path: "time", public: true})
}

func (c *Client) cacheKey(name string) string {
	return "commerce:" + c.cacheKeys + ":" + name
}
