package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GeckoURL is the CoinGecko simple-price API base.
const GeckoURL = "https://api.coingecko.com/api/v3"

// geckoIDs maps ticker symbols to CoinGecko asset ids.
var geckoIDs = map[string]string{
	"LTC": "litecoin",
	"BTC": "bitcoin",
}

// GeckoClient is a PriceSource backed by CoinGecko.
type GeckoClient struct {
	rest *restClient
}

func NewGeckoClient(baseURL string, timeout time.Duration, limiter Limiter) *GeckoClient {
	return &GeckoClient{rest: newRestClient("coingecko", baseURL, timeout, limiter)}
}

func (c *GeckoClient) Name() string { return c.rest.name }

// FetchPrice quotes base in quote, e.g. ("LTC", "USD").
func (c *GeckoClient) FetchPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	id, ok := geckoIDs[strings.ToUpper(base)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s has no asset id for %s", c.Name(), base)
	}
	vs := strings.ToLower(quote)

	path := fmt.Sprintf("/simple/price?ids=%s&vs_currencies=%s", id, vs)
	var raw map[string]map[string]json.Number
	if err := c.rest.getJSON(ctx, path, &raw); err != nil {
		return decimal.Zero, err
	}

	num, ok := raw[id][vs]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s returned no %s/%s quote", c.Name(), base, quote)
	}
	price, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed price from %s: %v", c.Name(), err)
	}
	return price, nil
}
