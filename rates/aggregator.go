/*
Package rates converts fiat prices into LTC amounts.

Multiple independent price sources are queried; failures are discarded
and the survivors averaged. When every source is down a configured
static fallback keeps the storefront quoting prices — availability over
accuracy, logged loudly so the operator notices.
*/
package rates

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/litepay-io/litepay-go/cache"
	"github.com/litepay-io/litepay-go/explorer"
	"github.com/litepay-io/litepay-go/ltcchain"
)

// DefaultCacheTTL bounds how often the sources get hammered.
const DefaultCacheTTL = 60 * time.Second

// Config for an Aggregator.
type Config struct {
	Sources  []explorer.PriceSource
	Fallback decimal.Decimal // static rate used when every source fails
	CacheTTL time.Duration   // 0 means DefaultCacheTTL
}

// Aggregator fetches, averages and caches spot prices.
type Aggregator struct {
	sources  []explorer.PriceSource
	fallback decimal.Decimal
	ttl      time.Duration
	cache    *cache.TTLCache
}

func NewAggregator(cfg *Config) *Aggregator {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Aggregator{
		sources:  cfg.Sources,
		fallback: cfg.Fallback,
		ttl:      ttl,
		cache:    cache.NewTTLCache(),
	}
}

// Rate returns the base/quote price, e.g. ("LTC", "USD") -> 83.15.
// The result is cached for the configured TTL.
func (a *Aggregator) Rate(ctx context.Context, base, quote string) decimal.Decimal {
	key := base + "/" + quote
	if cached, fresh := a.cache.Get(key); fresh {
		return cached.(decimal.Decimal)
	}

	var sum decimal.Decimal
	var hits int
	for _, source := range a.sources {
		price, err := source.FetchPrice(ctx, base, quote)
		if err != nil {
			logger.WithFields(logger.Fields{
				"source": source.Name(),
				"pair":   key,
			}).Warnf("price source failed: %v", err)
			continue
		}
		if price.Sign() <= 0 {
			logger.WithFields(logger.Fields{
				"source": source.Name(),
				"pair":   key,
			}).Warn("price source returned a non-positive quote, discarding")
			continue
		}
		sum = sum.Add(price)
		hits++
	}

	if hits == 0 {
		logger.WithFields(logger.Fields{
			"pair":     key,
			"fallback": a.fallback,
		}).Error("every price source failed, using static fallback rate")
		return a.fallback
	}

	mean := sum.Div(decimal.NewFromInt(int64(hits)))
	a.cache.Set(key, mean, a.ttl)
	return mean
}

// Convert turns a fiat amount into litoshi at the current LTC rate,
// rounding up so the storefront never undercharges by a base unit.
func (a *Aggregator) Convert(ctx context.Context, fiat decimal.Decimal, currency string) int64 {
	rate := a.Rate(ctx, "LTC", currency)
	if rate.Sign() <= 0 {
		return 0
	}
	litoshi := fiat.Div(rate).Mul(decimal.NewFromInt(ltcchain.LitoshiPerCoin))
	return litoshi.Ceil().IntPart()
}
