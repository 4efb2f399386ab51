package explorer

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrQuotaExhausted means this source's daily budget is used up.
	// Callers treat it as a soft, per-source failure.
	ErrQuotaExhausted = errors.New("explorer source quota exhausted")
)

// Limiter gates outbound calls per source. Satisfied by quota.Tracker.
type Limiter interface {
	TryConsume(source string) bool
}

// Client is the capability set every explorer adapter implements.
// Every call carries its own timeout (through ctx plus the adapter's
// HTTP client) and fails in isolation from other sources.
type Client interface {
	// Name identifies the source, also used as the quota key.
	Name() string

	// FetchUTXOs returns the current unspent outputs of an address.
	FetchUTXOs(ctx context.Context, address string) ([]UTXO, error)

	// FetchTransaction returns details of one transaction,
	// or (nil, nil) when the source does not know it.
	FetchTransaction(ctx context.Context, txid string) (*TransactionDetails, error)

	// FetchAddressSummary returns lifetime totals for an address.
	FetchAddressSummary(ctx context.Context, address string) (*AddressSummary, error)

	// FetchMempool returns the unconfirmed transactions touching an
	// address. Best effort; may be partial.
	FetchMempool(ctx context.Context, address string) ([]TransactionDetails, error)

	// FetchTipHeight returns the current best block height.
	FetchTipHeight(ctx context.Context) (int64, error)
}

// PriceSource fetches a spot price, e.g. ("LTC", "USD").
// Conceptually a separate capability from Client, but adapters share
// the HTTP and quota machinery.
type PriceSource interface {
	Name() string
	FetchPrice(ctx context.Context, base, quote string) (decimal.Decimal, error)
}

// unlimited is the Limiter used when none is configured.
type unlimited struct{}

func (unlimited) TryConsume(string) bool { return true }
