package explorer

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// SimulatedClient is an in-memory Client/PriceSource for tests.
// Program its tables directly, or set Err to make every call fail.
type SimulatedClient struct {
	SourceName string
	Err        error

	UTXOsByAddress   map[string][]UTXO
	TxByID           map[string]*TransactionDetails
	SummaryByAddress map[string]*AddressSummary
	MempoolByAddress map[string][]TransactionDetails
	TipHeight        int64
	Price            decimal.Decimal

	Calls int // total capability calls observed
}

func NewSimulatedClient(name string) *SimulatedClient {
	return &SimulatedClient{
		SourceName:       name,
		UTXOsByAddress:   make(map[string][]UTXO),
		TxByID:           make(map[string]*TransactionDetails),
		SummaryByAddress: make(map[string]*AddressSummary),
		MempoolByAddress: make(map[string][]TransactionDetails),
	}
}

func (c *SimulatedClient) Name() string { return c.SourceName }

func (c *SimulatedClient) FetchUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.UTXOsByAddress[address], nil
}

func (c *SimulatedClient) FetchTransaction(ctx context.Context, txid string) (*TransactionDetails, error) {
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.TxByID[txid], nil
}

func (c *SimulatedClient) FetchAddressSummary(ctx context.Context, address string) (*AddressSummary, error) {
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.SummaryByAddress[address], nil
}

func (c *SimulatedClient) FetchMempool(ctx context.Context, address string) ([]TransactionDetails, error) {
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	return c.MempoolByAddress[address], nil
}

func (c *SimulatedClient) FetchTipHeight(ctx context.Context) (int64, error) {
	c.Calls++
	if c.Err != nil {
		return 0, c.Err
	}
	return c.TipHeight, nil
}

func (c *SimulatedClient) FetchPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	c.Calls++
	if c.Err != nil {
		return decimal.Zero, c.Err
	}
	if c.Price.IsZero() {
		return decimal.Zero, errors.New("no price programmed")
	}
	return c.Price, nil
}
