package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Public litecoinspace (mempool.space fork for LTC) endpoints.
const (
	SpaceMainnetURL = "https://litecoinspace.org/api"
	SpaceTestnetURL = "https://litecoinspace.org/testnet/api"
)

// SpaceClient adapts the litecoinspace.org Esplora-style REST API.
type SpaceClient struct {
	rest *restClient
}

// NewSpaceClient builds the adapter. Pass timeout 0 for the default
// and limiter nil for unlimited.
func NewSpaceClient(baseURL string, timeout time.Duration, limiter Limiter) *SpaceClient {
	return &SpaceClient{rest: newRestClient("litecoinspace", baseURL, timeout, limiter)}
}

func (c *SpaceClient) Name() string { return c.rest.name }

// esplora wire shapes, kept private to this adapter

type spaceTxStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
	BlockTime   int64 `json:"block_time"`
}

type spaceUTXO struct {
	TxID   string        `json:"txid"`
	Vout   uint32        `json:"vout"`
	Value  int64         `json:"value"`
	Status spaceTxStatus `json:"status"`
}

type spaceVout struct {
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

type spaceVin struct {
	TxID    string    `json:"txid"`
	Vout    uint32    `json:"vout"`
	Prevout spaceVout `json:"prevout"`
}

type spaceTx struct {
	TxID   string        `json:"txid"`
	Vin    []spaceVin    `json:"vin"`
	Vout   []spaceVout   `json:"vout"`
	Status spaceTxStatus `json:"status"`
}

type spaceAddrStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	SpentTxoSum  int64 `json:"spent_txo_sum"`
	TxCount      int64 `json:"tx_count"`
}

type spaceAddr struct {
	Address      string         `json:"address"`
	ChainStats   spaceAddrStats `json:"chain_stats"`
	MempoolStats spaceAddrStats `json:"mempool_stats"`
}

// FetchTipHeight returns the current best block height.
func (c *SpaceClient) FetchTipHeight(ctx context.Context) (int64, error) {
	body, err := c.rest.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}
	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed tip height from %s: %v", c.Name(), err)
	}
	return height, nil
}

// FetchUTXOs returns the unspent outputs of an address.
// Confirmations are computed against the current tip:
// tip - block_height + 1 for mined outputs, 0 for mempool ones.
func (c *SpaceClient) FetchUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var raw []spaceUTXO
	if err := c.rest.getJSON(ctx, "/address/"+address+"/utxo", &raw); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil // unknown address, not an error
		}
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}

	tip, err := c.FetchTipHeight(ctx)
	if err != nil {
		return nil, err
	}

	utxos := make([]UTXO, 0, len(raw))
	for _, u := range raw {
		utxos = append(utxos, UTXO{
			TxID:          u.TxID,
			Vout:          u.Vout,
			Value:         u.Value,
			Confirmations: confirmationsAt(tip, u.Status),
			Confirmed:     u.Status.Confirmed,
		})
	}
	return utxos, nil
}

// FetchTransaction returns one transaction, or (nil, nil) if unknown.
func (c *SpaceClient) FetchTransaction(ctx context.Context, txid string) (*TransactionDetails, error) {
	var raw spaceTx
	if err := c.rest.getJSON(ctx, "/tx/"+txid, &raw); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var tip int64
	if raw.Status.Confirmed {
		var err error
		tip, err = c.FetchTipHeight(ctx)
		if err != nil {
			return nil, err
		}
	}

	return c.normalizeTx(&raw, tip), nil
}

// FetchAddressSummary returns lifetime totals for an address.
func (c *SpaceClient) FetchAddressSummary(ctx context.Context, address string) (*AddressSummary, error) {
	var raw spaceAddr
	if err := c.rest.getJSON(ctx, "/address/"+address, &raw); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &AddressSummary{
		Address:       address,
		TotalReceived: raw.ChainStats.FundedTxoSum,
		TxCount:       raw.ChainStats.TxCount + raw.MempoolStats.TxCount,
	}, nil
}

// FetchMempool returns the unconfirmed transactions touching an address.
func (c *SpaceClient) FetchMempool(ctx context.Context, address string) ([]TransactionDetails, error) {
	var raw []spaceTx
	if err := c.rest.getJSON(ctx, "/address/"+address+"/txs/mempool", &raw); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}

	txs := make([]TransactionDetails, 0, len(raw))
	for i := range raw {
		txs = append(txs, *c.normalizeTx(&raw[i], 0))
	}
	return txs, nil
}

// FetchPrice implements PriceSource via the /v1/prices endpoint,
// which quotes the native coin in several fiat currencies.
func (c *SpaceClient) FetchPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	if !strings.EqualFold(base, "LTC") {
		return decimal.Zero, fmt.Errorf("%s only quotes LTC, not %s", c.Name(), base)
	}

	var raw map[string]json.Number
	if err := c.rest.getJSON(ctx, "/v1/prices", &raw); err != nil {
		return decimal.Zero, err
	}

	num, ok := raw[strings.ToUpper(quote)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s has no %s quote", c.Name(), quote)
	}
	price, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed price from %s: %v", c.Name(), err)
	}
	return price, nil
}

func (c *SpaceClient) normalizeTx(raw *spaceTx, tip int64) *TransactionDetails {
	tx := &TransactionDetails{
		TxID:          raw.TxID,
		Confirmations: confirmationsAt(tip, raw.Status),
		BlockHeight:   raw.Status.BlockHeight,
		InMempool:     !raw.Status.Confirmed,
	}
	if raw.Status.BlockTime > 0 {
		tx.BlockTime = time.Unix(raw.Status.BlockTime, 0)
	}
	for _, in := range raw.Vin {
		tx.Ins = append(tx.Ins, TxIn{
			PrevTxID:    in.TxID,
			PrevVout:    in.Vout,
			PrevAddress: in.Prevout.ScriptPubKeyAddress,
			Value:       in.Prevout.Value,
		})
	}
	for _, out := range raw.Vout {
		tx.Outs = append(tx.Outs, TxOut{
			Address: out.ScriptPubKeyAddress,
			Value:   out.Value,
		})
	}
	return tx
}

func confirmationsAt(tip int64, status spaceTxStatus) int64 {
	if !status.Confirmed || tip <= 0 || status.BlockHeight <= 0 || tip < status.BlockHeight {
		return 0
	}
	return tip - status.BlockHeight + 1
}
