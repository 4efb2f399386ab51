package explorer

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// CypherMainnetURL is BlockCypher's LTC mainnet base.
const CypherMainnetURL = "https://api.blockcypher.com/v1/ltc/main"

// CypherClient adapts the BlockCypher REST API.
// Free-tier tokens are heavily rate limited, so this source only makes
// sense behind a quota tracker.
type CypherClient struct {
	rest  *restClient
	token string
}

func NewCypherClient(baseURL string, token string, timeout time.Duration, limiter Limiter) *CypherClient {
	return &CypherClient{
		rest:  newRestClient("blockcypher", baseURL, timeout, limiter),
		token: token,
	}
}

func (c *CypherClient) Name() string { return c.rest.name }

// blockcypher wire shapes, kept private to this adapter

type cypherTxRef struct {
	TxHash        string `json:"tx_hash"`
	TxOutputN     int32  `json:"tx_output_n"`
	Value         int64  `json:"value"`
	Confirmations int64  `json:"confirmations"`
}

type cypherAddr struct {
	Address           string        `json:"address"`
	TotalReceived     int64         `json:"total_received"`
	NTx               int64         `json:"n_tx"`
	UnconfirmedNTx    int64         `json:"unconfirmed_n_tx"`
	TxRefs            []cypherTxRef `json:"txrefs"`
	UnconfirmedTxRefs []cypherTxRef `json:"unconfirmed_txrefs"`
}

type cypherTxIO struct {
	PrevHash    string   `json:"prev_hash"`
	OutputIndex uint32   `json:"output_index"`
	OutputValue int64    `json:"output_value"`
	Value       int64    `json:"value"`
	Addresses   []string `json:"addresses"`
}

type cypherTx struct {
	Hash          string       `json:"hash"`
	BlockHeight   int64        `json:"block_height"`
	Confirmations int64        `json:"confirmations"`
	Confirmed     time.Time    `json:"confirmed"`
	Inputs        []cypherTxIO `json:"inputs"`
	Outputs       []cypherTxIO `json:"outputs"`
}

func (c *CypherClient) path(p string, extra url.Values) string {
	q := url.Values{}
	if c.token != "" {
		q.Set("token", c.token)
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if len(q) == 0 {
		return p
	}
	return p + "?" + q.Encode()
}

func (c *CypherClient) fetchAddr(ctx context.Context, address string, unspentOnly bool) (*cypherAddr, error) {
	extra := url.Values{}
	if unspentOnly {
		extra.Set("unspentOnly", "true")
	}
	var raw cypherAddr
	if err := c.rest.getJSON(ctx, c.path("/addrs/"+address, extra), &raw); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &raw, nil
}

// FetchUTXOs returns unspent outputs, confirmed and unconfirmed.
func (c *CypherClient) FetchUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	raw, err := c.fetchAddr(ctx, address, true)
	if err != nil || raw == nil {
		return nil, err
	}

	var utxos []UTXO
	for _, ref := range raw.TxRefs {
		if ref.TxOutputN < 0 {
			continue // a spend reference, not an output
		}
		utxos = append(utxos, UTXO{
			TxID:          ref.TxHash,
			Vout:          uint32(ref.TxOutputN),
			Value:         ref.Value,
			Confirmations: ref.Confirmations,
			Confirmed:     ref.Confirmations > 0,
		})
	}
	for _, ref := range raw.UnconfirmedTxRefs {
		if ref.TxOutputN < 0 {
			continue
		}
		utxos = append(utxos, UTXO{
			TxID:      ref.TxHash,
			Vout:      uint32(ref.TxOutputN),
			Value:     ref.Value,
			Confirmed: false,
		})
	}
	return utxos, nil
}

// FetchTransaction returns one transaction, or (nil, nil) if unknown.
func (c *CypherClient) FetchTransaction(ctx context.Context, txid string) (*TransactionDetails, error) {
	var raw cypherTx
	if err := c.rest.getJSON(ctx, c.path("/txs/"+txid, nil), &raw); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}

	tx := &TransactionDetails{
		TxID:          raw.Hash,
		Confirmations: raw.Confirmations,
		BlockHeight:   raw.BlockHeight,
		BlockTime:     raw.Confirmed,
		InMempool:     raw.Confirmations == 0,
	}
	for _, in := range raw.Inputs {
		normalized := TxIn{
			PrevTxID: in.PrevHash,
			PrevVout: in.OutputIndex,
			Value:    in.OutputValue,
		}
		if len(in.Addresses) > 0 {
			normalized.PrevAddress = in.Addresses[0]
		}
		tx.Ins = append(tx.Ins, normalized)
	}
	for _, out := range raw.Outputs {
		normalized := TxOut{Value: out.Value}
		if len(out.Addresses) > 0 {
			normalized.Address = out.Addresses[0]
		}
		tx.Outs = append(tx.Outs, normalized)
	}
	return tx, nil
}

// FetchAddressSummary returns lifetime totals for an address.
func (c *CypherClient) FetchAddressSummary(ctx context.Context, address string) (*AddressSummary, error) {
	raw, err := c.fetchAddr(ctx, address, false)
	if err != nil || raw == nil {
		return nil, err
	}
	return &AddressSummary{
		Address:       address,
		TotalReceived: raw.TotalReceived,
		TxCount:       raw.NTx + raw.UnconfirmedNTx,
	}, nil
}

// FetchMempool returns unconfirmed activity on an address. BlockCypher
// exposes it as unconfirmed txrefs on the address itself, so the shape
// is thinner than the Esplora one: output-side references only.
func (c *CypherClient) FetchMempool(ctx context.Context, address string) ([]TransactionDetails, error) {
	raw, err := c.fetchAddr(ctx, address, false)
	if err != nil || raw == nil {
		return nil, err
	}

	byTx := make(map[string]*TransactionDetails)
	var order []string
	for _, ref := range raw.UnconfirmedTxRefs {
		if ref.TxOutputN < 0 {
			continue
		}
		tx, ok := byTx[ref.TxHash]
		if !ok {
			tx = &TransactionDetails{TxID: ref.TxHash, InMempool: true}
			byTx[ref.TxHash] = tx
			order = append(order, ref.TxHash)
		}
		tx.Outs = append(tx.Outs, TxOut{Address: address, Value: ref.Value})
	}

	txs := make([]TransactionDetails, 0, len(order))
	for _, hash := range order {
		txs = append(txs, *byTx[hash])
	}
	return txs, nil
}

// FetchTipHeight returns the current best block height.
func (c *CypherClient) FetchTipHeight(ctx context.Context) (int64, error) {
	var raw struct {
		Height int64 `json:"height"`
	}
	if err := c.rest.getJSON(ctx, c.path("", nil), &raw); err != nil {
		return 0, err
	}
	return raw.Height, nil
}
