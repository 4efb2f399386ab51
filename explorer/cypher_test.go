package explorer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCypherFetchUTXOs(t *testing.T) {
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/addrs/"+testAddr, r.URL.Path)
		gotToken = r.URL.Query().Get("token")
		w.Write([]byte(`{
			"address":"` + testAddr + `",
			"txrefs":[
				{"tx_hash":"aa", "tx_output_n":0, "value":150000000, "confirmations":6},
				{"tx_hash":"aa", "tx_output_n":-1, "value":150000000, "confirmations":6}
			],
			"unconfirmed_txrefs":[
				{"tx_hash":"bb", "tx_output_n":1, "value":5000, "confirmations":0}
			]
		}`))
	}))
	defer server.Close()

	client := NewCypherClient(server.URL, "sekrit", 0, nil)
	utxos, err := client.FetchUTXOs(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, "sekrit", gotToken)

	// the spend reference (tx_output_n = -1) is dropped
	require.Len(t, utxos, 2)
	assert.Equal(t, UTXO{TxID: "aa", Vout: 0, Value: 150000000, Confirmations: 6, Confirmed: true}, utxos[0])
	assert.Equal(t, UTXO{TxID: "bb", Vout: 1, Value: 5000, Confirmations: 0, Confirmed: false}, utxos[1])
}

func TestCypherFetchMempoolGroupsByTx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"address":"` + testAddr + `",
			"unconfirmed_txrefs":[
				{"tx_hash":"cc", "tx_output_n":0, "value":100},
				{"tx_hash":"cc", "tx_output_n":1, "value":200},
				{"tx_hash":"dd", "tx_output_n":0, "value":300}
			]
		}`))
	}))
	defer server.Close()

	client := NewCypherClient(server.URL, "", 0, nil)
	txs, err := client.FetchMempool(context.Background(), testAddr)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "cc", txs[0].TxID)
	assert.Equal(t, int64(300), txs[0].PaidTo(testAddr))
	assert.Equal(t, "dd", txs[1].TxID)
}

func TestCypherFetchTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/txs/aa", r.URL.Path)
		w.Write([]byte(`{
			"hash":"aa",
			"block_height":2999,
			"confirmations":2,
			"inputs":[{"prev_hash":"00", "output_index":1, "output_value":200000000, "addresses":["ltc1qsender"]}],
			"outputs":[{"value":150000000, "addresses":["` + testAddr + `"]}]
		}`))
	}))
	defer server.Close()

	client := NewCypherClient(server.URL, "", 0, nil)
	tx, err := client.FetchTransaction(context.Background(), "aa")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, int64(2), tx.Confirmations)
	assert.False(t, tx.InMempool)
	assert.Equal(t, int64(150000000), tx.PaidTo(testAddr))
	assert.Equal(t, "ltc1qsender", tx.Ins[0].PrevAddress)
}

func TestCypherUnknownAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewCypherClient(server.URL, "", 0, nil)
	utxos, err := client.FetchUTXOs(context.Background(), testAddr)
	assert.NoError(t, err)
	assert.Nil(t, utxos)
}

func TestGeckoFetchPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/simple/price", r.URL.Path)
		require.Equal(t, "litecoin", r.URL.Query().Get("ids"))
		require.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"litecoin":{"usd":84.31}}`))
	}))
	defer server.Close()

	client := NewGeckoClient(server.URL, 0, nil)
	price, err := client.FetchPrice(context.Background(), "LTC", "USD")
	require.NoError(t, err)
	assert.Equal(t, "84.31", price.String())

	_, err = client.FetchPrice(context.Background(), "DOGE", "USD")
	assert.Error(t, err)
}
