package verify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litepay-io/litepay-go/explorer"
	"github.com/litepay-io/litepay-go/ltcchain"
	"github.com/litepay-io/litepay-go/mempool"
)

var (
	txidA = strings.Repeat("aa", 32)
	txidB = strings.Repeat("bb", 32)
)

// payAddr builds a real bech32 address so the validator passes.
func payAddr(t *testing.T) string {
	hash := []byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
		0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14,
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(hash, &ltcchain.MainNetParams)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

type engineFixture struct {
	engine  *Engine
	clients []*explorer.SimulatedClient
	ledger  *SimulatedLedgerStorage
	tracker *mempool.Tracker
}

func newEngineFixture(t *testing.T, clientCount int) *engineFixture {
	f := &engineFixture{ledger: NewSimulatedLedgerStorage()}
	var clients []explorer.Client
	for i := 0; i < clientCount; i++ {
		c := explorer.NewSimulatedClient("sim" + string(rune('a'+i)))
		f.clients = append(f.clients, c)
		clients = append(clients, c)
	}
	f.tracker = mempool.NewTracker(&mempool.Config{Client: f.clients[0]})

	engine, err := NewEngine(&Config{
		Clients:   clients,
		Validator: ltcchain.NewValidator(&ltcchain.MainNetParams),
		Ledger:    f.ledger,
		Mempool:   f.tracker,
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func TestVerifyAcceptsConfirmedPayment(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	f.clients[0].UTXOsByAddress[addr] = []explorer.UTXO{
		{TxID: txidA, Vout: 0, Value: 150000000, Confirmations: 8, Confirmed: true},
	}

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
	assert.Equal(t, StatusAccepted, verdict.Status)
	assert.Equal(t, int64(150000000), verdict.ConfirmedBalance)
	assert.Equal(t, []string{"sima"}, verdict.Sources)

	// the relied-on output landed in the ledger
	recorded, err := f.ledger.QueryByAddress(addr)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, txidA, recorded[0].TxID)
}

func TestVerifySumsMultipleUTXOs(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	// two deposits of 4 and 6 LTC settle a 10 LTC order exactly
	f.clients[0].UTXOsByAddress[addr] = []explorer.UTXO{
		{TxID: txidA, Vout: 0, Value: 400000000, Confirmations: 9, Confirmed: true},
		{TxID: txidB, Vout: 1, Value: 600000000, Confirmations: 7, Confirmed: true},
	}

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 1000000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
	assert.Equal(t, StatusAccepted, verdict.Status)
	assert.Equal(t, int64(1000000000), verdict.ConfirmedBalance)
	assert.Equal(t, 2, verdict.UTXOCount)

	// both relied-on outputs land in the ledger
	recorded, err := f.ledger.QueryByAddress(addr)
	require.NoError(t, err)
	require.Len(t, recorded, 2)
	seen := map[string]int64{}
	for _, u := range recorded {
		seen[u.TxID] = u.Value
	}
	assert.Equal(t, int64(400000000), seen[txidA])
	assert.Equal(t, int64(600000000), seen[txidB])
}

func TestVerifyOverpaymentAccepted(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	f.clients[0].UTXOsByAddress[addr] = []explorer.UTXO{
		{TxID: txidA, Vout: 0, Value: 200000000, Confirmations: 10, Confirmed: true},
	}

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
}

func TestVerifyPendingUnderConfirmationPolicy(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	// 5 confirmations under a 6-confirmation policy is still unconfirmed
	f.clients[0].UTXOsByAddress[addr] = []explorer.UTXO{
		{TxID: txidA, Vout: 0, Value: 150000000, Confirmations: 5, Confirmed: true},
	}

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	assert.False(t, verdict.Accepted)
	assert.Equal(t, StatusPending, verdict.Status)
	assert.Equal(t, int64(150000000), verdict.UnconfirmedBalance)

	// without the confirmation requirement the same funds are accepted
	verdict, err = f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{})
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
	assert.NotEmpty(t, verdict.Detail)
}

func TestVerifyHighConfidenceTier(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	f.clients[0].UTXOsByAddress[addr] = []explorer.UTXO{
		{TxID: txidA, Vout: 0, Value: 150000000, Confirmations: 8, Confirmed: true},
	}

	// 8 confirmations pass the default tier but not the strict one
	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000,
		Options{RequireConfirmations: true, HighConfidence: true})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, verdict.Status)
}

func TestVerifyRejectsInsufficientFunds(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	f.clients[0].UTXOsByAddress[addr] = []explorer.UTXO{
		{TxID: txidA, Vout: 0, Value: 100, Confirmations: 10, Confirmed: true},
	}

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	assert.False(t, verdict.Accepted)
	assert.Equal(t, StatusRejected, verdict.Status)

	// nothing partial lands in the ledger
	recorded, err := f.ledger.QueryByAddress(addr)
	require.NoError(t, err)
	assert.Empty(t, recorded)
}

func TestVerifyRejectsEmptyAddress(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, verdict.Status)
}

func TestVerifyFallsBackToSecondSource(t *testing.T) {
	f := newEngineFixture(t, 2)
	addr := payAddr(t)
	f.clients[0].Err = errors.New("explorer down")
	f.clients[1].UTXOsByAddress[addr] = []explorer.UTXO{
		{TxID: txidA, Vout: 0, Value: 150000000, Confirmations: 8, Confirmed: true},
	}

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
	assert.Equal(t, []string{"simb"}, verdict.Sources)
}

func TestVerifyIndeterminateWhenAllSourcesFail(t *testing.T) {
	f := newEngineFixture(t, 2)
	addr := payAddr(t)
	f.clients[0].Err = errors.New("down")
	f.clients[1].Err = errors.New("also down")

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{})
	require.NoError(t, err)
	assert.False(t, verdict.Accepted)
	assert.Equal(t, StatusIndeterminate, verdict.Status)
	assert.Contains(t, verdict.Detail, "all explorer sources failed")
}

func TestVerifyDoubleSpendSuspicion(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	f.clients[0].UTXOsByAddress[addr] = []explorer.UTXO{
		{TxID: txidA, Vout: 0, Value: 150000000, Confirmations: 8, Confirmed: true},
	}

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	require.True(t, verdict.Accepted)

	// the relied-on output vanishes without a recorded spend
	f.clients[0].UTXOsByAddress[addr] = []explorer.UTXO{
		{TxID: txidB, Vout: 0, Value: 150000000, Confirmations: 1, Confirmed: true},
	}

	verdict, err = f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	assert.Equal(t, StatusDoubleSpendSuspected, verdict.Status)
	assert.Contains(t, verdict.Detail, txidA)
}

func TestVerifyMarkSpentClearsSuspicion(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	f.clients[0].UTXOsByAddress[addr] = []explorer.UTXO{
		{TxID: txidA, Vout: 0, Value: 150000000, Confirmations: 8, Confirmed: true},
	}

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	require.True(t, verdict.Accepted)

	// the operator swept the funds and says so
	require.NoError(t, f.engine.MarkSpent(addr, txidA, 0))
	f.clients[0].UTXOsByAddress[addr] = nil

	verdict, err = f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, verdict.Status)
}

func TestVerifyExcludesFlappingOutputs(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)

	// first fetch shows the output, the immediate re-fetch does not
	flapper := &flappingClient{
		name: "flap",
		responses: [][]explorer.UTXO{
			{{TxID: txidA, Vout: 0, Value: 150000000, Confirmations: 8, Confirmed: true}},
			nil,
		},
	}
	engine, err := NewEngine(&Config{
		Clients:   []explorer.Client{flapper},
		Validator: ltcchain.NewValidator(&ltcchain.MainNetParams),
		Ledger:    f.ledger,
	})
	require.NoError(t, err)

	verdict, err := engine.VerifyPayment(context.Background(), addr, 150000000, Options{RequireConfirmations: true})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, verdict.Status)
}

func TestVerifyPendingViaMempoolView(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	// the explorer has not indexed anything yet, but the local mempool
	// view already saw the payment
	f.tracker.Track(addr)
	f.tracker.Observe(&explorer.TransactionDetails{
		TxID:      txidA,
		Outs:      []explorer.TxOut{{Address: addr, Value: 150000000}},
		InMempool: true,
	})

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000, Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, verdict.Status)
}

func TestVerifyInputValidation(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)

	_, err := f.engine.VerifyPayment(context.Background(), addr, 0, Options{})
	assert.ErrorIs(t, err, ErrBadExpectedAmount)
	_, err = f.engine.VerifyPayment(context.Background(), addr, -5, Options{})
	assert.ErrorIs(t, err, ErrBadExpectedAmount)

	_, err = f.engine.VerifyPayment(context.Background(), "garbage", 100, Options{})
	assert.ErrorIs(t, err, ltcchain.ErrInvalidAddress)
	assert.Equal(t, 0, f.clients[0].Calls, "validation failures must not spend network calls")
}

func TestVerifyByTxID(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	f.clients[0].TxByID[txidA] = &explorer.TransactionDetails{
		TxID:          txidA,
		Outs:          []explorer.TxOut{{Address: addr, Value: 150000000}},
		Confirmations: 8,
	}

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000,
		Options{TxID: txidA, RequireConfirmations: true})
	require.NoError(t, err)
	assert.True(t, verdict.Accepted)
	assert.Equal(t, int64(8), verdict.Confirmations)
	assert.Equal(t, int64(150000000), verdict.ConfirmedBalance)

	recorded, err := f.ledger.QueryByAddress(addr)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
}

func TestVerifyByTxIDPendingAndUnderpaid(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)
	f.clients[0].TxByID[txidA] = &explorer.TransactionDetails{
		TxID:          txidA,
		Outs:          []explorer.TxOut{{Address: addr, Value: 150000000}},
		Confirmations: 2,
	}

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 150000000,
		Options{TxID: txidA, RequireConfirmations: true})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, verdict.Status)

	// underpaying rejects regardless of confirmations
	verdict, err = f.engine.VerifyPayment(context.Background(), addr, 200000000,
		Options{TxID: txidA})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, verdict.Status)
}

func TestVerifyByTxIDNotFound(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)

	verdict, err := f.engine.VerifyPayment(context.Background(), addr, 100, Options{TxID: txidB})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, verdict.Status)
	assert.Equal(t, "transaction not found", verdict.Detail)
}

func TestVerifyByTxIDMalformed(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)

	_, err := f.engine.VerifyPayment(context.Background(), addr, 100, Options{TxID: "zz-not-hex"})
	assert.ErrorIs(t, err, ErrInvalidTxID)
	assert.Equal(t, 0, f.clients[0].Calls)
}

func TestAddressSnapshot(t *testing.T) {
	f := newEngineFixture(t, 2)
	addr := payAddr(t)
	f.clients[0].Err = errors.New("explorer down")
	f.clients[1].SummaryByAddress[addr] = &explorer.AddressSummary{
		Address:       addr,
		TotalReceived: 300000000,
		TxCount:       4,
	}

	// the failed primary is skipped, the second source answers
	summary, err := f.engine.AddressSnapshot(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, int64(300000000), summary.TotalReceived)
	assert.Equal(t, int64(4), summary.TxCount)
}

func TestAddressSnapshotUnknownAddress(t *testing.T) {
	f := newEngineFixture(t, 1)
	addr := payAddr(t)

	// a source that answers but has no history reports zero, not failure
	summary, err := f.engine.AddressSnapshot(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, addr, summary.Address)
	assert.Equal(t, int64(0), summary.TotalReceived)
}

func TestAddressSnapshotAllSourcesFail(t *testing.T) {
	f := newEngineFixture(t, 2)
	addr := payAddr(t)
	f.clients[0].Err = errors.New("down")
	f.clients[1].Err = errors.New("also down")

	_, err := f.engine.AddressSnapshot(context.Background(), addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all explorer sources failed")
}

func TestAddressSnapshotValidatesAddress(t *testing.T) {
	f := newEngineFixture(t, 1)

	_, err := f.engine.AddressSnapshot(context.Background(), "garbage")
	assert.ErrorIs(t, err, ltcchain.ErrInvalidAddress)
	assert.Equal(t, 0, f.clients[0].Calls)
}

// flappingClient returns a different canned UTXO set per call.
type flappingClient struct {
	name      string
	responses [][]explorer.UTXO
	calls     int
}

func (c *flappingClient) Name() string { return c.name }

func (c *flappingClient) FetchUTXOs(ctx context.Context, address string) ([]explorer.UTXO, error) {
	i := c.calls
	c.calls++
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return c.responses[i], nil
}

func (c *flappingClient) FetchTransaction(ctx context.Context, txid string) (*explorer.TransactionDetails, error) {
	return nil, nil
}

func (c *flappingClient) FetchAddressSummary(ctx context.Context, address string) (*explorer.AddressSummary, error) {
	return nil, nil
}

func (c *flappingClient) FetchMempool(ctx context.Context, address string) ([]explorer.TransactionDetails, error) {
	return nil, nil
}

func (c *flappingClient) FetchTipHeight(ctx context.Context) (int64, error) {
	return 0, nil
}
