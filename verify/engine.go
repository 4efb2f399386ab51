/*
Package verify decides whether a payment has arrived.

The engine combines UTXO sets from one or more untrusted explorer
sources, a confirmation policy, and a seen-UTXO ledger (double-spend
detection) into a single verdict. Verification is idempotent: it never
credits anything itself; acting on an accepted verdict, and deduping
two simultaneous accepted verdicts for one payment, is the caller's
contractual obligation.
*/
package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	logger "github.com/sirupsen/logrus"

	"github.com/litepay-io/litepay-go/explorer"
	"github.com/litepay-io/litepay-go/ltcchain"
	"github.com/litepay-io/litepay-go/mempool"
)

const (
	// DefaultMinConfirmations is the settlement policy.
	DefaultMinConfirmations int64 = 6

	// DefaultHighConfidence is the stricter tier for large orders.
	DefaultHighConfidence int64 = 12
)

var (
	// ErrInvalidTxID is returned for a malformed transaction id
	// before any network call is spent.
	ErrInvalidTxID = errors.New("invalid transaction id")

	// ErrBadExpectedAmount is returned for a non-positive expected
	// amount; a programmer error, not a verdict.
	ErrBadExpectedAmount = errors.New("expected amount must be positive")
)

// Status classifies a verdict.
type Status string

const (
	// StatusAccepted: sufficient funds under the requested policy.
	StatusAccepted Status = "accepted"

	// StatusPending: funds seen but not yet confirmed deeply enough.
	StatusPending Status = "pending"

	// StatusRejected: the sources answered and the funds are not there.
	StatusRejected Status = "rejected"

	// StatusIndeterminate: every source failed; "could not check" is
	// NOT "payment not present" and callers must treat it differently.
	StatusIndeterminate Status = "indeterminate"

	// StatusDoubleSpendSuspected: an output a previous accepted
	// verdict relied on vanished without a caller-recorded spend.
	// Escalate, do not silently retry.
	StatusDoubleSpendSuspected Status = "double_spend_suspected"
)

// Options tune one verification call.
type Options struct {
	// RequireConfirmations gates acceptance on confirmed balance only
	// (final settlement). When false, unconfirmed funds count, and the
	// verdict records the split for the caller's risk policy.
	RequireConfirmations bool

	// TxID narrows the check to a single transaction instead of the
	// whole address balance.
	TxID string

	// HighConfidence applies the stricter confirmation tier.
	HighConfidence bool
}

// Verdict is the outcome of one verification call.
type Verdict struct {
	Accepted           bool
	Status             Status
	ConfirmedBalance   int64 // litoshi
	UnconfirmedBalance int64 // litoshi
	UTXOCount          int
	Confirmations      int64    // txid path only
	Sources            []string // sources that answered
	Detail             string
}

// Config for an Engine.
type Config struct {
	Clients          []explorer.Client
	Validator        *ltcchain.Validator
	Ledger           LedgerStorage
	Mempool          *mempool.Tracker // optional fast-notice view
	MinConfirmations int64            // 0 means DefaultMinConfirmations
	HighConfidence   int64            // 0 means DefaultHighConfidence
}

// Engine verifies payments. Safe for concurrent use; calls for
// different addresses need no coordination.
type Engine struct {
	clients   []explorer.Client
	validator *ltcchain.Validator
	ledger    LedgerStorage
	mempool   *mempool.Tracker
	minConf   int64
	highConf  int64

	// now is swappable in tests
	now func() time.Time
}

func NewEngine(cfg *Config) (*Engine, error) {
	if len(cfg.Clients) == 0 {
		return nil, errors.New("verify: at least one explorer client required")
	}
	if cfg.Validator == nil {
		return nil, errors.New("verify: validator required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("verify: ledger storage required")
	}
	minConf := cfg.MinConfirmations
	if minConf <= 0 {
		minConf = DefaultMinConfirmations
	}
	highConf := cfg.HighConfidence
	if highConf <= 0 {
		highConf = DefaultHighConfidence
	}
	return &Engine{
		clients:   cfg.Clients,
		validator: cfg.Validator,
		ledger:    cfg.Ledger,
		mempool:   cfg.Mempool,
		minConf:   minConf,
		highConf:  highConf,
	}, nil
}

func (e *Engine) policy(opts Options) int64 {
	if opts.HighConfidence {
		return e.highConf
	}
	return e.minConf
}

// VerifyPayment checks whether at least expected litoshi have arrived
// at address under the given options.
//
// A malformed address or non-positive amount returns a Go error (no
// network call is spent). Every other outcome, including "all sources
// down", is expressed in the Verdict.
func (e *Engine) VerifyPayment(ctx context.Context, address string, expected int64, opts Options) (*Verdict, error) {
	if expected <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadExpectedAmount, expected)
	}
	if _, err := e.validator.Decode(address); err != nil {
		return nil, err
	}

	if opts.TxID != "" {
		return e.verifyByTxID(ctx, address, expected, opts)
	}
	return e.verifyByAddress(ctx, address, expected, opts)
}

// verifyByAddress is the UTXO-set balance check.
func (e *Engine) verifyByAddress(ctx context.Context, address string, expected int64, opts Options) (*Verdict, error) {
	utxos, source, err := e.fetchStableUTXOs(ctx, address)
	if err != nil {
		return e.indeterminate(err), nil
	}

	// ledger comparison: every output a prior accepted verdict relied
	// on must still be present (or spent by the caller)
	if suspect, missing := e.checkLedger(address, utxos); suspect {
		logger.WithFields(logger.Fields{
			"address": address,
			"missing": missing,
			"source":  source,
		}).Error("previously accepted UTXO vanished, suspecting double-spend")
		return &Verdict{
			Status:  StatusDoubleSpendSuspected,
			Sources: []string{source},
			Detail:  fmt.Sprintf("previously seen output %s no longer in UTXO set", missing),
		}, nil
	}

	minConf := e.policy(opts)
	snap := explorer.Snapshot(address, utxos, minConf, e.nowTime())

	verdict := &Verdict{
		ConfirmedBalance:   snap.ConfirmedTotal,
		UnconfirmedBalance: snap.UnconfirmedTotal,
		UTXOCount:          snap.UTXOCount,
		Sources:            []string{source},
	}

	switch {
	case snap.ConfirmedTotal >= expected:
		verdict.Accepted = true
		verdict.Status = StatusAccepted
	case !opts.RequireConfirmations && snap.ConfirmedTotal+snap.UnconfirmedTotal >= expected:
		verdict.Accepted = true
		verdict.Status = StatusAccepted
		verdict.Detail = fmt.Sprintf("%s of the accepted balance is unconfirmed", ltcchain.FormatAmount(snap.UnconfirmedTotal))
	case snap.ConfirmedTotal+snap.UnconfirmedTotal >= expected:
		verdict.Status = StatusPending
		verdict.Detail = "sufficient funds seen, awaiting confirmations"
	default:
		verdict.Status = StatusRejected
		if e.mempool != nil && snap.UnconfirmedTotal == 0 {
			if entries := e.mempool.UnconfirmedFor(address); len(entries) > 0 {
				verdict.Status = StatusPending
				verdict.Detail = "payment seen in local mempool view, not yet indexed by explorer"
			}
		}
	}

	if verdict.Accepted {
		e.recordReliedUTXOs(address, utxos, minConf, opts.RequireConfirmations)
	}
	return verdict, nil
}

// fetchStableUTXOs asks the sources in order, takes the first answer
// and re-fetches once from the same source, keeping only outputs
// present both times. Stale or flapping data never gets credited.
func (e *Engine) fetchStableUTXOs(ctx context.Context, address string) ([]explorer.UTXO, string, error) {
	var failures []string
	for _, client := range e.clients {
		first, err := client.FetchUTXOs(ctx, address)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", client.Name(), err))
			continue
		}
		if len(first) == 0 {
			return nil, client.Name(), nil
		}

		second, err := client.FetchUTXOs(ctx, address)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", client.Name(), err))
			continue
		}

		present := make(map[string]bool, len(second))
		for _, u := range second {
			present[utxoKey(u.TxID, u.Vout)] = true
		}
		stable := make([]explorer.UTXO, 0, len(first))
		for _, u := range first {
			if present[utxoKey(u.TxID, u.Vout)] {
				stable = append(stable, u)
			} else {
				logger.WithFields(logger.Fields{
					"address": address,
					"txid":    u.TxID,
					"vout":    u.Vout,
					"source":  client.Name(),
				}).Warn("output disappeared between fetches, excluding")
			}
		}
		return stable, client.Name(), nil
	}
	return nil, "", fmt.Errorf("all explorer sources failed: %s", strings.Join(failures, "; "))
}

// checkLedger returns whether any recorded, unspent output is missing
// from the current set.
func (e *Engine) checkLedger(address string, utxos []explorer.UTXO) (bool, string) {
	recorded, err := e.ledger.QueryByAddress(address)
	if err != nil {
		logger.WithField("address", address).Warnf("failed to load seen-utxo ledger: %v", err)
		return false, ""
	}
	if len(recorded) == 0 {
		return false, ""
	}

	present := make(map[string]bool, len(utxos))
	for _, u := range utxos {
		present[utxoKey(u.TxID, u.Vout)] = true
	}
	for _, r := range recorded {
		if r.Spent {
			continue
		}
		key := utxoKey(r.TxID, r.Vout)
		if !present[key] {
			return true, key
		}
	}
	return false, ""
}

// recordReliedUTXOs writes the outputs backing an accepted verdict into
// the ledger. Only the outputs that actually counted are recorded.
func (e *Engine) recordReliedUTXOs(address string, utxos []explorer.UTXO, minConf int64, confirmedOnly bool) {
	now := e.nowTime()
	var relied []SeenUTXO
	for _, u := range utxos {
		if confirmedOnly && u.Confirmations < minConf {
			continue
		}
		relied = append(relied, SeenUTXO{
			Address:    address,
			TxID:       u.TxID,
			Vout:       u.Vout,
			Value:      u.Value,
			RecordedAt: now,
		})
	}
	if len(relied) == 0 {
		return
	}
	if err := e.ledger.RecordSeen(relied); err != nil {
		logger.WithField("address", address).Warnf("failed to record seen utxos: %v", err)
	}
}

// verifyByTxID is the narrow check against one known transaction:
// its outputs must pay the target address at least the expected amount
// and its confirmation count must meet policy.
//
// Note there is deliberately no signature check here. The explorer
// already only serves transactions accepted by the network, and a
// homegrown "verification" that cannot fail is worse than none.
func (e *Engine) verifyByTxID(ctx context.Context, address string, expected int64, opts Options) (*Verdict, error) {
	if _, err := chainhash.NewHashFromStr(opts.TxID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTxID, err)
	}

	var failures []string
	var tx *explorer.TransactionDetails
	var source string
	answered := false
	for _, client := range e.clients {
		fetched, err := client.FetchTransaction(ctx, opts.TxID)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", client.Name(), err))
			continue
		}
		answered = true
		source = client.Name()
		if fetched != nil {
			tx = fetched
			break
		}
	}
	if !answered {
		return e.indeterminate(fmt.Errorf("all explorer sources failed: %s", strings.Join(failures, "; "))), nil
	}
	if tx == nil {
		return &Verdict{
			Status:  StatusRejected,
			Sources: []string{source},
			Detail:  "transaction not found",
		}, nil
	}

	paid := tx.PaidTo(address)
	minConf := e.policy(opts)

	verdict := &Verdict{
		Confirmations: tx.Confirmations,
		Sources:       []string{source},
	}
	if tx.Confirmations >= minConf {
		verdict.ConfirmedBalance = paid
	} else {
		verdict.UnconfirmedBalance = paid
	}

	switch {
	case paid < expected:
		verdict.Status = StatusRejected
		verdict.Detail = fmt.Sprintf("transaction pays %s, expected %s",
			ltcchain.FormatAmount(paid), ltcchain.FormatAmount(expected))
	case opts.RequireConfirmations && tx.Confirmations < minConf:
		verdict.Status = StatusPending
		verdict.Detail = fmt.Sprintf("%d of %d confirmations", tx.Confirmations, minConf)
	default:
		verdict.Accepted = true
		verdict.Status = StatusAccepted
	}

	if verdict.Accepted {
		now := e.nowTime()
		var relied []SeenUTXO
		for vout, out := range tx.Outs {
			if out.Address != address {
				continue
			}
			relied = append(relied, SeenUTXO{
				Address:    address,
				TxID:       tx.TxID,
				Vout:       uint32(vout),
				Value:      out.Value,
				RecordedAt: now,
			})
		}
		if err := e.ledger.RecordSeen(relied); err != nil {
			logger.WithField("address", address).Warnf("failed to record seen utxos: %v", err)
		}
	}
	return verdict, nil
}

// AddressSnapshot returns the lifetime totals of an address from the
// first source that answers. It is the coarse "received so far" view
// behind the UTXO-level check; a source that does not know the address
// reports an empty history, not an error.
func (e *Engine) AddressSnapshot(ctx context.Context, address string) (*explorer.AddressSummary, error) {
	if _, err := e.validator.Decode(address); err != nil {
		return nil, err
	}

	var failures []string
	for _, client := range e.clients {
		summary, err := client.FetchAddressSummary(ctx, address)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", client.Name(), err))
			continue
		}
		if summary == nil {
			return &explorer.AddressSummary{Address: address}, nil
		}
		return summary, nil
	}
	return nil, fmt.Errorf("all explorer sources failed: %s", strings.Join(failures, "; "))
}

// MarkSpent is the caller's hook to announce an intentional spend of a
// previously credited output, so its disappearance stops looking like
// a double-spend.
func (e *Engine) MarkSpent(address string, txID string, vout uint32) error {
	return e.ledger.MarkSpent(address, txID, vout)
}

func (e *Engine) indeterminate(err error) *Verdict {
	logger.Errorf("payment verification indeterminate: %v", err)
	return &Verdict{
		Status: StatusIndeterminate,
		Detail: err.Error(),
	}
}

func (e *Engine) nowTime() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func utxoKey(txID string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txID, vout)
}
