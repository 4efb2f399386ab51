/*
Package explorer talks to third-party block explorer services and
normalizes their responses. All source-specific JSON field knowledge
stays inside the adapter files; the rest of the program only ever sees
the types below.
*/
package explorer

import (
	"time"
)

// UTXO is one unspent output credited to an address.
// Identity is (TxID, Vout). Amounts are litoshi, never floats.
type UTXO struct {
	TxID          string
	Vout          uint32
	Value         int64 // litoshi
	Confirmations int64
	Confirmed     bool // Confirmations > 0, i.e. mined at all
}

// TxOut is a normalized transaction output.
type TxOut struct {
	Address string // empty for non-standard scripts
	Value   int64  // litoshi
}

// TxIn is a normalized transaction input, described by the previous
// output it spends.
type TxIn struct {
	PrevTxID    string
	PrevVout    uint32
	PrevAddress string
	Value       int64 // litoshi
}

// TransactionDetails is a normalized transaction.
type TransactionDetails struct {
	TxID          string
	Ins           []TxIn
	Outs          []TxOut
	Confirmations int64
	BlockHeight   int64 // 0 while unconfirmed
	BlockTime     time.Time
	InMempool     bool
}

// PaidTo sums the outputs of the transaction paying the given address.
func (t *TransactionDetails) PaidTo(address string) int64 {
	var total int64
	for _, out := range t.Outs {
		if out.Address == address {
			total += out.Value
		}
	}
	return total
}

// Touches reports whether the transaction pays the address or spends
// from it (inputs' previous outputs).
func (t *TransactionDetails) Touches(address string) bool {
	for _, out := range t.Outs {
		if out.Address == address {
			return true
		}
	}
	for _, in := range t.Ins {
		if in.PrevAddress == address {
			return true
		}
	}
	return false
}

// AddressSummary is the lifetime view of an address.
type AddressSummary struct {
	Address       string
	TotalReceived int64 // litoshi, confirmed chain only
	TxCount       int64
}

// BalanceSnapshot is a derived view over one fetched UTXO set.
// It is recomputed wholesale on every verification pass, never patched.
type BalanceSnapshot struct {
	Address          string
	ConfirmedTotal   int64
	UnconfirmedTotal int64
	UTXOCount        int
	FetchedAt        time.Time
}

// Snapshot partitions a UTXO set by a minimum confirmation policy.
// A UTXO sits in exactly one bucket; confirmations == minConf-1 counts
// as unconfirmed, no fractional credit.
func Snapshot(address string, utxos []UTXO, minConf int64, now time.Time) *BalanceSnapshot {
	snap := &BalanceSnapshot{
		Address:   address,
		UTXOCount: len(utxos),
		FetchedAt: now,
	}
	for _, u := range utxos {
		if u.Confirmations >= minConf {
			snap.ConfirmedTotal += u.Value
		} else {
			snap.UnconfirmedTotal += u.Value
		}
	}
	return snap
}
