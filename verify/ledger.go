package verify

import (
	"time"
)

// SeenUTXO records one unspent output an accepted verdict relied on.
// If such an output later vanishes from the explorer view without the
// caller having marked a spend, the funds may have been double-spent.
type SeenUTXO struct {
	Address    string
	TxID       string
	Vout       uint32
	Value      int64 // litoshi
	Spent      bool  // caller-initiated spend, set via MarkSpent
	RecordedAt time.Time
}

// LedgerStorage persists SeenUTXOs across restarts; an operator must
// still be warned about a double-spend that happened while the process
// was down.
type LedgerStorage interface {
	// RecordSeen inserts outputs relied upon by an accepted verdict.
	// Re-recording an existing (address, txid, vout) is a no-op.
	RecordSeen(utxos []SeenUTXO) error

	// QueryByAddress returns every recorded output for an address.
	QueryByAddress(address string) ([]SeenUTXO, error)

	// MarkSpent flags an output as spent by a caller-initiated
	// transaction, so its disappearance stops counting as suspicious.
	MarkSpent(address string, txID string, vout uint32) error
}
