package verify

import (
	"fmt"
)

// SimulatedLedgerStorage is an in-memory LedgerStorage for tests.
type SimulatedLedgerStorage struct {
	utxos map[string]SeenUTXO // keyed by txid:vout
}

func NewSimulatedLedgerStorage() *SimulatedLedgerStorage {
	return &SimulatedLedgerStorage{utxos: make(map[string]SeenUTXO)}
}

func ledgerKey(txID string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txID, vout)
}

func (s *SimulatedLedgerStorage) RecordSeen(utxos []SeenUTXO) error {
	for _, u := range utxos {
		key := ledgerKey(u.TxID, u.Vout)
		if _, ok := s.utxos[key]; !ok {
			s.utxos[key] = u
		}
	}
	return nil
}

func (s *SimulatedLedgerStorage) QueryByAddress(address string) ([]SeenUTXO, error) {
	var out []SeenUTXO
	for _, u := range s.utxos {
		if u.Address == address {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *SimulatedLedgerStorage) MarkSpent(address string, txID string, vout uint32) error {
	key := ledgerKey(txID, vout)
	if u, ok := s.utxos[key]; ok && u.Address == address {
		u.Spent = true
		s.utxos[key] = u
	}
	return nil
}
