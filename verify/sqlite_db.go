package verify

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLedgerStorage implements LedgerStorage.
type SQLiteLedgerStorage struct {
	uniqueTableID string
	db            *sql.DB
}

func NewSQLiteLedgerStorage(dbFilePath string, uniqueID string) (*SQLiteLedgerStorage, error) {
	db, err := sql.Open("sqlite3", dbFilePath)
	if err != nil {
		return nil, err
	}

	storage := &SQLiteLedgerStorage{db: db, uniqueTableID: "seen_utxo_" + uniqueID}
	if err := storage.init(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

func (s *SQLiteLedgerStorage) init() error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		address TEXT,
		tx_id TEXT,
		vout INTEGER,
		amount INTEGER,
		spent BOOLEAN,
		recorded_at INTEGER,
		PRIMARY KEY (tx_id, vout)
	);
	CREATE INDEX IF NOT EXISTS idx_seen_address ON %s (address);
	`, s.uniqueTableID, s.uniqueTableID)
	_, err := s.db.Exec(query)
	return err
}

// RecordSeen inserts outputs; existing (txid, vout) rows are kept as-is.
func (s *SQLiteLedgerStorage) RecordSeen(utxos []SeenUTXO) error {
	query := fmt.Sprintf(`
	INSERT OR IGNORE INTO %s (address, tx_id, vout, amount, spent, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?);
	`, s.uniqueTableID)
	for _, u := range utxos {
		recordedAt := u.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now()
		}
		if _, err := s.db.Exec(query, u.Address, u.TxID, u.Vout, u.Value, u.Spent, recordedAt.Unix()); err != nil {
			return err
		}
	}
	return nil
}

// QueryByAddress returns every recorded output for an address.
func (s *SQLiteLedgerStorage) QueryByAddress(address string) ([]SeenUTXO, error) {
	query := fmt.Sprintf(`
	SELECT address, tx_id, vout, amount, spent, recorded_at
	FROM %s WHERE address = ?;
	`, s.uniqueTableID)
	rows, err := s.db.Query(query, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var utxos []SeenUTXO
	for rows.Next() {
		var u SeenUTXO
		var recordedAt int64
		if err := rows.Scan(&u.Address, &u.TxID, &u.Vout, &u.Value, &u.Spent, &recordedAt); err != nil {
			return nil, err
		}
		u.RecordedAt = time.Unix(recordedAt, 0)
		utxos = append(utxos, u)
	}
	return utxos, rows.Err()
}

// MarkSpent flags an output as spent by the caller.
func (s *SQLiteLedgerStorage) MarkSpent(address string, txID string, vout uint32) error {
	query := fmt.Sprintf(`
	UPDATE %s SET spent = 1 WHERE address = ? AND tx_id = ? AND vout = ?;
	`, s.uniqueTableID)
	_, err := s.db.Exec(query, address, txID, vout)
	return err
}

func (s *SQLiteLedgerStorage) Close() error {
	return s.db.Close()
}
