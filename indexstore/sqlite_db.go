package indexstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteIndexStorage implements IndexStorage on a single-row table.
type SQLiteIndexStorage struct {
	uniqueTableID string
	db            *sql.DB
}

// NewSQLiteIndexStorage opens (or creates) the counter table inside the
// given database file. uniqueID keeps counters of different wallets
// apart inside one file.
func NewSQLiteIndexStorage(dbFilePath string, uniqueID string) (*SQLiteIndexStorage, error) {
	db, err := sql.Open("sqlite3", dbFilePath)
	if err != nil {
		return nil, err
	}

	storage := &SQLiteIndexStorage{db: db, uniqueTableID: "addr_index_" + uniqueID}
	if err := storage.init(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

func (s *SQLiteIndexStorage) init() error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		next_index INTEGER NOT NULL
	);
	INSERT OR IGNORE INTO %s (id, next_index) VALUES (0, 0);
	`, s.uniqueTableID, s.uniqueTableID)
	_, err := s.db.Exec(query)
	return err
}

// LoadNext returns the next unallocated index.
func (s *SQLiteIndexStorage) LoadNext() (uint32, error) {
	query := fmt.Sprintf(`SELECT next_index FROM %s WHERE id = 0;`, s.uniqueTableID)
	var next uint32
	if err := s.db.QueryRow(query).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

// StoreNext durably records the next unallocated index.
func (s *SQLiteIndexStorage) StoreNext(next uint32) error {
	query := fmt.Sprintf(`UPDATE %s SET next_index = ? WHERE id = 0;`, s.uniqueTableID)
	_, err := s.db.Exec(query, next)
	return err
}

func (s *SQLiteIndexStorage) Close() error {
	return s.db.Close()
}
