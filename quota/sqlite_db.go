package quota

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteQuotaStorage implements QuotaStorage; budgets survive restarts
// so a crash-loop cannot burn through a day's quota unnoticed.
type SQLiteQuotaStorage struct {
	uniqueTableID string
	db            *sql.DB
}

func NewSQLiteQuotaStorage(dbFilePath string, uniqueID string) (*SQLiteQuotaStorage, error) {
	db, err := sql.Open("sqlite3", dbFilePath)
	if err != nil {
		return nil, err
	}

	storage := &SQLiteQuotaStorage{db: db, uniqueTableID: "quota_" + uniqueID}
	if err := storage.init(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

func (s *SQLiteQuotaStorage) init() error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		source TEXT PRIMARY KEY,
		daily_limit INTEGER,
		remaining_today INTEGER,
		last_reset INTEGER
	);
	`, s.uniqueTableID)
	_, err := s.db.Exec(query)
	return err
}

// LoadRecord returns the record for a source, or nil if unknown.
func (s *SQLiteQuotaStorage) LoadRecord(source string) (*Record, error) {
	query := fmt.Sprintf(`
	SELECT source, daily_limit, remaining_today, last_reset
	FROM %s WHERE source = ?;
	`, s.uniqueTableID)

	var record Record
	var lastReset int64
	err := s.db.QueryRow(query, source).Scan(&record.Source, &record.DailyLimit, &record.RemainingToday, &lastReset)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	record.LastReset = time.Unix(lastReset, 0)
	return &record, nil
}

// StoreRecord inserts or replaces a record.
func (s *SQLiteQuotaStorage) StoreRecord(record *Record) error {
	query := fmt.Sprintf(`
	INSERT OR REPLACE INTO %s (source, daily_limit, remaining_today, last_reset)
	VALUES (?, ?, ?, ?);
	`, s.uniqueTableID)
	_, err := s.db.Exec(query, record.Source, record.DailyLimit, record.RemainingToday, record.LastReset.Unix())
	return err
}

func (s *SQLiteQuotaStorage) Close() error {
	return s.db.Close()
}
