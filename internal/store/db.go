package store

import (
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

type Store struct {
	DB  *sql.DB
	now func() time.Time
}

func NewStore(dataSourceName string) (*Store, error) {
	if !strings.Contains(dataSourceName, "?") {
		dataSourceName += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	// One writer at a time keeps claims serialized without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{DB: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}
