package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq"
)

var _ PriceStore = (*PostgresStore)(nil)

// PostgresStore persists the price history in PostgreSQL.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{sqlStore{
		db: db,
		d: dialect{
			name:        "postgres",
			placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
			// one writer per store; a second run waits here instead of interleaving
			lockSQL: "SELECT pg_advisory_xact_lock(hashtext('price_records'))",
		},
	}}
	if err := ps.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}
