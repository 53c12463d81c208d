package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"price-tracker/models"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name string
	// placeholder returns the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// lockSQL, when set, runs first inside every write transaction.
	lockSQL string
}

const recordColumns = 8

// sqlStore implements PriceStore over database/sql. Upsert deletes the date
// and inserts the new rows inside one transaction.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func (s *sqlStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS price_records (
			plu                TEXT             NOT NULL,
			date               TEXT             NOT NULL,
			name               TEXT             NOT NULL DEFAULT '',
			brand              TEXT             NOT NULL DEFAULT '',
			raw_category       TEXT             NOT NULL DEFAULT '',
			principal_category TEXT             NOT NULL DEFAULT '',
			price_current      DOUBLE PRECISION,
			price_regular      DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (date, plu)
		);
	`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_price_records_category ON price_records(principal_category)`)
	return err
}

// Upsert replaces the records of date in a single transaction.
func (s *sqlStore) Upsert(date string, records []*models.ProductPriceRecord) error {
	if err := checkUpsert(date, records); err != nil {
		return fmt.Errorf("%s: upsert: %w", s.d.name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.d.name, err)
	}
	defer tx.Rollback()

	if s.d.lockSQL != "" {
		if _, err := tx.Exec(s.d.lockSQL); err != nil {
			return fmt.Errorf("%s: lock: %w", s.d.name, err)
		}
	}

	if _, err := tx.Exec("DELETE FROM price_records WHERE date = "+s.d.placeholder(1), date); err != nil {
		return fmt.Errorf("%s: delete %s: %w", s.d.name, date, err)
	}

	const batchSize = 500
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.insertBatch(tx, records[i:end]); err != nil {
			return fmt.Errorf("%s: insert %s: %w", s.d.name, date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) insertBatch(tx *sql.Tx, batch []*models.ProductPriceRecord) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*recordColumns)

	for idx, r := range batch {
		base := idx * recordColumns
		ph := make([]string, recordColumns)
		for c := range ph {
			ph[c] = s.d.placeholder(base + c + 1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")

		var current interface{}
		if r.PriceCurrent != nil {
			current = *r.PriceCurrent
		}
		valueArgs = append(valueArgs,
			r.PLU, r.Date, r.Name, r.Brand, r.RawCategory, r.PrincipalCategory, current, r.PriceRegular)
	}

	query := fmt.Sprintf(`
		INSERT INTO price_records (plu, date, name, brand, raw_category, principal_category, price_current, price_regular)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	_, err := tx.Exec(query, valueArgs...)
	return err
}

// RecordsFor returns the records of date ordered by PLU.
func (s *sqlStore) RecordsFor(date string) ([]*models.ProductPriceRecord, error) {
	rows, err := s.db.Query(`
		SELECT plu, date, name, brand, raw_category, principal_category, price_current, price_regular
		FROM price_records
		WHERE date = `+s.d.placeholder(1)+`
		ORDER BY plu
	`, date)
	if err != nil {
		return nil, fmt.Errorf("%s: records for %s: %w", s.d.name, date, err)
	}
	defer rows.Close()

	records := make([]*models.ProductPriceRecord, 0)
	for rows.Next() {
		r := &models.ProductPriceRecord{}
		var current sql.NullFloat64
		if err := rows.Scan(
			&r.PLU, &r.Date, &r.Name, &r.Brand, &r.RawCategory,
			&r.PrincipalCategory, &current, &r.PriceRegular,
		); err != nil {
			return nil, fmt.Errorf("%s: %w: scan row: %v", s.d.name, ErrCorrupt, err)
		}
		if current.Valid {
			v := current.Float64
			r.PriceCurrent = &v
		}
		if err := checkLoaded(r); err != nil {
			return nil, fmt.Errorf("%s: %w", s.d.name, err)
		}
		records = append(records, r)
	}
	// ORDER BY on TEXT can follow a collation; keep byte order like the other backends.
	sortByPLU(records)
	return records, rows.Err()
}

// Dates returns every distinct date, ascending.
func (s *sqlStore) Dates() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT date FROM price_records ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("%s: dates: %w", s.d.name, err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("%s: %w: scan date: %v", s.d.name, ErrCorrupt, err)
		}
		if err := ValidateDate(d); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", s.d.name, ErrCorrupt, err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
