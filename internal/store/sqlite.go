// Package store persists decoded surveillance records in a SQLite database
// so they can be queried and summarised after a capture session.
package store

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"example.com/astgate/internal/asterix"
)

// StoredRecord is one decoded record row.
type StoredRecord struct {
	ID        int64
	Timestamp float64
	Category  int
	Length    int
	Status    string
	FSPEC     string
	CRC       uint32
	ItemsJSON string
}

// DB wraps a SQLite connection for record storage.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp REAL NOT NULL,
		category INTEGER NOT NULL,
		length INTEGER NOT NULL,
		status TEXT NOT NULL,
		fspec TEXT NOT NULL,
		crc INTEGER NOT NULL,
		items_json TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_records_category ON records(category);
	CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
	CREATE INDEX IF NOT EXISTS idx_records_timestamp ON records(timestamp);
	`
	_, err := db.Exec(schema)
	return err
}

// Insert stores one decoded record. itemsJSON is the rendered JSON object for
// the record's data items.
func (d *DB) Insert(rec *asterix.Record, itemsJSON string) (int64, error) {
	result, err := d.db.Exec(`
		INSERT INTO records (timestamp, category, length, status, fspec, crc, items_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Timestamp, rec.Category, rec.Length, rec.Status.String(),
		hex.EncodeToString(rec.FSPEC), rec.CRC, itemsJSON)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return result.LastInsertId()
}

// QueryParams filters record queries. Zero values mean no filter.
type QueryParams struct {
	Category int
	Status   string
	Since    float64
	Limit    int
	Offset   int
}

// Query retrieves stored records matching the given filters, newest first.
func (d *DB) Query(p QueryParams) ([]StoredRecord, error) {
	var conditions []string
	var args []interface{}

	if p.Category != 0 {
		conditions = append(conditions, "category = ?")
		args = append(args, p.Category)
	}
	if p.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, p.Status)
	}
	if p.Since != 0 {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, p.Since)
	}

	query := `SELECT id, timestamp, category, length, status, fspec, crc, items_json FROM records`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	limit := 100
	if p.Limit > 0 {
		limit = p.Limit
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT %d OFFSET %d", limit, p.Offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []StoredRecord
	for rows.Next() {
		var r StoredRecord
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Category, &r.Length,
			&r.Status, &r.FSPEC, &r.CRC, &r.ItemsJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats aggregates stored record counts.
type Stats struct {
	TotalRecords int
	TotalBytes   int64
	ByCategory   map[int]int
	Truncated    int
	FirstSeen    float64
	LastSeen     float64
}

// GetStats returns aggregate statistics over all stored records.
func (d *DB) GetStats() (*Stats, error) {
	stats := &Stats{ByCategory: make(map[int]int)}

	row := d.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(length), 0),
		COALESCE(MIN(timestamp), 0), COALESCE(MAX(timestamp), 0) FROM records`)
	if err := row.Scan(&stats.TotalRecords, &stats.TotalBytes,
		&stats.FirstSeen, &stats.LastSeen); err != nil {
		return nil, err
	}

	rows, err := d.db.Query("SELECT category, COUNT(*) FROM records GROUP BY category")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var cat, count int
		if err := rows.Scan(&cat, &count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		stats.ByCategory[cat] = count
	}
	_ = rows.Close()

	row = d.db.QueryRow(`SELECT COUNT(*) FROM records WHERE status = ?`,
		asterix.StatusTruncated.String())
	if err := row.Scan(&stats.Truncated); err != nil {
		return nil, err
	}
	return stats, rows.Err()
}
