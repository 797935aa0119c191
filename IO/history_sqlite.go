package IO

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var historySchema = []string{
	`CREATE TABLE IF NOT EXISTS previews (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT    NOT NULL,
		step       INTEGER NOT NULL,
		loss       REAL    NOT NULL,
		sample     TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS previews_step ON previews(step)`,
}

// SQLiteHistory mirrors preview records into a SQLite table so runs can be
// queried after the fact.
type SQLiteHistory struct {
	db *sql.DB
}

func OpenSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range historySchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("history db %s: %w", path, err)
		}
	}
	return &SQLiteHistory{db: db}, nil
}

func (h *SQLiteHistory) Record(rec Record) error {
	_, err := h.db.Exec(
		"INSERT INTO previews(created_at, step, loss, sample) VALUES(?, ?, ?, ?)",
		rec.Time.UTC().Format(time.RFC3339Nano), rec.Step, rec.Loss, rec.Sample,
	)
	if err != nil {
		return fmt.Errorf("insert preview step %d: %w", rec.Step, err)
	}
	return nil
}

// Records returns every stored preview ordered by insertion.
func (h *SQLiteHistory) Records() ([]Record, error) {
	rows, err := h.db.Query("SELECT created_at, step, loss, sample FROM previews ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			ts  string
			rec Record
		)
		if err := rows.Scan(&ts, &rec.Step, &rec.Loss, &rec.Sample); err != nil {
			return nil, err
		}
		if rec.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}
