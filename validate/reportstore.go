package validate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// ReportStore is the append-only embedded analytic store for
// ValidationReports, keyed by (symbol, timeframe, run_id), kept separate
// from the hot ClickHouse path per spec §3. Grounded on the corpus's
// embedded-SQLite pattern for out-of-hot-path bookkeeping.
type ReportStore struct {
	db *sql.DB
}

// OpenReportStore opens (creating if necessary) a SQLite database at path
// and ensures the validation_reports table exists.
func OpenReportStore(path string) (*ReportStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("validate: open report store: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("validate: enable WAL: %w", err)
	}
	const ddl = `
		CREATE TABLE IF NOT EXISTS validation_reports (
			run_id           TEXT NOT NULL,
			symbol           TEXT NOT NULL,
			timeframe        TEXT NOT NULL,
			instrument_type  TEXT NOT NULL,
			total_bars       INTEGER NOT NULL,
			expected_bars    INTEGER NOT NULL,
			pass             INTEGER NOT NULL,
			issues_json      TEXT NOT NULL,
			created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			PRIMARY KEY (symbol, timeframe, run_id)
		)`
	if _, err := db.Exec(ddl); err != nil {
		return nil, fmt.Errorf("validate: create validation_reports table: %w", err)
	}
	return &ReportStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *ReportStore) Close() error { return s.db.Close() }

// Save persists r. The table is append-only: Save never updates an
// existing (symbol, timeframe, run_id) row.
func (s *ReportStore) Save(ctx context.Context, r Report) error {
	issuesJSON, err := json.Marshal(r.Issues)
	if err != nil {
		return fmt.Errorf("validate: marshal issues: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO validation_reports
			(run_id, symbol, timeframe, instrument_type, total_bars, expected_bars, pass, issues_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Symbol, r.Timeframe, r.InstrumentType, r.TotalBars, r.ExpectedBars, boolToInt(r.Pass), string(issuesJSON))
	if err != nil {
		return fmt.Errorf("validate: insert report: %w", err)
	}
	return nil
}

// RecentForSymbol returns up to limit reports for symbol/timeframe, most
// recent first.
func (s *ReportStore) RecentForSymbol(ctx context.Context, symbol, timeframe string, limit int) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, symbol, timeframe, instrument_type, total_bars, expected_bars, pass, issues_json
		FROM validation_reports
		WHERE symbol = ? AND timeframe = ?
		ORDER BY created_at DESC
		LIMIT ?`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("validate: query reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		var passInt int
		var issuesJSON string
		if err := rows.Scan(&r.RunID, &r.Symbol, &r.Timeframe, &r.InstrumentType, &r.TotalBars, &r.ExpectedBars, &passInt, &issuesJSON); err != nil {
			return nil, fmt.Errorf("validate: scan report row: %w", err)
		}
		r.Pass = passInt != 0
		if err := json.Unmarshal([]byte(issuesJSON), &r.Issues); err != nil {
			return nil, fmt.Errorf("validate: unmarshal issues: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
