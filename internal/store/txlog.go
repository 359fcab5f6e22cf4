package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// txLog is a raw-SQL side table recording one diagnostic line per
// refresh (apply operations are not recorded here),
// kept separate from gorm's migrator because it is a virtual FTS5 table
// on platforms that support it, falling back to a regular table
// otherwise — the same detect-and-fall-back shape as the teacher's
// internal/db/migrate.go logs table.
type txLog struct {
	db   *sql.DB
	fts5 bool
}

func openTxLog(db *sql.DB) (*txLog, error) {
	_, err := db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS _dummy_fts_test USING fts5(content);")
	if err == nil {
		if _, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS tx_log USING fts5(op, ts, text);`); err != nil {
			return nil, fmt.Errorf("create fts5 tx_log: %w", err)
		}
		if _, err := db.Exec("DROP TABLE IF EXISTS _dummy_fts_test;"); err != nil {
			return nil, err
		}
		return &txLog{db: db, fts5: true}, nil
	}
	if !strings.Contains(err.Error(), "no such module: fts5") {
		return nil, err
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tx_log (
			op TEXT NOT NULL,
			ts INTEGER NOT NULL,
			text TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_tx_log_ts ON tx_log (ts);
	`); err != nil {
		return nil, fmt.Errorf("create fallback tx_log: %w", err)
	}
	return &txLog{db: db, fts5: false}, nil
}

// record appends one diagnostic line; failures are swallowed since the
// log is a best-effort audit trail, not part of the store's correctness
// contract.
func (t *txLog) record(op, text string) {
	_, _ = t.db.Exec("INSERT INTO tx_log (op, ts, text) VALUES (?, ?, ?)", op, time.Now().Unix(), text)
}

// search runs an FTS5 MATCH query when available, falling back to a
// LIKE scan otherwise, mirroring the teacher's SearchLogs degradation
// path.
func (t *txLog) search(query string) ([]string, error) {
	var rows *sql.Rows
	var err error
	if t.fts5 {
		rows, err = t.db.Query("SELECT text FROM tx_log WHERE tx_log MATCH ? ORDER BY ts DESC LIMIT 100", query)
		if err != nil {
			rows, err = t.db.Query("SELECT text FROM tx_log WHERE text LIKE ? ORDER BY ts DESC LIMIT 100", "%"+query+"%")
		}
	} else {
		rows, err = t.db.Query("SELECT text FROM tx_log WHERE text LIKE ? ORDER BY ts DESC LIMIT 100", "%"+query+"%")
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}
