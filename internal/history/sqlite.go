package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/forest-guardian/wooded-mask/internal/raster"
)

// Run is one recorded mask production, with metrics when a reference was
// available.
type Run struct {
	ID        int64
	Scene     string
	Method    string
	Output    string
	Counts    raster.MaskCounts
	Accuracy  *float64
	Kappa     *float64
	CreatedAt time.Time
}

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}
	if dbDir := filepath.Dir(dbPath); dbDir != "." && dbDir != "" && dbPath != ":memory:" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	return &SQLiteClient{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
    CREATE TABLE IF NOT EXISTS runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        scene TEXT NOT NULL,
        method TEXT NOT NULL,
        output TEXT NOT NULL,
        wooded INTEGER NOT NULL,
        non_wooded INTEGER NOT NULL,
        nodata INTEGER NOT NULL,
        accuracy REAL,
        kappa REAL,
        created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_runs_scene ON runs(scene);
    `)
	return err
}

func (c *SQLiteClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SQLiteClient) RecordRun(run Run) (int64, error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	res, err := c.db.Exec(`
		INSERT INTO runs (scene, method, output, wooded, non_wooded, nodata, accuracy, kappa, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Scene, run.Method, run.Output,
		run.Counts.Wooded, run.Counts.NonWooded, run.Counts.NoData,
		run.Accuracy, run.Kappa, run.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("error storing run: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns returns the most recent runs first; scene filters when non-empty
// and limit <= 0 means no limit.
func (c *SQLiteClient) ListRuns(scene string, limit int) ([]Run, error) {
	query := `SELECT id, scene, method, output, wooded, non_wooded, nodata, accuracy, kappa, created_at FROM runs`
	var args []any
	if scene != "" {
		query += " WHERE scene = ?"
		args = append(args, scene)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Scene, &r.Method, &r.Output,
			&r.Counts.Wooded, &r.Counts.NonWooded, &r.Counts.NoData,
			&r.Accuracy, &r.Kappa, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
