// Package export writes analytics results into a SQLite file that other
// tools can query.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/pricing"
)

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
}

// Open opens a SQLite database connection
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		// Avoid "database is locked" when a viewer has the file open.
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	db.SetMaxOpenConns(1)

	return &DB{db}, nil
}

// Migrate creates the database schema
func (db *DB) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		filepath TEXT NOT NULL,
		line_number INTEGER NOT NULL,
		project_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		uuid TEXT,
		parent_uuid TEXT,
		event_type TEXT NOT NULL,
		timestamp_utc TEXT,
		model_id TEXT,
		is_sidechain INTEGER NOT NULL DEFAULT 0,
		is_subagent_file INTEGER NOT NULL DEFAULT 0,
		agent_slug TEXT,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cache_5m_tokens INTEGER NOT NULL DEFAULT 0,
		cache_1h_tokens INTEGER NOT NULL DEFAULT 0,
		cache_read_tokens INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (filepath, line_number)
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(project_id, session_id);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp_utc);

	CREATE TABLE IF NOT EXISTS sessions (
		project_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		first_timestamp TEXT,
		last_timestamp TEXT,
		event_count INTEGER NOT NULL,
		subagent_count INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost_usd REAL NOT NULL,
		models TEXT,
		filepath TEXT,
		PRIMARY KEY (project_id, session_id)
	);

	CREATE TABLE IF NOT EXISTS projects (
		project_id TEXT PRIMARY KEY,
		project_name TEXT,
		project_path TEXT,
		session_count INTEGER NOT NULL,
		event_count INTEGER NOT NULL,
		total_tokens INTEGER NOT NULL,
		cost_usd REAL NOT NULL
	);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// InsertEvents inserts events with their unrounded cost, ignoring events
// already exported from the same file line.
func (db *DB) InsertEvents(ctx context.Context, events []model.Event, table *pricing.Table) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO events
		(filepath, line_number, project_id, session_id, uuid, parent_uuid, event_type,
		 timestamp_utc, model_id, is_sidechain, is_subagent_file, agent_slug,
		 input_tokens, output_tokens, cache_5m_tokens, cache_1h_tokens, cache_read_tokens, cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var inserted int64
	for i := range events {
		ev := &events[i]
		cost := table.EventCost(ev).Total()
		result, err := stmt.ExecContext(ctx,
			ev.FilePath, ev.LineNumber, ev.ProjectID, ev.SessionID,
			nullString(ev.UUID), nullString(ev.ParentUUID), ev.Type,
			nullTime(ev.Timestamp), nullString(ev.Model), ev.IsSidechain, ev.IsSubagentFile(),
			nullString(ev.AgentSlug),
			ev.Usage.InputTokens, ev.Usage.OutputTokens, ev.Usage.Ephemeral5mInputTokens,
			ev.Usage.Ephemeral1hInputTokens, ev.Usage.CacheReadInputTokens, cost,
		)
		if err != nil {
			return 0, fmt.Errorf("insert %s:%d: %w", ev.FilePath, ev.LineNumber, err)
		}
		n, _ := result.RowsAffected()
		inserted += n
	}

	return inserted, tx.Commit()
}

// ReplaceSessions upserts session listing rows
func (db *DB) ReplaceSessions(ctx context.Context, rows []model.SessionSummary) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO sessions
		(project_id, session_id, first_timestamp, last_timestamp, event_count,
		 subagent_count, output_tokens, cost_usd, models, filepath)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ProjectID, r.SessionID, nullTime(r.FirstTimestamp), nullTime(r.LastTimestamp),
			r.EventCount, r.SubagentCount, r.Usage.OutputTokens, r.TotalCost,
			strings.Join(r.Models, ","), nullString(r.FilePath),
		); err != nil {
			return fmt.Errorf("insert session %s: %w", r.SessionID, err)
		}
	}
	return tx.Commit()
}

// ReplaceProjects upserts project listing rows
func (db *DB) ReplaceProjects(ctx context.Context, rows []model.ProjectRow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO projects
		(project_id, project_name, project_path, session_count, event_count, total_tokens, cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ProjectID, nullString(r.ProjectName), nullString(r.ProjectPath),
			r.SessionCount, r.EventCount, r.TotalTokens, r.TotalCost,
		); err != nil {
			return fmt.Errorf("insert project %s: %w", r.ProjectID, err)
		}
	}
	return tx.Commit()
}

// DayCost is one UTC day of exported cost.
type DayCost struct {
	Day    string
	Events int
	Cost   float64
}

// DailyCost sums exported event cost per UTC day, oldest first. Events
// without a timestamp are left out.
func (db *DB) DailyCost(ctx context.Context) ([]DayCost, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT substr(timestamp_utc, 1, 10) AS day, COUNT(*), SUM(cost_usd)
		FROM events
		WHERE timestamp_utc IS NOT NULL
		GROUP BY day
		ORDER BY day
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayCost
	for rows.Next() {
		var d DayCost
		if err := rows.Scan(&d.Day, &d.Events, &d.Cost); err != nil {
			return nil, err
		}
		d.Cost = pricing.Round(d.Cost, pricing.DetailPlaces)
		out = append(out, d)
	}
	return out, rows.Err()
}
