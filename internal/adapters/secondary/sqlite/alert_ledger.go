// Package sqlite provides a file-backed risk alert ledger for running the
// detectors away from the shared database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/lorrc/workload-insights/internal/core/ports"
	_ "modernc.org/sqlite"
)

const busyTimeoutMillis = 5000

// AlertLedger implements ports.AlertRepository on a SQLite file.
type AlertLedger struct {
	db *sql.DB
}

var _ ports.AlertRepository = (*AlertLedger)(nil)

// Open opens or creates the ledger at path. ":memory:" keeps it in memory.
func Open(path string) (*AlertLedger, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
		// modernc applies each _pragma on every new connection. busy_timeout
		// goes first so switching to WAL waits out a concurrent writer.
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMillis)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &AlertLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return l, nil
}

// Close closes the database connection.
func (l *AlertLedger) Close() error {
	return l.db.Close()
}

// Ping checks the database connection is alive.
func (l *AlertLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *AlertLedger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS risk_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		is_resolved INTEGER NOT NULL DEFAULT 0,
		resolved_by TEXT,
		resolved_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS uq_risk_alerts_unresolved
		ON risk_alerts (alert_type, entity_type, entity_id)
		WHERE is_resolved = 0;

	CREATE INDEX IF NOT EXISTS idx_risk_alerts_created ON risk_alerts (created_at DESC);
	`
	_, err := l.db.Exec(schema)
	return err
}

const alertColumns = `id, alert_type, severity, entity_type, entity_id, title, description,
	metadata, is_resolved, resolved_by, resolved_at, created_at`

func (l *AlertLedger) FindUnresolved(ctx context.Context, key domain.AlertKey) (*domain.RiskAlert, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM risk_alerts
		WHERE alert_type = ? AND entity_type = ? AND entity_id = ? AND is_resolved = 0`,
		string(key.Type), string(key.EntityType), key.EntityID)

	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find unresolved alert: %w", err)
	}
	return a, nil
}

func (l *AlertLedger) Create(ctx context.Context, alert domain.RiskAlert) (*domain.RiskAlert, bool, error) {
	metadata := []byte("{}")
	if alert.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(alert.Metadata); err != nil {
			return nil, false, fmt.Errorf("encode alert metadata: %w", err)
		}
	}
	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := l.db.QueryRowContext(ctx, `INSERT INTO risk_alerts
		(alert_type, severity, entity_type, entity_id, title, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING `+alertColumns,
		string(alert.Type), string(alert.Severity), string(alert.EntityType), alert.EntityID,
		alert.Title, alert.Description, string(metadata), formatTime(createdAt))

	created, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create alert: %w", err)
	}
	return created, true, nil
}

func (l *AlertLedger) List(ctx context.Context, filter domain.AlertFilter) ([]domain.RiskAlert, error) {
	var conds []string
	var args []any
	if filter.Type != "" {
		conds = append(conds, "alert_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		conds = append(conds, "severity = ?")
		args = append(args, string(filter.Severity))
	}
	if filter.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}
	if filter.Unresolved {
		conds = append(conds, "is_resolved = 0")
	}

	query := `SELECT ` + alertColumns + ` FROM risk_alerts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]domain.RiskAlert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (l *AlertLedger) Resolve(ctx context.Context, id int64, resolvedBy string, at time.Time) (*domain.RiskAlert, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var isResolved bool
	err = tx.QueryRowContext(ctx, `SELECT is_resolved FROM risk_alerts WHERE id = ?`, id).Scan(&isResolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}
	if isResolved {
		return nil, apperrors.ErrAlertAlreadyResolved
	}

	row := tx.QueryRowContext(ctx, `UPDATE risk_alerts
		SET is_resolved = 1, resolved_by = ?, resolved_at = ?
		WHERE id = ?
		RETURNING `+alertColumns, resolvedBy, formatTime(at), id)
	resolved, err := scanAlert(row)
	if err != nil {
		return nil, fmt.Errorf("resolve alert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return resolved, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*domain.RiskAlert, error) {
	var a domain.RiskAlert
	var alertType, severity, entityType, metadata, createdAt string
	var resolvedBy, resolvedAt sql.NullString

	err := row.Scan(&a.ID, &alertType, &severity, &entityType, &a.EntityID, &a.Title, &a.Description,
		&metadata, &a.IsResolved, &resolvedBy, &resolvedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	a.Type = domain.RiskType(alertType)
	a.Severity = domain.Severity(severity)
	a.EntityType = domain.EntityType(entityType)
	a.Metadata = map[string]any{}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode alert metadata: %w", err)
		}
	}
	if resolvedBy.Valid {
		a.ResolvedBy = &resolvedBy.String
	}
	if resolvedAt.Valid {
		t, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, err
		}
		a.ResolvedAt = &t
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
