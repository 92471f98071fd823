package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/lorrc/workload-insights/internal/core/ports"
	"github.com/lorrc/workload-insights/internal/core/utils"
)

// AlertRepository stores risk alerts in the risk_alerts table.
type AlertRepository struct {
	pool *pgxpool.Pool
	txm  *Transactor
}

var _ ports.AlertRepository = (*AlertRepository)(nil)

func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool, txm: NewTransactor(pool)}
}

const alertColumns = `id, alert_type, severity, entity_type, entity_id, title, description,
       metadata, is_resolved, resolved_by, resolved_at, created_at`

func (r *AlertRepository) FindUnresolved(ctx context.Context, key domain.AlertKey) (*domain.RiskAlert, error) {
	query := `
SELECT ` + alertColumns + `
FROM risk_alerts
WHERE alert_type = $1
  AND entity_type = $2
  AND entity_id = $3
  AND NOT is_resolved
`
	alert, err := scanAlert(conn(ctx, r.pool).QueryRow(ctx, query, string(key.Type), string(key.EntityType), key.EntityID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find unresolved alert: %w", err)
	}
	return alert, nil
}

// Create inserts the alert. The partial unique index on unresolved alerts
// turns a concurrent duplicate into a no-op reported as inserted=false.
func (r *AlertRepository) Create(ctx context.Context, alert domain.RiskAlert) (*domain.RiskAlert, bool, error) {
	query := `
INSERT INTO risk_alerts (alert_type, severity, entity_type, entity_id, title, description, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (alert_type, entity_type, entity_id) WHERE NOT is_resolved DO NOTHING
RETURNING ` + alertColumns

	metadata, err := encodeMetadata(alert.Metadata)
	if err != nil {
		return nil, false, err
	}
	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	created, err := scanAlert(conn(ctx, r.pool).QueryRow(ctx, query,
		string(alert.Type), string(alert.Severity), string(alert.EntityType), alert.EntityID,
		alert.Title, alert.Description, metadata, createdAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("create alert: %w", err)
	}
	return created, true, nil
}

func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]domain.RiskAlert, error) {
	query := `
SELECT ` + alertColumns + `
FROM risk_alerts
WHERE ($1::text IS NULL OR alert_type = $1)
  AND ($2::text IS NULL OR severity = $2)
  AND ($3::text IS NULL OR entity_type = $3)
  AND (NOT $4::boolean OR NOT is_resolved)
ORDER BY created_at DESC, id DESC
LIMIT $5
`
	rows, err := conn(ctx, r.pool).Query(ctx, query,
		optionalText(string(filter.Type)),
		optionalText(string(filter.Severity)),
		optionalText(string(filter.EntityType)),
		filter.Unresolved,
		filter.Limit,
	)
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

// Resolve locks the alert row, checks its state and marks it resolved.
func (r *AlertRepository) Resolve(ctx context.Context, id int64, resolvedBy string, at time.Time) (*domain.RiskAlert, error) {
	var resolved *domain.RiskAlert
	err := r.txm.InTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// 1. Lock
		var isResolved bool
		err := tx.QueryRow(ctx, `SELECT is_resolved FROM risk_alerts WHERE id = $1 FOR UPDATE`, id).Scan(&isResolved)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrAlertNotFound
			}
			return err
		}
		if isResolved {
			return apperrors.ErrAlertAlreadyResolved
		}

		// 2. Update
		query := `
UPDATE risk_alerts
SET is_resolved = true, resolved_by = $2, resolved_at = $3
WHERE id = $1
RETURNING ` + alertColumns
		resolved, err = scanAlert(tx.QueryRow(ctx, query, id, resolvedBy, at))
		return err
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func scanAlert(row pgx.Row) (*domain.RiskAlert, error) {
	var a domain.RiskAlert
	var alertType, severity, entityType string
	var metadata []byte
	var resolvedBy pgtype.Text
	var resolvedAt pgtype.Timestamptz

	err := row.Scan(
		&a.ID, &alertType, &severity, &entityType, &a.EntityID, &a.Title, &a.Description,
		&metadata, &a.IsResolved, &resolvedBy, &resolvedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Type = domain.RiskType(alertType)
	a.Severity = domain.Severity(severity)
	a.EntityType = domain.EntityType(entityType)
	a.ResolvedBy = utils.FromNullString(resolvedBy)
	a.ResolvedAt = utils.FromNullTimestamptz(resolvedAt)
	if a.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	return &a, nil
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode alert metadata: %w", err)
	}
	return b, nil
}

func decodeMetadata(b []byte) (map[string]any, error) {
	m := map[string]any{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode alert metadata: %w", err)
	}
	return m, nil
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
