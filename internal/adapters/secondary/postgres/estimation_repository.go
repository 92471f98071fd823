package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/lorrc/workload-insights/internal/core/ports"
	"github.com/lorrc/workload-insights/internal/core/utils"
)

type EstimationRepository struct {
	pool *pgxpool.Pool
}

var _ ports.EstimationRepository = (*EstimationRepository)(nil)

func NewEstimationRepository(pool *pgxpool.Pool) *EstimationRepository {
	return &EstimationRepository{pool: pool}
}

const estimationSelect = `
SELECT e.id, e.task_id, b.summary, e.resource_id,
       trim(concat_ws(' ', h.emp_firstname, h.emp_lastname)), e.task_type,
       e.eta_at_creation, e.eta_current, e.eta_final, e.time_spent_final,
       e.accuracy_score, e.is_final, e.recorded_at
FROM estimation_history e
LEFT JOIN mantis_bug_table b
       ON b.id = e.task_id AND b.source_system = e.source_system
LEFT JOIN hs_hr_employee h
       ON h.emp_number = e.resource_id
`

func (r *EstimationRepository) ListInFlight(ctx context.Context) ([]domain.EstimationRecord, error) {
	query := estimationSelect + `
WHERE NOT e.is_final
  AND e.eta_at_creation IS NOT NULL
ORDER BY e.id
`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list in-flight estimates: %w", err)
	}
	return collectEstimates(rows)
}

func (r *EstimationRepository) ListFinalByResource(ctx context.Context, employeeID int64, limit int) ([]domain.EstimationRecord, error) {
	query := estimationSelect + `
WHERE e.resource_id = $1
  AND e.is_final
ORDER BY e.recorded_at DESC, e.id DESC
LIMIT $2
`
	rows, err := conn(ctx, r.pool).Query(ctx, query, employeeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list final estimates: %w", err)
	}
	return collectEstimates(rows)
}

func (r *EstimationRepository) ListFinal(ctx context.Context, limit int) ([]domain.EstimationRecord, error) {
	query := estimationSelect + `
WHERE e.is_final
ORDER BY e.recorded_at DESC, e.id DESC
LIMIT $1
`
	rows, err := conn(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list final estimates: %w", err)
	}
	return collectEstimates(rows)
}

func collectEstimates(rows pgx.Rows) ([]domain.EstimationRecord, error) {
	defer rows.Close()

	records := make([]domain.EstimationRecord, 0)
	for rows.Next() {
		var rec domain.EstimationRecord
		var summary, resourceName, taskType pgtype.Text
		var resourceID pgtype.Int8
		var atCreation, current, final, spent, accuracy pgtype.Numeric

		err := rows.Scan(
			&rec.ID, &rec.TaskID, &summary, &resourceID, &resourceName, &taskType,
			&atCreation, &current, &final, &spent,
			&accuracy, &rec.IsFinal, &rec.RecordedAt,
		)
		if err != nil {
			return nil, err
		}

		rec.TaskSummary = utils.FromString(summary)
		rec.ResourceID = utils.FromNullInt8(resourceID)
		rec.ResourceName = utils.FromString(resourceName)
		rec.TaskType = utils.FromNullString(taskType)
		rec.ETAAtCreation = utils.FromNullNumeric(atCreation)
		rec.ETACurrent = utils.FromNullNumeric(current)
		rec.ETAFinal = utils.FromNullNumeric(final)
		rec.TimeSpentFinal = utils.FromNullNumeric(spent)
		rec.AccuracyScore = utils.FromNullNumeric(accuracy)
		records = append(records, rec)
	}
	return records, rows.Err()
}
