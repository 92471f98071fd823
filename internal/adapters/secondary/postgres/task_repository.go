package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/lorrc/workload-insights/internal/core/ports"
	"github.com/lorrc/workload-insights/internal/core/utils"
)

// TaskRepository implements ports.TaskRepository for PostgreSQL.
type TaskRepository struct {
	pool   *pgxpool.Pool
	fields CustomFields
}

var _ ports.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository creates a new task repository
func NewTaskRepository(pool *pgxpool.Pool, fields CustomFields) *TaskRepository {
	return &TaskRepository{pool: pool, fields: fields}
}

// taskSelect reads a task with its project name, custom fields and logged
// minutes. Every join stays within the task's origin system.
// $1 = source system, $2 = ETA field, $3 = task type fields.
const taskSelect = `
SELECT b.id, b.project_id, p.name, b.handler_id, u.realname, u.email, b.reporter_id, b.summary,
       b.status, b.resolution, eta.value, b.eta, tt.value, b.due_date,
       b.last_updated, b.date_submitted, n.minutes
FROM mantis_bug_table b
LEFT JOIN mantis_project_table p
       ON p.id = b.project_id AND p.source_system = b.source_system
LEFT JOIN mantis_user_table u
       ON u.id = b.handler_id AND u.source_system = b.source_system
LEFT JOIN mantis_custom_field_string_table eta
       ON eta.bug_id = b.id AND eta.field_id = $2 AND eta.source_system = b.source_system
LEFT JOIN LATERAL (
    SELECT cf.value
    FROM mantis_custom_field_string_table cf
    WHERE cf.bug_id = b.id
      AND cf.source_system = b.source_system
      AND cf.field_id = ANY ($3::int[])
      AND COALESCE(trim(cf.value), '') <> ''
    ORDER BY array_position($3::int[], cf.field_id)
    LIMIT 1
) tt ON true
LEFT JOIN LATERAL (
    SELECT COALESCE(SUM(COALESCE(bn.time_tracking, 0)), 0)::bigint AS minutes
    FROM mantis_bugnote_table bn
    WHERE bn.bug_id = b.id AND bn.source_system = b.source_system
) n ON true
WHERE b.source_system = $1
`

func (r *TaskRepository) ListByHandler(ctx context.Context, q ports.TaskListQuery) ([]domain.Task, error) {
	query := taskSelect + `
  AND b.handler_id = $4
  AND (NOT $5::boolean OR (b.status IS NOT NULL AND b.status NOT IN (80, 90)))
ORDER BY b.last_updated DESC, b.id DESC
LIMIT $6
`
	rows, err := conn(ctx, r.pool).Query(ctx, query,
		q.SourceSystem, r.fields.ETA, r.fields.TaskType,
		q.HandlerID, q.ActiveOnly, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by handler: %w", err)
	}
	return collectTasks(rows)
}

// ListByProject lists a project's tasks, newest update first.
func (r *TaskRepository) ListByProject(ctx context.Context, q ports.ProjectTaskQuery) ([]domain.Task, error) {
	query := taskSelect + `
  AND b.project_id = $4
  AND (NOT $5::boolean OR (b.status IS NOT NULL AND b.status NOT IN (80, 90)))
ORDER BY b.last_updated DESC, b.id DESC
LIMIT NULLIF($6::int, 0)
`
	rows, err := conn(ctx, r.pool).Query(ctx, query,
		q.SourceSystem, r.fields.ETA, r.fields.TaskType,
		q.ProjectID, q.ActiveOnly, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by project: %w", err)
	}
	return collectTasks(rows)
}

// ListClosed lists Resolved/Closed tasks last updated inside the window.
func (r *TaskRepository) ListClosed(ctx context.Context, q ports.ClosedTaskQuery) ([]domain.Task, error) {
	query := taskSelect + `
  AND b.status IN (80, 90)
  AND b.last_updated >= $4
  AND b.last_updated < $5
  AND ($6::bigint IS NULL OR b.project_id = $6)
ORDER BY b.last_updated, b.id
`
	rows, err := conn(ctx, r.pool).Query(ctx, query,
		q.SourceSystem, r.fields.ETA, r.fields.TaskType,
		q.Since, q.Until, q.ProjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list closed tasks: %w", err)
	}
	return collectTasks(rows)
}

func (r *TaskRepository) ListCurrent(ctx context.Context, sourceSystem string) ([]domain.Task, error) {
	query := taskSelect + `
  AND b.status IN (40, 50)
ORDER BY b.id
`
	rows, err := conn(ctx, r.pool).Query(ctx, query, sourceSystem, r.fields.ETA, r.fields.TaskType)
	if err != nil {
		return nil, fmt.Errorf("list current tasks: %w", err)
	}
	return collectTasks(rows)
}

func (r *TaskRepository) CountClosedSince(ctx context.Context, sourceSystem string, handlerID int64, since time.Time) (int, error) {
	const query = `
SELECT COUNT(*)
FROM mantis_bug_table
WHERE source_system = $1
  AND handler_id = $2
  AND status IN (80, 90)
  AND last_updated >= $3
`
	var n int
	if err := conn(ctx, r.pool).QueryRow(ctx, query, sourceSystem, handlerID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count closed tasks: %w", err)
	}
	return n, nil
}

func (r *TaskRepository) CountActive(ctx context.Context, sourceSystem string, handlerID int64) (int, error) {
	const query = `
SELECT COUNT(*)
FROM mantis_bug_table
WHERE source_system = $1
  AND handler_id = $2
  AND status IS NOT NULL
  AND status NOT IN (80, 90)
`
	var n int
	if err := conn(ctx, r.pool).QueryRow(ctx, query, sourceSystem, handlerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active tasks: %w", err)
	}
	return n, nil
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	var projectName, handlerName, handlerEmail, summary, etaText, taskType pgtype.Text
	var handlerID, reporterID pgtype.Int8
	var status, resolution pgtype.Int4
	var etaColumn pgtype.Numeric
	var dueDate pgtype.Timestamptz

	err := row.Scan(
		&t.ID, &t.ProjectID, &projectName, &handlerID, &handlerName, &handlerEmail, &reporterID, &summary,
		&status, &resolution, &etaText, &etaColumn, &taskType, &dueDate,
		&t.LastUpdated, &t.CreatedAt, &t.TimeSpentMinutes,
	)
	if err != nil {
		return domain.Task{}, err
	}

	t.ProjectName = utils.FromString(projectName)
	t.Summary = utils.FromString(summary)
	t.HandlerID = utils.FromNullInt8(handlerID)
	t.HandlerName = utils.FromString(handlerName)
	t.HandlerEmail = utils.FromString(handlerEmail)
	t.ReporterID = utils.FromNullInt8(reporterID)
	t.Status = utils.ToStatusCode(status)
	t.Resolution = utils.ToResolutionCode(resolution)
	t.ETAText = utils.FromNullString(etaText)
	t.ETAColumn = utils.FromNullNumeric(etaColumn)
	t.TaskType = utils.FromNullString(taskType)
	t.DueDate = utils.FromNullTimestamptz(dueDate)
	return t, nil
}
