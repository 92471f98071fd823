package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/lorrc/workload-insights/internal/core/ports"
	"github.com/lorrc/workload-insights/internal/core/utils"
)

// undefinedFunction is the SQLSTATE raised when a function is not installed.
const undefinedFunction = "42883"

// FunctionTaskSource reads active tasks through the workload_active_tasks
// database function.
type FunctionTaskSource struct {
	pool   *pgxpool.Pool
	fields CustomFields
}

var _ ports.TaskSource = (*FunctionTaskSource)(nil)

func NewFunctionTaskSource(pool *pgxpool.Pool, fields CustomFields) *FunctionTaskSource {
	return &FunctionTaskSource{pool: pool, fields: fields}
}

func (s *FunctionTaskSource) Name() string { return "workload_active_tasks" }

func (s *FunctionTaskSource) ActiveTasks(ctx context.Context, q ports.ActiveTaskQuery) ([]domain.TaskWorkload, error) {
	const query = `
SELECT task_id, project_id, handler_id, status, eta_text, time_spent_minutes
FROM workload_active_tasks($1, $2, $3::bigint, $4)
`
	if len(q.HandlerIDs) == 0 {
		return []domain.TaskWorkload{}, nil
	}

	rows, err := conn(ctx, s.pool).Query(ctx, query, q.SourceSystem, q.HandlerIDs, utils.ToNullInt8(q.ProjectID), s.fields.ETA)
	if err != nil {
		return nil, classifyFunctionError(err)
	}
	defer rows.Close()

	tasks := make([]domain.TaskWorkload, 0)
	for rows.Next() {
		var (
			t      domain.TaskWorkload
			status int32
			eta    pgtype.Text
		)
		if err := rows.Scan(&t.TaskID, &t.ProjectID, &t.HandlerID, &status, &eta, &t.TimeSpentMinutes); err != nil {
			return nil, err
		}
		t.Status = domain.StatusCode(status)
		t.ETAText = utils.FromNullString(eta)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyFunctionError(err)
	}
	return tasks, nil
}

func classifyFunctionError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedFunction {
		return fmt.Errorf("%w: %s", apperrors.ErrStrategyUnavailable, pgErr.Message)
	}
	return fmt.Errorf("call workload_active_tasks: %w", err)
}

// DirectTaskSource assembles active tasks from three plain queries run in one
// read-only snapshot.
type DirectTaskSource struct {
	pool   *pgxpool.Pool
	txm    *Transactor
	fields CustomFields
}

var _ ports.TaskSource = (*DirectTaskSource)(nil)

func NewDirectTaskSource(pool *pgxpool.Pool, fields CustomFields) *DirectTaskSource {
	return &DirectTaskSource{pool: pool, txm: NewTransactor(pool), fields: fields}
}

func (s *DirectTaskSource) Name() string { return "direct_scan" }

func (s *DirectTaskSource) ActiveTasks(ctx context.Context, q ports.ActiveTaskQuery) ([]domain.TaskWorkload, error) {
	if len(q.HandlerIDs) == 0 {
		return []domain.TaskWorkload{}, nil
	}

	var tasks []domain.TaskWorkload
	err := s.txm.InSnapshot(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		tasks, err = s.scan(ctx, tx, q)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *DirectTaskSource) scan(ctx context.Context, db Querier, q ports.ActiveTaskQuery) ([]domain.TaskWorkload, error) {
	const tasksQuery = `
SELECT b.id, b.project_id, b.handler_id, b.status
FROM mantis_bug_table b
WHERE b.source_system = $1
  AND b.handler_id = ANY ($2)
  AND b.status NOT IN (80, 90)
  AND (
      $3::bigint IS NULL
      OR EXISTS (
          SELECT 1 FROM mantis_project_table p
          WHERE p.id = b.project_id AND p.id = $3::bigint AND p.source_system = b.source_system
      )
  )
ORDER BY b.id
`
	const etaQuery = `
SELECT bug_id, value
FROM mantis_custom_field_string_table
WHERE field_id = $1
  AND source_system = $2
  AND bug_id = ANY ($3)
`
	const minutesQuery = `
SELECT bug_id, COALESCE(SUM(COALESCE(time_tracking, 0)), 0)::bigint
FROM mantis_bugnote_table
WHERE source_system = $1
  AND bug_id = ANY ($2)
GROUP BY bug_id
`

	// 1. Active tasks
	rows, err := db.Query(ctx, tasksQuery, q.SourceSystem, q.HandlerIDs, utils.ToNullInt8(q.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("query active tasks: %w", err)
	}
	tasks := make([]domain.TaskWorkload, 0)
	index := make(map[int64]int)
	ids := make([]int64, 0)
	for rows.Next() {
		var (
			t      domain.TaskWorkload
			status int32
		)
		if err := rows.Scan(&t.TaskID, &t.ProjectID, &t.HandlerID, &status); err != nil {
			rows.Close()
			return nil, err
		}
		t.Status = domain.StatusCode(status)
		index[t.TaskID] = len(tasks)
		ids = append(ids, t.TaskID)
		tasks = append(tasks, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query active tasks: %w", err)
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	// 2. ETA field values
	rows, err = db.Query(ctx, etaQuery, s.fields.ETA, q.SourceSystem, ids)
	if err != nil {
		return nil, fmt.Errorf("query eta fields: %w", err)
	}
	for rows.Next() {
		var (
			bugID int64
			value pgtype.Text
		)
		if err := rows.Scan(&bugID, &value); err != nil {
			rows.Close()
			return nil, err
		}
		if i, ok := index[bugID]; ok {
			tasks[i].ETAText = utils.FromNullString(value)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query eta fields: %w", err)
	}

	// 3. Logged minutes
	rows, err = db.Query(ctx, minutesQuery, q.SourceSystem, ids)
	if err != nil {
		return nil, fmt.Errorf("query time logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var bugID, minutes int64
		if err := rows.Scan(&bugID, &minutes); err != nil {
			return nil, err
		}
		if i, ok := index[bugID]; ok {
			tasks[i].TimeSpentMinutes = minutes
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query time logs: %w", err)
	}
	return tasks, nil
}
