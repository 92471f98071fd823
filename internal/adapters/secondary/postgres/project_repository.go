package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/lorrc/workload-insights/internal/core/ports"
	"github.com/lorrc/workload-insights/internal/core/utils"
)

type ProjectRepository struct {
	pool   *pgxpool.Pool
	fields CustomFields
}

var _ ports.ProjectRepository = (*ProjectRepository)(nil)

func NewProjectRepository(pool *pgxpool.Pool, fields CustomFields) *ProjectRepository {
	return &ProjectRepository{pool: pool, fields: fields}
}

func (r *ProjectRepository) ListEnabled(ctx context.Context, sourceSystem string) ([]domain.Project, error) {
	const query = `
SELECT id, name, enabled
FROM mantis_project_table
WHERE source_system = $1
  AND enabled = 1
ORDER BY name, id
`
	rows, err := conn(ctx, r.pool).Query(ctx, query, sourceSystem)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) GetByID(ctx context.Context, sourceSystem string, id int64) (domain.Project, error) {
	const query = `
SELECT id, name, enabled
FROM mantis_project_table
WHERE source_system = $1
  AND id = $2
`
	p, err := scanProject(conn(ctx, r.pool).QueryRow(ctx, query, sourceSystem, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Project{}, apperrors.ErrProjectNotFound
		}
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// Stats counts the project's tasks and sums their estimates and logged
// minutes. Estimates are parsed with the same rules as the metrics engine.
func (r *ProjectRepository) Stats(ctx context.Context, sourceSystem string, projectID int64) (domain.ProjectStats, error) {
	const query = `
SELECT b.status, eta.value, n.minutes
FROM mantis_bug_table b
LEFT JOIN mantis_custom_field_string_table eta
       ON eta.bug_id = b.id AND eta.field_id = $3 AND eta.source_system = b.source_system
LEFT JOIN LATERAL (
    SELECT COALESCE(SUM(COALESCE(bn.time_tracking, 0)), 0)::bigint AS minutes
    FROM mantis_bugnote_table bn
    WHERE bn.bug_id = b.id AND bn.source_system = b.source_system
) n ON true
WHERE b.source_system = $1
  AND b.project_id = $2
`
	rows, err := conn(ctx, r.pool).Query(ctx, query, sourceSystem, projectID, r.fields.ETA)
	if err != nil {
		return domain.ProjectStats{}, fmt.Errorf("project stats: %w", err)
	}
	defer rows.Close()

	stats := domain.ProjectStats{ProjectID: projectID}
	for rows.Next() {
		var status pgtype.Int4
		var eta pgtype.Text
		var minutes int64
		if err := rows.Scan(&status, &eta, &minutes); err != nil {
			return domain.ProjectStats{}, err
		}

		stats.TotalTasks++
		if domain.IsActiveStatus(utils.ToStatusCode(status)) {
			stats.ActiveTasks++
		} else if status.Valid {
			stats.CompletedTasks++
		}
		hours, _ := domain.ParseHours(utils.FromNullString(eta))
		stats.ETAHours += hours
		stats.SpentMinutes += minutes
	}
	if err := rows.Err(); err != nil {
		return domain.ProjectStats{}, fmt.Errorf("project stats: %w", err)
	}
	return stats, nil
}

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	var enabled int32
	if err := row.Scan(&p.ID, &p.Name, &enabled); err != nil {
		return domain.Project{}, err
	}
	p.Enabled = enabled == 1
	return p, nil
}
