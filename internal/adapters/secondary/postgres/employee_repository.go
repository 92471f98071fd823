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

// activeEmployeeStatus is the HRMS emp_status of current staff.
const activeEmployeeStatus = 2

type EmployeeRepository struct {
	pool *pgxpool.Pool
}

var _ ports.EmployeeRepository = (*EmployeeRepository)(nil)

func NewEmployeeRepository(pool *pgxpool.Pool) ports.EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

const employeeColumns = `
SELECT e.emp_number, e.emp_firstname, e.emp_lastname, e.emp_work_email, j.job_title
FROM hs_hr_employee e
LEFT JOIN ohrm_job_title j ON j.id = e.job_title_code
`

func (r *EmployeeRepository) ListActive(ctx context.Context) ([]domain.Employee, error) {
	query := employeeColumns + `WHERE e.emp_status = $1 ORDER BY e.emp_number`

	rows, err := conn(ctx, r.pool).Query(ctx, query, activeEmployeeStatus)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	employees := make([]domain.Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return employees, nil
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id int64) (domain.Employee, error) {
	query := employeeColumns + `WHERE e.emp_status = $1 AND e.emp_number = $2`

	emp, err := scanEmployee(conn(ctx, r.pool).QueryRow(ctx, query, activeEmployeeStatus, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Employee{}, apperrors.ErrEmployeeNotFound
		}
		return domain.Employee{}, err
	}
	return emp, nil
}

func scanEmployee(row pgx.Row) (domain.Employee, error) {
	var id int64
	var first, last, email, jobTitle pgtype.Text
	if err := row.Scan(&id, &first, &last, &email, &jobTitle); err != nil {
		return domain.Employee{}, err
	}
	return domain.Employee{
		ID:        id,
		FirstName: utils.FromString(first),
		LastName:  utils.FromString(last),
		Email:     utils.FromString(email),
		JobTitle:  utils.FromString(jobTitle),
	}, nil
}

type AssigneeRepository struct {
	pool *pgxpool.Pool
}

var _ ports.AssigneeRepository = (*AssigneeRepository)(nil)

func NewAssigneeRepository(pool *pgxpool.Pool) ports.AssigneeRepository {
	return &AssigneeRepository{pool: pool}
}

func (r *AssigneeRepository) FindByEmail(ctx context.Context, sourceSystem, email string) (*domain.Assignee, error) {
	const query = `
SELECT id, username, realname, email
FROM mantis_user_table
WHERE source_system = $1
  AND lower(trim(email)) = $2
ORDER BY enabled DESC, id
LIMIT 1
`
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return nil, nil
	}

	var a domain.Assignee
	var username, realname, mail pgtype.Text
	err := conn(ctx, r.pool).QueryRow(ctx, query, sourceSystem, normalized).
		Scan(&a.ID, &username, &realname, &mail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query assignee: %w", err)
	}
	a.Username = utils.FromString(username)
	a.RealName = utils.FromString(realname)
	a.Email = utils.FromString(mail)
	return &a, nil
}
