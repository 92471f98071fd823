package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

type HolidayRepository struct {
	pool *pgxpool.Pool
}

var _ ports.HolidayRepository = (*HolidayRepository)(nil)

func NewHolidayRepository(pool *pgxpool.Pool) *HolidayRepository {
	return &HolidayRepository{pool: pool}
}

// ListBetween returns the holiday dates in [start, end], both inclusive.
func (r *HolidayRepository) ListBetween(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	const query = `
SELECT date
FROM ohrm_holiday
WHERE date BETWEEN $1::date AND $2::date
ORDER BY date
`
	rows, err := conn(ctx, r.pool).Query(ctx, query, start.Format(time.DateOnly), end.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	days := make([]time.Time, 0)
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
