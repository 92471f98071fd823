package utils

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lorrc/workload-insights/internal/core/domain"
)

// FromString converts a pgtype.Text to a domain's primitive string.
// A NULL value is converted to an empty string ("").
func FromString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// FromNullString converts a pgtype.Text to a *string. NULL becomes nil.
func FromNullString(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// FromNullNumeric converts a NUMERIC column to a *float64. NULL, NaN and
// values that do not fit a float64 become nil.
func FromNullNumeric(n pgtype.Numeric) *float64 {
	if !n.Valid || n.NaN {
		return nil
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// FromNullInt8 converts a BIGINT column to a *int64. NULL becomes nil.
func FromNullInt8(i pgtype.Int8) *int64 {
	if !i.Valid {
		return nil
	}
	v := i.Int64
	return &v
}

// FromNullTimestamptz converts a TIMESTAMPTZ column to a *time.Time.
func FromNullTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// ToNullInt8 converts an optional id to a pgtype.Int8.
func ToNullInt8(i *int64) pgtype.Int8 {
	if i == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: *i, Valid: true}
}

// ToStatusCode converts a nullable status column.
func ToStatusCode(i pgtype.Int4) *domain.StatusCode {
	if !i.Valid {
		return nil
	}
	c := domain.StatusCode(i.Int32)
	return &c
}

// ToResolutionCode converts a nullable resolution column.
func ToResolutionCode(i pgtype.Int4) *domain.ResolutionCode {
	if !i.Valid {
		return nil
	}
	c := domain.ResolutionCode(i.Int32)
	return &c
}
