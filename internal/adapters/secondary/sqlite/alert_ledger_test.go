package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *AlertLedger {
	t.Helper()
	ledger, err := Open(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func TestOpen_FileLedgerUsesWALAndBusyTimeout(t *testing.T) {
	ledger := openTestLedger(t)

	var mode string
	require.NoError(t, ledger.db.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, ledger.db.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout))
	assert.Equal(t, busyTimeoutMillis, timeout)
}

func TestOpen_SecondLedgerOnSameFileSharesAlerts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alerts.db")
	api, err := Open(path)
	require.NoError(t, err)
	defer api.Close()
	cli, err := Open(path)
	require.NoError(t, err)
	defer cli.Close()

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	_, inserted, err := api.Create(ctx, overrunAlert("7", now))
	require.NoError(t, err)
	require.True(t, inserted)

	_, inserted, err = cli.Create(ctx, overrunAlert("7", now.Add(time.Minute)))
	require.NoError(t, err)
	assert.False(t, inserted)
}

func overrunAlert(taskID string, at time.Time) domain.RiskAlert {
	return domain.RiskAlert{
		Type:        domain.RiskSilentOverrun,
		Severity:    domain.SeverityCritical,
		EntityType:  domain.EntityTask,
		EntityID:    taskID,
		Title:       "Silent overrun: Build",
		Description: "Time spent (25h) is 250% of ETA (10h)",
		Metadata:    map[string]any{"taskId": taskID, "overrunPct": 250.0},
		CreatedAt:   at,
	}
}

func TestAlertLedger_CreateDedupAndResolve(t *testing.T) {
	ctx := context.Background()
	ledger := openTestLedger(t)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	created, inserted, err := ledger.Create(ctx, overrunAlert("42", now))
	require.NoError(t, err)
	require.True(t, inserted)
	assert.Equal(t, "42", created.EntityID)
	assert.Equal(t, now, created.CreatedAt)
	assert.Equal(t, 250.0, created.Metadata["overrunPct"])

	_, inserted, err = ledger.Create(ctx, overrunAlert("42", now.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, inserted)

	found, err := ledger.FindUnresolved(ctx, created.Key())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	resolved, err := ledger.Resolve(ctx, created.ID, "lead", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, now.Add(2*time.Hour), *resolved.ResolvedAt)

	_, err = ledger.Resolve(ctx, created.ID, "lead", now)
	assert.ErrorIs(t, err, apperrors.ErrAlertAlreadyResolved)

	_, err = ledger.Resolve(ctx, 9999, "lead", now)
	assert.ErrorIs(t, err, apperrors.ErrAlertNotFound)

	_, inserted, err = ledger.Create(ctx, overrunAlert("42", now.Add(3*time.Hour)))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestAlertLedger_List(t *testing.T) {
	ctx := context.Background()
	ledger := openTestLedger(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"1", "2", "3"} {
		_, _, err := ledger.Create(ctx, overrunAlert(id, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	sinkhole := domain.RiskAlert{
		Type:       domain.RiskProjectSinkhole,
		Severity:   domain.SeverityHigh,
		EntityType: domain.EntityProject,
		EntityID:   "7",
		Title:      "Project sinkhole: Apollo",
		CreatedAt:  base.Add(10 * time.Minute),
	}
	_, _, err := ledger.Create(ctx, sinkhole)
	require.NoError(t, err)

	all, err := ledger.List(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, domain.RiskProjectSinkhole, all[0].Type)
	assert.Equal(t, "3", all[1].EntityID)

	critical, err := ledger.List(ctx, domain.AlertFilter{Severity: domain.SeverityCritical, Limit: 2})
	require.NoError(t, err)
	require.Len(t, critical, 2)
	assert.Equal(t, "3", critical[0].EntityID)
	assert.Equal(t, "2", critical[1].EntityID)

	_, err = ledger.Resolve(ctx, all[0].ID, "lead", base)
	require.NoError(t, err)
	open, err := ledger.List(ctx, domain.AlertFilter{Unresolved: true, EntityType: domain.EntityProject})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestAlertLedger_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "alerts.db")

	ledger, err := Open(path)
	require.NoError(t, err)
	_, _, err = ledger.Create(ctx, overrunAlert("5", time.Now()))
	require.NoError(t, err)
	require.NoError(t, ledger.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Ping(ctx))

	alerts, err := reopened.List(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}
