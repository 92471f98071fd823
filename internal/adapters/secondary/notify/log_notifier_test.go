package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/lorrc/workload-insights/internal/core/mocks"
	"github.com/stretchr/testify/assert"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLogNotifier_EmployeeAlertAddsEmployee(t *testing.T) {
	var buf bytes.Buffer
	employees := new(mocks.MockEmployeeRepository)
	employees.On("GetByID", context.Background(), int64(7)).
		Return(domain.Employee{ID: 7, Email: "dev@example.com"}, nil)

	n := NewLogNotifier(employees, []string{"lead@example.com"}, newBufferLogger(&buf))
	n.NotifyRiskAlert(context.Background(), domain.RiskAlert{
		ID:         1,
		Type:       domain.RiskPhantomBandwidth,
		Severity:   domain.SeverityHigh,
		EntityType: domain.EntityEmployee,
		EntityID:   "7",
		Title:      "Phantom bandwidth: Dev",
	})

	out := buf.String()
	assert.Contains(t, out, "to=lead@example.com")
	assert.Contains(t, out, "to=dev@example.com")
	employees.AssertExpectations(t)
}

func TestLogNotifier_LookupFailureStillNotifiesRecipients(t *testing.T) {
	var buf bytes.Buffer
	employees := new(mocks.MockEmployeeRepository)
	employees.On("GetByID", context.Background(), int64(9)).
		Return(domain.Employee{}, errors.New("db down"))

	n := NewLogNotifier(employees, []string{"lead@example.com"}, newBufferLogger(&buf))
	n.NotifyRiskAlert(context.Background(), domain.RiskAlert{
		Severity:   domain.SeverityCritical,
		EntityType: domain.EntityEmployee,
		EntityID:   "9",
		Title:      "x",
	})

	assert.Contains(t, buf.String(), "failed to get employee for notification")
	assert.Contains(t, buf.String(), "to=lead@example.com")
}

func TestLogNotifier_NoRecipients(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(nil, nil, newBufferLogger(&buf))
	n.NotifyRiskAlert(context.Background(), domain.RiskAlert{EntityType: domain.EntityTeam, EntityID: "org"})

	assert.Contains(t, buf.String(), "no recipients for risk alert")
	assert.NotContains(t, buf.String(), "notification sent")
}
