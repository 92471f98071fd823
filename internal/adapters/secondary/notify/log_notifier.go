package notify

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

// LogNotifier is a secondary adapter that logs alert notifications instead of
// mailing them. It implements the ports.Notifier interface.
type LogNotifier struct {
	employees  ports.EmployeeRepository
	recipients []string
	logger     *slog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a notifier addressing the given recipients. Alerts
// about an employee also go to that employee.
func NewLogNotifier(employees ports.EmployeeRepository, recipients []string, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{
		employees:  employees,
		recipients: recipients,
		logger:     logger.With("component", "alert_notifier"),
	}
}

// NotifyRiskAlert logs one notification per recipient. It runs in a separate
// goroutine and handles its own errors.
func (n *LogNotifier) NotifyRiskAlert(ctx context.Context, alert domain.RiskAlert) {
	to := append([]string(nil), n.recipients...)

	// 1. Address the employee the alert is about
	if alert.EntityType == domain.EntityEmployee && n.employees != nil {
		if id, err := strconv.ParseInt(alert.EntityID, 10, 64); err == nil {
			emp, err := n.employees.GetByID(ctx, id)
			if err != nil {
				n.logger.WarnContext(ctx, "failed to get employee for notification",
					"employee_id", id,
					"error", err,
				)
			} else if emp.Email != "" {
				to = append(to, emp.Email)
			}
		}
	}

	if len(to) == 0 {
		n.logger.DebugContext(ctx, "no recipients for risk alert", "alert_id", alert.ID)
		return
	}

	// 2. Log the notification
	for _, recipient := range to {
		n.logger.InfoContext(ctx, "risk alert notification sent",
			"to", recipient,
			"subject", "["+string(alert.Severity)+"] "+alert.Title,
			"alert_id", alert.ID,
			"type", alert.Type,
			"entity_type", alert.EntityType,
			"entity_id", alert.EntityID,
		)
	}
}
