package domain

import (
	"strconv"
	"time"
)

// RiskAlertSnapshot matches the API response shape for risk alerts.
type RiskAlertSnapshot struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	IsResolved  bool           `json:"isResolved"`
	ResolvedBy  *string        `json:"resolvedBy"`
	ResolvedAt  *string        `json:"resolvedAt"`
	CreatedAt   string         `json:"createdAt"`
}

// NewRiskAlertSnapshot builds a snapshot from a domain alert.
func NewRiskAlertSnapshot(alert RiskAlert) RiskAlertSnapshot {
	var resolvedAt *string
	if alert.ResolvedAt != nil {
		value := alert.ResolvedAt.UTC().Format(time.RFC3339)
		resolvedAt = &value
	}

	metadata := alert.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return RiskAlertSnapshot{
		ID:          strconv.FormatInt(alert.ID, 10),
		Type:        string(alert.Type),
		Severity:    string(alert.Severity),
		EntityType:  string(alert.EntityType),
		EntityID:    alert.EntityID,
		Title:       alert.Title,
		Description: alert.Description,
		Metadata:    metadata,
		IsResolved:  alert.IsResolved,
		ResolvedBy:  alert.ResolvedBy,
		ResolvedAt:  resolvedAt,
		CreatedAt:   alert.CreatedAt.UTC().Format(time.RFC3339),
	}
}
