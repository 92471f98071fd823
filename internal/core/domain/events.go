package domain

// EventType defines the type of real-time event.
type EventType string

const (
	EventRiskAlertCreated  EventType = "RISK_ALERT_CREATED"
	EventRiskAlertResolved EventType = "RISK_ALERT_RESOLVED"
)

// AlertsRoom receives every alert event.
const AlertsRoom = "alerts"

// Event is the payload sent over WebSocket.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
	Rooms   []string    `json:"-"` // Used for routing to subscribed rooms
}

// AlertRooms lists the rooms an alert event is delivered to: every alert
// subscriber, subscribers of its severity, and subscribers of its entity.
func AlertRooms(a RiskAlert) []string {
	return []string{
		AlertsRoom,
		AlertsRoom + ":" + string(a.Severity),
		string(a.EntityType) + ":" + a.EntityID,
	}
}

// NewAlertEvent wraps an alert snapshot as a routable event.
func NewAlertEvent(t EventType, a RiskAlert) Event {
	return Event{Type: t, Payload: NewRiskAlertSnapshot(a), Rooms: AlertRooms(a)}
}
