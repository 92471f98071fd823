package websocket

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newTestClient(hub *Hub, employeeID int64, canSeeAll bool) *Client {
	return NewClient(hub, nil, employeeID, "viewer", canSeeAll, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func receive(t *testing.T, c *Client) domain.Event {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.Event{}
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.send:
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RoutesAlertsByRoom(t *testing.T) {
	hub := newTestHub(t)
	lead := newTestClient(hub, 1, true)
	dev := newTestClient(hub, 7, false)
	other := newTestClient(hub, 8, false)
	hub.Register <- lead
	hub.Register <- dev
	hub.Register <- other

	require.Eventually(t, func() bool { return hub.GetClientCount() == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.GetClientsInRoom(domain.AlertsRoom))

	alert := domain.RiskAlert{
		ID:         5,
		Type:       domain.RiskPhantomBandwidth,
		Severity:   domain.SeverityHigh,
		EntityType: domain.EntityEmployee,
		EntityID:   "7",
	}
	require.NoError(t, hub.Broadcast(domain.NewAlertEvent(domain.EventRiskAlertCreated, alert)))

	ev := receive(t, lead)
	assert.Equal(t, domain.EventRiskAlertCreated, ev.Type)
	snapshot, ok := ev.Payload.(domain.RiskAlertSnapshot)
	require.True(t, ok)
	assert.Equal(t, "5", snapshot.ID)

	receive(t, dev)
	assertNothing(t, other)
	// A client in several matching rooms still gets one copy.
	assertNothing(t, lead)
}

func TestHub_SubscriptionRules(t *testing.T) {
	hub := newTestHub(t)
	lead := newTestClient(hub, 1, true)
	viewer := newTestClient(hub, 2, false)
	hub.Register <- lead
	hub.Register <- viewer
	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, time.Second, 10*time.Millisecond)

	viewer.handleIncomingMessage([]byte(`{"type":"SUBSCRIBE","payload":{"room":"alerts:critical"}}`))
	lead.handleIncomingMessage([]byte(`{"type":"SUBSCRIBE","payload":{"room":"project:12"}}`))

	assert.False(t, viewer.HasSubscription("alerts:critical"))
	assert.True(t, lead.HasSubscription("project:12"))

	sinkhole := domain.RiskAlert{Severity: domain.SeverityCritical, EntityType: domain.EntityProject, EntityID: "12"}
	lead.handleIncomingMessage([]byte(`{"type":"UNSUBSCRIBE","payload":{"room":"alerts"}}`))
	require.NoError(t, hub.Broadcast(domain.NewAlertEvent(domain.EventRiskAlertCreated, sinkhole)))

	receive(t, lead)
	assertNothing(t, viewer)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient(hub, 3, true)
	hub.Register <- c
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Unregister <- c
	require.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, hub.GetRoomCount())

	_, open := <-c.send
	assert.False(t, open)
}

func TestClient_PingGetsPong(t *testing.T) {
	hub := newTestHub(t)
	c := newTestClient(hub, 4, false)

	c.handleIncomingMessage([]byte(`{"type":"PING"}`))
	assert.Equal(t, domain.EventType("PONG"), receive(t, c).Type)
}
