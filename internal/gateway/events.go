package gateway

import (
	"time"

	"github.com/google/uuid"

	"github.com/mementolab/wagate/internal/bus"
)

// Domain event kinds published on the bus. Subscribers filter by the
// "session." and "chat." namespaces.
const (
	EventMessage          = "chat.message"
	EventChatsUpdated     = "chat.updated"
	EventStatusChange     = "session.status_change"
	EventAuthenticated    = "session.authenticated"
	EventSessionRestarted = "session.restarted"
	EventError            = "gateway.error"
)

// StatusChangePayload carries a state observation.
type StatusChangePayload struct {
	Session string `json:"session"`
	From    State  `json:"from"`
	To      State  `json:"to"`
}

// AuthenticatedPayload is emitted exactly once per authentication, on the
// transition into WORKING.
type AuthenticatedPayload struct {
	Session string `json:"session"`
	Method  string `json:"method"`
	EventID string `json:"eventId,omitempty"`
}

// ChatsUpdatedPayload signals that a chat listing produced fresh data.
type ChatsUpdatedPayload struct {
	Session string `json:"session"`
	Count   int    `json:"count"`
}

// RestartedPayload signals a completed restart cycle.
type RestartedPayload struct {
	Session string `json:"session"`
}

// ErrorPayload carries a background failure that was absorbed locally.
type ErrorPayload struct {
	Session string `json:"session"`
	Scope   string `json:"scope"`
	Err     string `json:"error"`
}

func (g *Gateway) publish(kind string, payload any) {
	g.bus.Publish(bus.Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Timestamp: g.now(),
		Payload:   payload,
	})
}

// publishSnapshot hands the current connectivity view to the Broadcaster.
func (g *Gateway) publishSnapshot(sess Session, at time.Time) {
	if g.broadcaster == nil {
		return
	}
	g.broadcaster.Broadcast("connectivity", ConnectivitySnapshot{
		Session:   sess.Name,
		State:     sess.State,
		Connected: sess.Ready(),
		Timestamp: at.UnixMilli(),
	})
}
