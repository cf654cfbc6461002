// Package ws implements the live-delivery side of the messaging subsystem.
// This file defines the event envelope and the delivery router.
package ws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/aulalibre/go-aula-backend/internal/domain"
)

// Event type tags pushed over live connections.
const (
	EventMensaje      = "mensaje"
	EventNotificacion = "notificacion"
)

// Event is the envelope for every server push. Data carries the persisted
// record the event announces, exactly as the REST API would serialize it,
// so clients reuse one decoding path.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MessageEvent wraps a freshly persisted chat message.
func MessageEvent(m *domain.Message) Event {
	return Event{Type: EventMensaje, Data: m}
}

// NotificationEvent wraps a freshly persisted notification.
func NotificationEvent(n *domain.Notification) Event {
	return Event{Type: EventNotificacion, Data: n}
}

// Router fans a persisted write out to the recipient's live connections.
//
// Pushes are best effort by contract: the triggering business operation
// has already committed by the time Push runs, so no outcome here may
// surface to that caller. A full buffer or a connection closing mid-push
// drops the event for that connection only; the persisted row remains the
// delivery guarantee and the client's next list call the retry mechanism.
type Router struct {
	reg *Registry
}

// NewRouter constructs a Router over the given registry.
func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// Push delivers ev to every live connection of userID. It never blocks on
// a slow connection and never returns an error; failures are counted and
// logged at debug level only.
func (rt *Router) Push(userID int64, ev Event) {
	conns := rt.reg.ConnectionsFor(userID)
	if len(conns) == 0 {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.Type).Msg("push payload marshal failed")
		return
	}

	for _, c := range conns {
		if c.TrySend(data) {
			wsPushes.WithLabelValues("delivered").Inc()
		} else {
			wsPushes.WithLabelValues("dropped").Inc()
			log.Debug().
				Str("connection_id", c.ID).
				Int64("user_id", userID).
				Str("event", ev.Type).
				Msg("push dropped")
		}
	}
}
