package domain

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/YagoMoreiraDev/projeto-helpdesk/errors"
)

// Notification event type constants.
const (
	EventTicketCreated  = "TICKET_CREATED"
	EventTicketAssigned = "TICKET_ASSIGNED"
	EventStatusChanged  = "STATUS_CHANGED"
)

// NotificationEvent is a single pushed delta for a ticket. Delivery is
// at-least-once and unordered across reconnects; consumers must fold events
// through an idempotent merge.
type NotificationEvent struct {
	Type      string    `json:"type"`
	Title     string    `json:"title,omitempty"`
	Payload   *Ticket   `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// ValidEventTypes returns the set of valid notification event types.
func ValidEventTypes() []string {
	return []string{EventTicketCreated, EventTicketAssigned, EventStatusChanged}
}

// IsValidEventType checks whether the given string is a valid event type.
func IsValidEventType(t string) bool {
	for _, v := range ValidEventTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// ParseEvent decodes a pushed message into a NotificationEvent. Messages
// that are not JSON, carry an unknown type, or lack a ticket payload are
// rejected with ErrMalformedEvent.
func ParseEvent(data []byte) (*NotificationEvent, error) {
	var ev NotificationEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedEvent, err)
	}
	if !IsValidEventType(ev.Type) {
		return nil, fmt.Errorf("%w: unknown event type %q", apperrors.ErrMalformedEvent, ev.Type)
	}
	if ev.Payload == nil || ev.Payload.ID == "" {
		return nil, fmt.Errorf("%w: missing ticket payload", apperrors.ErrMalformedEvent)
	}
	return &ev, nil
}
