package mqtt

import (
	"time"

	"github.com/tphakala/push-dispatcher/internal/push"
)

// InvalidationEvent is the JSON document published for every stale recipient.
//
// Field names are part of the event contract consumed by other services.
type InvalidationEvent struct {
	TaskID        string    `json:"taskId"`
	RecipientKind string    `json:"recipientKind"` // "token" or "topic"
	Recipient     string    `json:"recipient"`
	StatusCode    int       `json:"statusCode"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

const maxReasonLength = 512

// NewInvalidationEvent converts inv to its wire form.
func NewInvalidationEvent(inv push.Invalidation) InvalidationEvent {
	reason := inv.Body
	if len(reason) > maxReasonLength {
		reason = reason[:maxReasonLength]
	}
	at := inv.At
	if at.IsZero() {
		at = time.Now()
	}
	return InvalidationEvent{
		TaskID:        inv.TaskID,
		RecipientKind: inv.Recipient.Kind.String(),
		Recipient:     inv.Recipient.Value,
		StatusCode:    inv.StatusCode,
		Reason:        reason,
		Timestamp:     at.UTC(),
	}
}
