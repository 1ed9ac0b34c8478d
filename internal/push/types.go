// Package push implements best-effort asynchronous delivery of push
// notifications through Firebase Cloud Messaging.
//
// Producers enqueue tasks with Dispatcher.PushTo; a fixed pool of workers
// drains the queue, builds an FCM message per task and delivers it with a
// bounded linear-backoff retry. Nothing is persisted: queued tasks are lost
// when the process exits.
package push

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/fcm/v1"
)

// Common errors returned by the push package
var (
	ErrNoCredentials   = errors.New("no FCM credentials configured")
	ErrNoProjectID     = errors.New("FCM project id could not be determined")
	ErrAlreadyStarted  = errors.New("workers already started")
	ErrEmptyRecipient  = errors.New("recipient value is empty")
	ErrInvalidPoolSize = errors.New("worker count must be at least 1")
)

// Notification is the provider payload, passed through unmodified.
type Notification = fcm.Notification

// Message is the fully-formed provider message for one delivery.
type Message = fcm.Message

// RecipientKind selects the addressing mode of a Recipient
type RecipientKind int

const (
	// RecipientToken addresses a single device registration token
	RecipientToken RecipientKind = iota
	// RecipientTopic addresses every subscriber of a named topic
	RecipientTopic
)

func (k RecipientKind) String() string {
	switch k {
	case RecipientToken:
		return "token"
	case RecipientTopic:
		return "topic"
	default:
		return "unknown"
	}
}

// ParseRecipientKind converts "token" or "topic" to a RecipientKind.
func ParseRecipientKind(s string) (RecipientKind, error) {
	switch s {
	case "token":
		return RecipientToken, nil
	case "topic":
		return RecipientTopic, nil
	default:
		return 0, fmt.Errorf("unknown recipient kind %q", s)
	}
}

// Recipient is either a device token or a topic, never both.
// Construct it with Token or Topic.
type Recipient struct {
	Kind  RecipientKind
	Value string
}

// Token addresses a single device.
func Token(token string) Recipient {
	return Recipient{Kind: RecipientToken, Value: token}
}

// Topic addresses a topic's subscribers.
func Topic(topic string) Recipient {
	return Recipient{Kind: RecipientTopic, Value: topic}
}

// Validate rejects empty values and unknown kinds.
func (r Recipient) Validate() error {
	if r.Kind != RecipientToken && r.Kind != RecipientTopic {
		return fmt.Errorf("invalid recipient kind %d", r.Kind)
	}
	if r.Value == "" {
		return ErrEmptyRecipient
	}
	return nil
}

// String renders the recipient for logs with tokens shortened.
func (r Recipient) String() string {
	if r.Kind == RecipientToken {
		return "token:" + redactToken(r.Value)
	}
	return r.Kind.String() + ":" + r.Value
}

// redactToken keeps the first and last few characters of a device token
func redactToken(token string) string {
	const keep = 6
	if len(token) <= 2*keep {
		return token
	}
	return token[:keep] + "..." + token[len(token)-keep:]
}

// Task is one queued unit of delivery work. It is not modified after
// NewTask returns.
type Task struct {
	ID         string
	Recipient  Recipient
	Payload    *Notification
	EnqueuedAt time.Time
}

// NewTask creates a task with a fresh correlation id.
func NewTask(recipient Recipient, payload *Notification) *Task {
	return &Task{
		ID:         uuid.NewString(),
		Recipient:  recipient,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
}

// TaskState is the lifecycle state of a task inside the retry executor
type TaskState int

const (
	// StatePending means queued, not yet attempted
	StatePending TaskState = iota
	// StateAttempting means a delivery attempt or backoff wait is in progress
	StateAttempting
	// StateDelivered means the provider accepted the message
	StateDelivered
	// StateInvalidating means the provider rejected the recipient as stale
	StateInvalidating
	// StatePermanentlyFailed means a non-retryable error ended the task
	StatePermanentlyFailed
	// StateExhausted means every attempt failed with a retryable error
	StateExhausted
)

func (s TaskState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateDelivered:
		return "delivered"
	case StateInvalidating:
		return "invalidating"
	case StatePermanentlyFailed:
		return "permanently_failed"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further attempts will be made.
func (s TaskState) Terminal() bool {
	return s >= StateDelivered
}
