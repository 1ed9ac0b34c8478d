package push

import "google.golang.org/api/fcm/v1"

// androidPriorityHigh asks FCM to wake the device immediately.
const androidPriorityHigh = "HIGH"

// BuildMessage converts a task into an FCM message: the payload, high
// Android priority and exactly one of Token or Topic.
func BuildMessage(task *Task) *Message {
	msg := &fcm.Message{
		Notification: task.Payload,
		Android: &fcm.AndroidConfig{
			Priority: androidPriorityHigh,
		},
	}

	switch task.Recipient.Kind {
	case RecipientToken:
		msg.Token = task.Recipient.Value
	case RecipientTopic:
		msg.Topic = task.Recipient.Value
	}

	return msg
}
