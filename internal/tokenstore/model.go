// Package tokenstore keeps a durable ledger of recipients that the push
// provider reported as stale, so producers can stop addressing them.
package tokenstore

import "time"

// InvalidRecipient is one stale token or topic.
type InvalidRecipient struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Kind       string    `gorm:"size:16;not null;uniqueIndex:idx_invalid_recipient" json:"kind"`
	Value      string    `gorm:"size:512;not null;uniqueIndex:idx_invalid_recipient" json:"value"`
	StatusCode int       `json:"statusCode"`
	Reason     string    `gorm:"size:1024" json:"reason,omitempty"`
	LastTaskID string    `gorm:"size:36" json:"lastTaskId"`
	Hits       int       `gorm:"not null;default:1" json:"hits"`
	FirstSeen  time.Time `gorm:"not null" json:"firstSeen"`
	LastSeen   time.Time `gorm:"not null;index" json:"lastSeen"`
}

// TableName pins the table name regardless of naming strategy.
func (InvalidRecipient) TableName() string {
	return "invalid_recipients"
}
