package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// NotificationType enumerates notifications emitted by pairing and scheduling.
type NotificationType string

const (
	NotificationTypeMatchProposed  NotificationType = "MATCH_PROPOSED"
	NotificationTypeMatchConfirmed NotificationType = "MATCH_CONFIRMED"
	NotificationTypeQueueCleared   NotificationType = "QUEUE_CLEARED"
)

// Notification is an in-app notification addressed to a profile.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	ProfileID string           `db:"profile_id" json:"profile_id"`
	Type      NotificationType `db:"type" json:"type"`
	Payload   types.JSONText   `db:"payload" json:"payload"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// ReminderStatus tracks a scheduled session reminder.
type ReminderStatus string

const (
	ReminderStatusScheduled ReminderStatus = "SCHEDULED"
	ReminderStatusCancelled ReminderStatus = "CANCELLED"
)

// SessionReminder is a reminder handed to the external email dispatcher.
type SessionReminder struct {
	SessionID string         `db:"session_id" json:"session_id"`
	SendAt    time.Time      `db:"send_at" json:"send_at"`
	Status    ReminderStatus `db:"status" json:"status"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
