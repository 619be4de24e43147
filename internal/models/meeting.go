package models

import "time"

// Meeting is a bookable video-meeting link shared across sessions.
type Meeting struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Link       string    `db:"link" json:"link"`
	ExternalID *string   `db:"external_id" json:"external_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
