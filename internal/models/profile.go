package models

import (
	"time"

	"github.com/lib/pq"
)

// ProfileRole distinguishes tutors from students.
type ProfileRole string

const (
	ProfileRoleTutor   ProfileRole = "TUTOR"
	ProfileRoleStudent ProfileRole = "STUDENT"
)

// Valid reports whether the role is known.
func (r ProfileRole) Valid() bool {
	return r == ProfileRoleTutor || r == ProfileRoleStudent
}

// ProfileStatus is the lifecycle status of a profile.
type ProfileStatus string

const (
	ProfileStatusActive   ProfileStatus = "ACTIVE"
	ProfileStatusInactive ProfileStatus = "INACTIVE"
)

// Profile is a tutor or student identity with matching metadata.
type Profile struct {
	ID           string              `db:"id" json:"id"`
	Role         ProfileRole         `db:"role" json:"role"`
	FullName     string              `db:"full_name" json:"full_name"`
	Email        string              `db:"email" json:"email"`
	Status       ProfileStatus       `db:"status" json:"status"`
	Subjects     pq.StringArray      `db:"subjects" json:"subjects"`
	Languages    pq.StringArray      `db:"languages" json:"languages"`
	Availability AvailabilityWindows `db:"availability" json:"availability"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// Active reports whether the profile may take part in matching and scheduling.
func (p Profile) Active() bool {
	return p.Status == ProfileStatusActive
}

// ProfileFilter narrows profile listings.
type ProfileFilter struct {
	Role     ProfileRole
	Status   ProfileStatus
	Search   string
	Page     int
	PageSize int
}
