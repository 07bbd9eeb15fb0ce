package model

import "time"

// Role of a user within an event.
type Role string

const (
	RoleHost      Role = "HOST"
	RoleCoHost    Role = "CO_HOST"
	RoleSpeaker   Role = "SPEAKER"
	RoleModerator Role = "MODERATOR"
	RoleAttendee  Role = "ATTENDEE"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleHost, RoleCoHost, RoleSpeaker, RoleModerator, RoleAttendee:
		return true
	}
	return false
}

type EventParticipant struct {
	ID        uint64    `gorm:"primaryKey"`
	EventID   uint64    `gorm:"not null;index:idx_participant_event_user"`
	UserID    uint64    `gorm:"not null;index:idx_participant_event_user"`
	Role      Role      `gorm:"size:32;not null"`
	State     Lifecycle `gorm:"column:is_deleted;type:boolean;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (EventParticipant) TableName() string { return "event_participants" }
