package model

import "time"

type Event struct {
	ID          uint64    `gorm:"primaryKey"`
	OwnerID     uint64    `gorm:"not null;index"`
	Title       string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text"`
	Address     string    `gorm:"size:512"`
	ImageURL    string    `gorm:"size:1024"`
	StartDate   time.Time `gorm:"not null"`
	EndDate     time.Time `gorm:"not null"`
	State       Lifecycle `gorm:"column:is_deleted;type:boolean;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (Event) TableName() string { return "events" }

// Summary projects the fields notifications need.
func (e *Event) Summary() EventSummary {
	return EventSummary{
		ID:        e.ID,
		OwnerID:   e.OwnerID,
		Title:     e.Title,
		Address:   e.Address,
		StartDate: e.StartDate,
		EndDate:   e.EndDate,
	}
}

// EventSummary is the minimal event projection carried by a notice.
type EventSummary struct {
	ID        uint64
	OwnerID   uint64
	Title     string
	Address   string
	StartDate time.Time
	EndDate   time.Time
}
