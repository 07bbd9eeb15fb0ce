package model

import "time"

// ReminderType names an entry of the reminder offset table, e.g. "day_before".
type ReminderType string

type EventReminder struct {
	ID           uint64       `gorm:"primaryKey"`
	EventID      uint64       `gorm:"not null;uniqueIndex:idx_reminder_slot"`
	ReminderType ReminderType `gorm:"size:32;not null;uniqueIndex:idx_reminder_slot"`
	ReminderTime time.Time    `gorm:"not null;index;uniqueIndex:idx_reminder_slot"`
	IsSent       bool         `gorm:"not null;default:false"`
	SentAt       *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (EventReminder) TableName() string { return "event_reminders" }
