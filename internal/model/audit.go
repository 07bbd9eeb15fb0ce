package model

import "time"

// DeliveryStatus of an audit row.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliverySkipped DeliveryStatus = "skipped"
)

// Email records one email delivery attempt.
type Email struct {
	ID        uint64         `gorm:"primaryKey"`
	EventID   uint64         `gorm:"not null;index"`
	UserID    uint64         `gorm:"index"`
	Kind      string         `gorm:"size:32;not null"`
	Recipient string         `gorm:"size:255;not null"`
	Subject   string         `gorm:"size:255"`
	Body      string         `gorm:"type:text"`
	Status    DeliveryStatus `gorm:"size:16;not null"`
	Error     string         `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (Email) TableName() string { return "emails" }

// Sms records one SMS delivery attempt.
type Sms struct {
	ID        uint64         `gorm:"primaryKey"`
	EventID   uint64         `gorm:"not null;index"`
	UserID    uint64         `gorm:"index"`
	Kind      string         `gorm:"size:32;not null"`
	Mobile    string         `gorm:"size:32;not null"`
	Body      string         `gorm:"type:text"`
	Status    DeliveryStatus `gorm:"size:16;not null"`
	Error     string         `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (Sms) TableName() string { return "sms" }

// PushNotification records one push delivery attempt across a user's devices.
type PushNotification struct {
	ID        uint64         `gorm:"primaryKey"`
	EventID   uint64         `gorm:"not null;index"`
	UserID    uint64         `gorm:"not null;index"`
	Kind      string         `gorm:"size:32;not null"`
	Title     string         `gorm:"size:255"`
	Body      string         `gorm:"type:text"`
	Devices   int            `gorm:"not null;default:0"`
	Status    DeliveryStatus `gorm:"size:16;not null"`
	Error     string         `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

func (PushNotification) TableName() string { return "push_notifications" }
