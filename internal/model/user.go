package model

import (
	"strings"
	"time"
)

type User struct {
	ID        uint64    `gorm:"primaryKey"`
	FirstName string    `gorm:"size:128"`
	LastName  string    `gorm:"size:128"`
	Email     string    `gorm:"size:255"`
	Mobile    string    `gorm:"size:32"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "users" }

// Contact is the projection of a user that notification channels need.
type Contact struct {
	UserID uint64
	Name   string
	Email  string
	Mobile string
}

// ContactOf projects u.
func ContactOf(u *User) Contact {
	return Contact{
		UserID: u.ID,
		Name:   strings.TrimSpace(u.FirstName + " " + u.LastName),
		Email:  strings.TrimSpace(u.Email),
		Mobile: strings.TrimSpace(u.Mobile),
	}
}
