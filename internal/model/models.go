package model

// All lists every table for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{}, &Event{}, &EventParticipant{}, &EventReminder{},
		&Email{}, &Sms{}, &PushNotification{},
	}
}
