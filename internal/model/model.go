package model

import (
	"fmt"
	"time"
)

// User is a document in the users collection. FCMTokens holds the device
// registration tokens the user has subscribed with; it may be empty.
type User struct {
	ID        string   `firestore:"-" json:"id"`
	FCMTokens []string `firestore:"fcmTokens" json:"fcmTokens"`
}

// Event is an annually recurring event (birthday, anniversary, ...) owned by
// a user. Only the month and day of Date matter for recurrence.
type Event struct {
	ID         string `firestore:"-" json:"id"`
	Name       string `firestore:"name" json:"name"`
	Date       string `firestore:"date" json:"date"`
	Type       string `firestore:"type,omitempty" json:"type,omitempty"`
	CustomType string `firestore:"customType,omitempty" json:"customType,omitempty"`
}

// eventDateLayouts are the accepted encodings of Event.Date.
var eventDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"01/02/2006",
}

// MonthDay parses the event date and returns its month and day.
func (e *Event) MonthDay() (time.Month, int, error) {
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, e.Date); err == nil {
			return t.Month(), t.Day(), nil
		}
	}
	return 0, 0, fmt.Errorf("event %s: unparseable date %q", e.ID, e.Date)
}

// Label returns the human-readable event type, preferring the user-supplied
// custom label.
func (e *Event) Label() string {
	if e.CustomType != "" {
		return e.CustomType
	}
	if e.Type != "" {
		return e.Type
	}
	return "Birthday"
}

// Reminder is one configured hours-before offset.
type Reminder struct {
	ID    string `firestore:"id" json:"id"`
	Label string `firestore:"label" json:"label"`
	Hours int    `firestore:"hours" json:"hours"`
}

// ReminderLabel builds the display label for an hours-before offset: "Day of
// (12 AM)" at zero, hours below a day, whole days otherwise.
func ReminderLabel(hours int) string {
	switch {
	case hours == 0:
		return "Day of (12 AM)"
	case hours < 24:
		plural := ""
		if hours > 1 {
			plural = "s"
		}
		return fmt.Sprintf("%d hour%s before", hours, plural)
	default:
		days := hours / 24
		plural := ""
		if days > 1 {
			plural = "s"
		}
		return fmt.Sprintf("%d day%s before", days, plural)
	}
}

// Settings holds a user's notification preferences. The reminders list is
// never empty: deletion of the last entry is refused, and DefaultSettings is
// substituted when no settings document exists.
type Settings struct {
	Enabled   bool       `firestore:"enabled" json:"enabled"`
	Reminders []Reminder `firestore:"reminders" json:"reminders"`
}

// DefaultSettings returns the settings used for users who never configured
// anything: enabled, one day-of reminder at midnight.
func DefaultSettings() Settings {
	return Settings{
		Enabled: true,
		Reminders: []Reminder{
			{ID: "default", Label: "Day of (12 AM)", Hours: 0},
		},
	}
}

// Sent-record statuses. A record is written after every completed send
// attempt; sent means at least one device accepted the message.
const (
	SentStatusSent   = "sent"
	SentStatusFailed = "failed"
)

// SentRecord marks a (user, event, reminder, year) notification as attempted.
// Its presence is the only duplicate-send guard in the system.
type SentRecord struct {
	UserID     string    `firestore:"userId" json:"userId"`
	EventID    string    `firestore:"birthdayId" json:"birthdayId"`
	ReminderID string    `firestore:"reminderId" json:"reminderId"`
	Status     string    `firestore:"status" json:"status"`
	Attempts   int       `firestore:"attempts" json:"attempts"`
	Delivered  int       `firestore:"delivered" json:"delivered"`
	SentAt     time.Time `firestore:"sentAt" json:"sentAt"`
}

// SentKey builds the composite document id for a sent record. The year is the
// UTC year of the run, which keeps keys stable across the New Year boundary in
// the scan timezone.
func SentKey(userID, eventID, reminderID string, year int) string {
	return fmt.Sprintf("%s-%s-%s-%d", userID, eventID, reminderID, year)
}
