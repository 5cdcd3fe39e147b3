package scanner

import (
	"fmt"
	"time"
)

// NextOccurrence returns the event's next annual occurrence at local midnight
// in now's location. The comparison uses calendar fields (month, day), not
// timestamp subtraction, so a timezone offset between stored dates and the
// scan zone cannot shift the occurrence by a day. An event falling on today
// counts as this year.
func NextOccurrence(month time.Month, day int, now time.Time) time.Time {
	year := now.Year()
	if month < now.Month() || (month == now.Month() && day < now.Day()) {
		year++
	}
	// time.Date normalizes out-of-range days, so a Feb 29 event resolves to
	// Mar 1 in non-leap years.
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location())
}

// TriggerTime returns the instant a reminder fires: the occurrence's midnight
// minus the configured hours-before offset.
func TriggerTime(occurrence time.Time, hoursBefore int) time.Time {
	return occurrence.Add(-time.Duration(hoursBefore) * time.Hour)
}

// DueNow reports whether trigger falls in the same date and hour as now. The
// scan runs once per hour, so matching is hour-granular and there is no
// catch-up for missed hours.
func DueNow(trigger, now time.Time) bool {
	return trigger.Year() == now.Year() &&
		trigger.Month() == now.Month() &&
		trigger.Day() == now.Day() &&
		trigger.Hour() == now.Hour()
}

// Message builds the notification body for an event and an hours-before
// offset.
func Message(name, eventType string, hours int) string {
	switch {
	case hours == 0:
		return fmt.Sprintf("🎉 Today is %s's %s!", name, eventType)
	case hours < 24:
		return fmt.Sprintf("⏰ %s's %s is in %d hours!", name, eventType, hours)
	default:
		days := hours / 24
		plural := ""
		if days > 1 {
			plural = "s"
		}
		return fmt.Sprintf("📅 %s's %s is in %d day%s!", name, eventType, days, plural)
	}
}
