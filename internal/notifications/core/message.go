package core

import (
	"fmt"
	"html"
	"strings"

	"carereminders/internal/types"
)

// BuildReminderMessage renders the channel-agnostic reminder text from the
// job's payload snapshot. Edits to the appointment after scheduling are not
// reflected.
func BuildReminderMessage(job *types.ScheduledNotification) types.ReminderMessage {
	title := strings.TrimSpace(job.Payload.Title)
	if title == "" {
		title = "Appointment"
	}
	body := fmt.Sprintf("Your appointment \"%s\" starts in %s.", title, FormatLeadTime(job.Payload.MinutesBefore))
	return types.ReminderMessage{
		JobID:   job.ID,
		Payload: job.Payload,
		Subject: "Reminder: " + title,
		Body:    body,
		HTML:    "<p>" + html.EscapeString(body) + "</p>",
	}
}

// FormatLeadTime renders an offset in minutes: "1 hour" for 60, whole days
// and hours for exact multiples, minutes otherwise.
func FormatLeadTime(minutes int) string {
	switch {
	case minutes >= 1440 && minutes%1440 == 0:
		return plural(minutes/1440, "day")
	case minutes >= 60 && minutes%60 == 0:
		return plural(minutes/60, "hour")
	default:
		return plural(minutes, "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
