package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "plan.title", "Plan")
	message.SetString(lang, "plan.empty", "No tasks yet.")
	message.SetString(lang, "list.inbox", "Inbox")
	message.SetString(lang, "list.active-now", "Active now")
	message.SetString(lang, "list.next-action", "Next actions")
	message.SetString(lang, "list.someday", "Someday")
	message.SetString(lang, "list.waiting", "Waiting for")
	message.SetString(lang, "list.routine", "Routine")
	message.SetString(lang, "list.checklist", "Checklist")
	message.SetString(lang, "annotation.priority", "priority %s")
	message.SetString(lang, "annotation.estimate", "~%d min")
	message.SetString(lang, "annotation.date", "on %s")
	message.SetString(lang, "annotation.exact", "at %s %s")
	message.SetString(lang, "annotation.window", "%s %s-%s")
	message.SetString(lang, "annotation.reminder", "reminder %s")
	message.SetString(lang, "annotation.review", "review %s")
	message.SetString(lang, "reminder.default", "Reminder: %s")
	message.SetString(lang, "reminder.scheduled", "Reminder: %s (scheduled %s)")
	message.SetString(lang, "reminder.delayed", "[Delayed reminder] %s")
}
