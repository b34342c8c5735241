// Package domain defines the planner's task hierarchy and reminder records,
// along with the validation rules every mutation must satisfy before it is
// written.
//
// Tasks are the single source of truth. A task with a Reminder attachment is
// "hard" planning; without one it is "soft" planning. ReminderRecords are
// derived from attachments and are owned by the system, never by callers.
package domain
