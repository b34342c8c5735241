package domain

import (
	"strings"
	"time"
)

// Reminder is a task's hard-planning attachment: one future instant and an
// optional fixed message.
type Reminder struct {
	FireAt  time.Time
	Message string
}

// ReviewHint defers a scheduling decision to a later instant without
// creating a reminder.
type ReviewHint struct {
	At     time.Time
	Reason string
}

// ValidateReminder checks that reminder r may be attached to task t at now.
func ValidateReminder(t Task, r Reminder, now time.Time) (Reminder, error) {
	if t.Status == StatusDone {
		return Reminder{}, InvalidReminder("cannot attach a reminder to a completed task")
	}
	if !t.Schedule.HasExplicitTime() {
		return Reminder{}, InvalidReminder("reminder requires a task scheduled with an explicit time (exact_time or time_window)")
	}
	if r.FireAt.IsZero() {
		return Reminder{}, InvalidReminder("reminder instant is required")
	}
	if !r.FireAt.After(now) {
		return Reminder{}, InvalidReminder("reminder instant must be in the future")
	}
	return Reminder{
		FireAt:  r.FireAt.UTC().Truncate(time.Second),
		Message: strings.TrimSpace(r.Message),
	}, nil
}

// ValidateReviewHint checks a review hint against now.
func ValidateReviewHint(h ReviewHint, now time.Time) (ReviewHint, error) {
	if h.At.IsZero() {
		return ReviewHint{}, InvalidSchedule("review hint instant is required")
	}
	if !h.At.After(now) {
		return ReviewHint{}, InvalidSchedule("review hint instant must be in the future")
	}
	return ReviewHint{
		At:     h.At.UTC().Truncate(time.Second),
		Reason: strings.TrimSpace(h.Reason),
	}, nil
}

// ReminderStatus is the delivery state of a derived reminder.
type ReminderStatus string

const (
	ReminderScheduled    ReminderStatus = "scheduled"
	ReminderSent         ReminderStatus = "sent"
	ReminderAcknowledged ReminderStatus = "acknowledged"
	ReminderCanceled     ReminderStatus = "canceled"
	ReminderFailed       ReminderStatus = "failed"
)

// CanTransition reports whether the state machine allows s -> to.
func (s ReminderStatus) CanTransition(to ReminderStatus) bool {
	switch s {
	case ReminderScheduled:
		return to == ReminderSent || to == ReminderCanceled || to == ReminderFailed
	case ReminderSent:
		return to == ReminderAcknowledged
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s ReminderStatus) Terminal() bool {
	return s == ReminderAcknowledged || s == ReminderCanceled || s == ReminderFailed
}

// ReminderRecord is a system-owned notification derived from a task's
// reminder attachment.
type ReminderRecord struct {
	ID            string
	TaskID        string
	FireAt        time.Time
	Message       string
	Priority      Priority
	Status        ReminderStatus
	Attempts      int
	NextAttemptAt *time.Time
	LastAttemptAt *time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DueAt is when the record should next be delivered: the retry instant
// after a failed attempt, otherwise the reminder instant.
func (r ReminderRecord) DueAt() time.Time {
	if r.NextAttemptAt != nil && !r.NextAttemptAt.IsZero() {
		return *r.NextAttemptAt
	}
	return r.FireAt
}

// Transition moves the record to status to at now, or fails if forbidden.
func (r *ReminderRecord) Transition(to ReminderStatus, now time.Time) error {
	if !r.Status.CanTransition(to) {
		return InvalidTransition(r.Status, to)
	}
	r.Status = to
	r.UpdatedAt = now
	return nil
}
