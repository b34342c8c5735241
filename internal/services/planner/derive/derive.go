// Package derive computes the reminder record set implied by the task
// hierarchy. Sync is pure: the same tasks and records always yield the same
// plan, and applying a plan then syncing again yields an empty plan.
package derive

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/eventlog"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

// Plan lists record writes needed to bring the reminder set in line with tasks.
type Plan struct {
	Create []domain.ReminderRecord
	Update []domain.ReminderRecord
	Cancel []domain.ReminderRecord
}

// IsEmpty reports whether the plan changes nothing.
func (p Plan) IsEmpty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Cancel) == 0
}

// Scheduled returns the records that remain or become scheduled.
func (p Plan) Scheduled() []domain.ReminderRecord {
	out := make([]domain.ReminderRecord, 0, len(p.Create)+len(p.Update))
	out = append(out, p.Update...)
	out = append(out, p.Create...)
	return out
}

// Sync compares tasks against existing records and plans creates, updates
// and cancellations. Only scheduled records are considered; others are audit
// history and never change here.
func Sync(tasks []domain.Task, records []domain.ReminderRecord, now time.Time, newID func() (string, error)) (Plan, error) {
	if newID == nil {
		return Plan{}, fmt.Errorf("id generator is required")
	}
	now = now.UTC()

	active := make(map[string][]domain.ReminderRecord)
	var order []string
	for _, record := range records {
		if record.Status != domain.ReminderScheduled {
			continue
		}
		if _, seen := active[record.TaskID]; !seen {
			order = append(order, record.TaskID)
		}
		active[record.TaskID] = append(active[record.TaskID], record)
	}

	var plan Plan
	live := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		if !task.HasLiveReminder() {
			continue
		}
		live[task.ID] = true
		existing := active[task.ID]
		if len(existing) == 0 {
			recordID, err := newID()
			if err != nil {
				return Plan{}, fmt.Errorf("new reminder id: %w", err)
			}
			plan.Create = append(plan.Create, domain.ReminderRecord{
				ID:        recordID,
				TaskID:    task.ID,
				FireAt:    task.Reminder.FireAt.UTC(),
				Message:   task.Reminder.Message,
				Priority:  task.Priority,
				Status:    domain.ReminderScheduled,
				CreatedAt: now,
				UpdatedAt: now,
			})
			continue
		}

		keep := existing[0]
		if updated, changed := reconcile(keep, task, now); changed {
			plan.Update = append(plan.Update, updated)
		}
		for _, extra := range existing[1:] {
			plan.Cancel = append(plan.Cancel, cancel(extra, now))
		}
	}

	for _, taskID := range order {
		if live[taskID] {
			continue
		}
		for _, record := range active[taskID] {
			plan.Cancel = append(plan.Cancel, cancel(record, now))
		}
	}
	return plan, nil
}

func reconcile(record domain.ReminderRecord, task domain.Task, now time.Time) (domain.ReminderRecord, bool) {
	changed := false
	if !record.FireAt.Equal(task.Reminder.FireAt) {
		record.FireAt = task.Reminder.FireAt.UTC()
		record.NextAttemptAt = nil
		changed = true
	}
	if record.Message != task.Reminder.Message {
		record.Message = task.Reminder.Message
		changed = true
	}
	if record.Priority != task.Priority {
		record.Priority = task.Priority
		changed = true
	}
	if changed {
		record.UpdatedAt = now
	}
	return record, changed
}

func cancel(record domain.ReminderRecord, now time.Time) domain.ReminderRecord {
	record.Status = domain.ReminderCanceled
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	return record
}

// Apply writes the plan. Cancellations go first so a replacement record
// never collides with the one it replaces.
func Apply(ctx context.Context, tx storage.Tx, plan Plan) error {
	for _, group := range [][]domain.ReminderRecord{plan.Cancel, plan.Update, plan.Create} {
		for _, record := range group {
			if err := tx.PutReminder(ctx, record); err != nil {
				return fmt.Errorf("write reminder %s: %w", record.ID, err)
			}
		}
	}
	return nil
}

// Events returns journal entries describing the plan.
func Events(plan Plan, at time.Time) ([]eventlog.Entry, error) {
	var entries []eventlog.Entry
	add := func(kind eventlog.Kind, records []domain.ReminderRecord) error {
		for _, record := range records {
			entry, err := eventlog.New(eventlog.EntityReminder, record.ID, kind, Payload(record), at)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	}
	if err := add(eventlog.KindReminderCanceled, plan.Cancel); err != nil {
		return nil, err
	}
	if err := add(eventlog.KindReminderUpdated, plan.Update); err != nil {
		return nil, err
	}
	if err := add(eventlog.KindReminderScheduled, plan.Create); err != nil {
		return nil, err
	}
	return entries, nil
}

// Payload converts a record into its journal payload.
func Payload(record domain.ReminderRecord) eventlog.ReminderPayload {
	payload := eventlog.ReminderPayload{
		ReminderID: record.ID,
		TaskID:     record.TaskID,
		FireAt:     record.FireAt.UTC(),
		Status:     string(record.Status),
		Attempts:   record.Attempts,
		Error:      record.LastError,
	}
	if record.NextAttemptAt != nil {
		due := record.NextAttemptAt.UTC()
		payload.DueAt = &due
	}
	return payload
}
