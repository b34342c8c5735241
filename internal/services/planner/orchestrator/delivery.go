package orchestrator

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/amaya/internal/platform/errors"
	"github.com/louisbranch/amaya/internal/services/planner/derive"
	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/eventlog"
	"github.com/louisbranch/amaya/internal/services/planner/scheduler"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

var _ scheduler.Recorder = (*Orchestrator)(nil)

// BeginDelivery confirms a fired timer still matches a scheduled record and
// journals the start of the attempt.
func (o *Orchestrator) BeginDelivery(ctx context.Context, attempt scheduler.Attempt) (scheduler.Delivery, bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	var (
		delivery scheduler.Delivery
		ok       bool
	)
	err := o.store.Update(ctx, func(tx storage.Tx) error {
		record, err := tx.GetReminder(ctx, attempt.ReminderID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if record.Status != domain.ReminderScheduled || !record.DueAt().Equal(attempt.DueAt) {
			return nil
		}
		task, err := tx.GetTask(ctx, record.TaskID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		payload := derive.Payload(record)
		payload.Overdue = attempt.Overdue
		payload.Redelivery = attempt.Redelivery
		entry, err := eventlog.New(eventlog.EntityReminder, record.ID, eventlog.KindReminderDeliveryStarted, payload, now)
		if err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, entry); err != nil {
			return err
		}
		delivery = scheduler.Delivery{
			Record:     record,
			Task:       task,
			Overdue:    attempt.Overdue,
			Redelivery: attempt.Redelivery,
		}
		ok = true
		return nil
	})
	if err != nil {
		return scheduler.Delivery{}, false, domain.Persistence("begin delivery", err)
	}
	return delivery, ok, nil
}

// RecordOutcome stores the result of one notifier call. Success marks the
// record sent; a retryable failure below the attempt bound re-arms it with
// backoff; anything else marks it failed. Sent and failed both consume the
// task's reminder attachment in the same transaction.
func (o *Orchestrator) RecordOutcome(ctx context.Context, delivery scheduler.Delivery, deliveryErr error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	var out commitOutput
	err := o.store.Update(ctx, func(tx storage.Tx) error {
		record, err := tx.GetReminder(ctx, delivery.Record.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if record.Status != domain.ReminderScheduled || !record.DueAt().Equal(delivery.Record.DueAt()) {
			// Rescheduled or canceled while the notifier ran.
			out.changed = []domain.ReminderRecord{record}
			return nil
		}

		record.Attempts++
		attemptAt := now
		record.LastAttemptAt = &attemptAt
		record.UpdatedAt = now
		kind := eventlog.KindReminderSent
		consume := true
		switch {
		case deliveryErr == nil:
			if err := record.Transition(domain.ReminderSent, now); err != nil {
				return err
			}
			record.NextAttemptAt = nil
			record.LastError = ""
		case scheduler.IsRetryable(deliveryErr) && record.Attempts < o.cfg.MaxAttempts:
			next := now.Add(scheduler.Backoff(record.Attempts, o.cfg.RetryBackoff, o.cfg.RetryMaxDelay))
			record.NextAttemptAt = &next
			record.LastError = errorText(deliveryErr)
			kind = eventlog.KindReminderAttemptFailed
			consume = false
		default:
			if err := record.Transition(domain.ReminderFailed, now); err != nil {
				return err
			}
			record.NextAttemptAt = nil
			record.LastError = errorText(deliveryErr)
			kind = eventlog.KindReminderFailed
			o.cfg.Logf("REMINDER FAILED: reminder %s for task %s gave up after %d attempts: %v",
				record.ID, record.TaskID, record.Attempts, deliveryErr)
		}
		if err := tx.PutReminder(ctx, record); err != nil {
			return err
		}

		j := &journal{at: now}
		payload := derive.Payload(record)
		payload.Overdue = delivery.Overdue
		payload.Redelivery = delivery.Redelivery
		j.add(eventlog.EntityReminder, record.ID, kind, payload)
		if consume {
			change, err := o.state.ConsumeReminder(ctx, tx, record.TaskID, record.FireAt)
			if err != nil && !apperrors.HasCode(err, apperrors.CodeNotFound) {
				return err
			}
			if change.ReminderCleared {
				j.task(eventlog.KindTaskReminderCleared, change.Task, nil, string(record.Status))
			}
		}
		if j.err != nil {
			return j.err
		}

		out, err = o.commit(ctx, tx, j.entries, now)
		if err != nil {
			return err
		}
		out.changed = append(out.changed, record)
		return nil
	})
	if err != nil {
		return domain.Persistence("record delivery outcome", err)
	}
	o.afterCommit(out)
	return nil
}

func errorText(err error) string {
	text := []rune(strings.TrimSpace(err.Error()))
	if len(text) > 500 {
		text = text[:500]
	}
	return string(text)
}
