package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/eventlog"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

// CheckpointName is the journal checkpoint owned by the scheduler.
const CheckpointName = "scheduler"

// RecoveryReport summarizes one Recover run.
type RecoveryReport struct {
	Armed        int
	Overdue      int
	Redeliveries int
	Pending      int
	Replayed     int
	Seq          uint64
}

// Recover rebuilds the timer queue from durable state: scheduled and sent
// records are loaded, the journal tail after the last checkpoint is folded
// over them and verified, and every scheduled record is re-armed. Records
// already past due fire on the next RunDue flagged as overdue.
func (s *Scheduler) Recover(ctx context.Context, store storage.Store) (RecoveryReport, error) {
	if store == nil {
		return RecoveryReport{}, fmt.Errorf("store is required")
	}
	now := s.cfg.Clock()

	records := make(map[string]domain.ReminderRecord)
	var checkpoint storage.Checkpoint
	err := store.Read(ctx, func(tx storage.ReadTx) error {
		loaded, err := tx.ListReminders(ctx, domain.ReminderScheduled, domain.ReminderSent)
		if err != nil {
			return fmt.Errorf("list reminders: %w", err)
		}
		for _, record := range loaded {
			records[record.ID] = record
		}
		checkpoint, err = tx.GetCheckpoint(ctx, CheckpointName)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("get checkpoint: %w", err)
		}
		return nil
	})
	if err != nil {
		return RecoveryReport{}, domain.Persistence("load scheduler state", err)
	}

	report := RecoveryReport{}
	started := make(map[string]bool)
	verifier := eventlog.NewVerifier(checkpoint.Seq, checkpoint.Hash)
	for entry, err := range eventlog.Replay(ctx, store, checkpoint.Seq) {
		if err != nil {
			return RecoveryReport{}, domain.Persistence("replay journal", err)
		}
		if err := verifier.Check(entry); err != nil {
			return RecoveryReport{}, domain.Persistence("verify journal", err)
		}
		report.Replayed++
		if entry.EntityKind != eventlog.EntityReminder {
			continue
		}
		fold(records, started, entry)
	}
	seq, hash := verifier.Last()
	report.Seq = seq

	s.mu.Lock()
	s.queue = s.queue[:0]
	clear(s.entries)
	clear(s.deferred)
	for _, record := range records {
		switch record.Status {
		case domain.ReminderScheduled:
			overdue := record.DueAt().Before(now)
			redelivery := started[record.ID]
			s.armLocked(record.ID, record.DueAt(), overdue, redelivery)
			report.Armed++
			if overdue {
				report.Overdue++
			}
			if redelivery {
				report.Redeliveries++
			}
		case domain.ReminderSent:
			report.Pending++
		}
	}
	s.ready = true
	s.mu.Unlock()
	s.signal()

	err = store.Update(ctx, func(tx storage.Tx) error {
		return tx.PutCheckpoint(ctx, storage.Checkpoint{
			Name:      CheckpointName,
			Seq:       seq,
			Hash:      hash,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return report, domain.Persistence("save scheduler checkpoint", err)
	}
	s.cfg.Logf("scheduler recovered: %d armed (%d overdue, %d redelivery), %d pending, %d events replayed",
		report.Armed, report.Overdue, report.Redeliveries, report.Pending, report.Replayed)
	return report, nil
}

// fold applies one reminder entry to the loaded snapshot. Status only moves
// forward along the lifecycle, so folding an entry the snapshot already
// reflects changes nothing.
func fold(records map[string]domain.ReminderRecord, started map[string]bool, entry eventlog.Entry) {
	var payload eventlog.ReminderPayload
	if err := entry.Decode(&payload); err != nil {
		return
	}
	id := entry.EntityID
	switch entry.Kind {
	case eventlog.KindReminderDeliveryStarted:
		started[id] = true
		return
	case eventlog.KindReminderAttemptFailed:
		delete(started, id)
		record, ok := records[id]
		if ok && record.Status == domain.ReminderScheduled && payload.Attempts > record.Attempts {
			record.Attempts = payload.Attempts
			if payload.DueAt != nil {
				due := *payload.DueAt
				record.NextAttemptAt = &due
			}
			records[id] = record
		}
		return
	case eventlog.KindReminderSent:
		delete(started, id)
		advance(records, id, domain.ReminderSent)
	case eventlog.KindReminderFailed:
		delete(started, id)
		advance(records, id, domain.ReminderFailed)
	case eventlog.KindReminderCanceled:
		delete(started, id)
		advance(records, id, domain.ReminderCanceled)
	case eventlog.KindReminderAcknowledged:
		advance(records, id, domain.ReminderAcknowledged)
	}
}

func advance(records map[string]domain.ReminderRecord, id string, to domain.ReminderStatus) {
	record, ok := records[id]
	if !ok || !record.Status.CanTransition(to) {
		return
	}
	record.Status = to
	records[id] = record
}
