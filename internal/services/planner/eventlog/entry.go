// Package eventlog defines the planner's append-only lifecycle journal:
// immutable entries linked by a hash chain, and a lazy replay sequence used
// by restart recovery and audit tooling.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntityKind names what an entry is about.
type EntityKind string

const (
	EntityList      EntityKind = "list"
	EntityGroup     EntityKind = "group"
	EntityTask      EntityKind = "task"
	EntityReminder  EntityKind = "reminder"
	EntityOperation EntityKind = "operation"
)

// Kind names what happened.
type Kind string

const (
	KindListCreated  Kind = "list.created"
	KindGroupCreated Kind = "group.created"

	KindTaskAdded           Kind = "task.added"
	KindTaskPatched         Kind = "task.patched"
	KindTaskScheduled       Kind = "task.scheduled"
	KindTaskReminderSet     Kind = "task.reminder_set"
	KindTaskReminderCleared Kind = "task.reminder_cleared"
	KindTaskReviewHintSet   Kind = "task.review_hint_set"
	KindTaskMoved           Kind = "task.moved"
	KindTaskCompleted       Kind = "task.completed"
	KindTaskDeleted         Kind = "task.deleted"

	KindReminderScheduled       Kind = "reminder.scheduled"
	KindReminderUpdated         Kind = "reminder.updated"
	KindReminderCanceled        Kind = "reminder.canceled"
	KindReminderDeliveryStarted Kind = "reminder.delivery_started"
	KindReminderAttemptFailed   Kind = "reminder.attempt_failed"
	KindReminderSent            Kind = "reminder.sent"
	KindReminderFailed          Kind = "reminder.failed"
	KindReminderAcknowledged    Kind = "reminder.acknowledged"

	KindOperationRejected Kind = "operation.rejected"
)

// Entry is one immutable fact: at OccurredAt, Kind happened to EntityID.
// Seq, PrevHash and Hash are assigned by the store on append.
type Entry struct {
	Seq        uint64
	EntityKind EntityKind
	EntityID   string
	Kind       Kind
	Payload    json.RawMessage
	OccurredAt time.Time
	PrevHash   string
	Hash       string
}

// New builds an unsealed entry with a JSON-encoded payload.
func New(entityKind EntityKind, entityID string, kind Kind, payload any, at time.Time) (Entry, error) {
	if strings.TrimSpace(string(entityKind)) == "" {
		return Entry{}, fmt.Errorf("entity kind is required")
	}
	if strings.TrimSpace(string(kind)) == "" {
		return Entry{}, fmt.Errorf("event kind is required")
	}
	raw := json.RawMessage("{}")
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return Entry{}, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		raw = encoded
	}
	if at.IsZero() {
		at = time.Now()
	}
	return Entry{
		EntityKind: entityKind,
		EntityID:   strings.TrimSpace(entityID),
		Kind:       kind,
		Payload:    raw,
		OccurredAt: at.UTC().Truncate(time.Millisecond),
	}, nil
}

// Decode unmarshals the entry payload into target.
func (e Entry) Decode(target any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return fmt.Errorf("decode %s payload at seq %d: %w", e.Kind, e.Seq, err)
	}
	return nil
}

// Appender durably appends an entry and returns it sealed with seq and hashes.
type Appender interface {
	AppendEvent(ctx context.Context, entry Entry) (Entry, error)
}

// Source lists entries with seq strictly greater than afterSeq, ascending.
type Source interface {
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]Entry, error)
}
