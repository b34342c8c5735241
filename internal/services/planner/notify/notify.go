// Package notify delivers reminder notifications to the user through an
// external collaborator.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
)

// Message is one reminder notification.
type Message struct {
	ReminderID string          `json:"reminder_id"`
	TaskID     string          `json:"task_id"`
	OwnerID    string          `json:"owner_id,omitempty"`
	Text       string          `json:"text"`
	Priority   domain.Priority `json:"priority"`
	FireAt     time.Time       `json:"fire_at"`
	Attempt    int             `json:"attempt"`
	Overdue    bool            `json:"overdue,omitempty"`
	Redelivery bool            `json:"redelivery,omitempty"`
}

// IdempotencyKey identifies one reminder instant across retries and
// redeliveries so receivers can de-duplicate.
func (m Message) IdempotencyKey() string {
	return m.ReminderID + ":" + m.FireAt.UTC().Format(time.RFC3339)
}

// Notifier delivers one message or reports why it could not.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, msg Message) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Log writes notifications to the process log.
type Log struct {
	Logf func(format string, args ...any)
}

// Notify logs the message.
func (l Log) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logf := l.Logf
	if logf == nil {
		logf = log.Printf
	}
	logf("reminder %s for task %s (priority %s, attempt %d): %s", msg.ReminderID, msg.TaskID, msg.Priority, msg.Attempt, msg.Text)
	return nil
}
