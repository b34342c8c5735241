// Package storage defines the persistence contracts for planner state,
// derived reminder records, the event journal and recovery checkpoints.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/eventlog"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a write conflicts with uniqueness constraints.
	ErrConflict = errors.New("record conflict")
)

// Checkpoint records how far a consumer has folded the event journal.
type Checkpoint struct {
	Name      string
	Seq       uint64
	Hash      string
	UpdatedAt time.Time
}

// View is the last rendered plan snapshot.
type View struct {
	Markdown   string
	Locale     string
	EventSeq   uint64
	RenderedAt time.Time
}

// ReadTx reads planner state inside one consistent snapshot.
type ReadTx interface {
	GetList(ctx context.Context, kind domain.ListKind) (domain.List, error)
	ListLists(ctx context.Context) ([]domain.List, error)

	GetGroup(ctx context.Context, id string) (domain.Group, error)
	FindGroupByName(ctx context.Context, list domain.ListKind, name string) (domain.Group, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)

	GetTask(ctx context.Context, id string) (domain.Task, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)

	GetReminder(ctx context.Context, id string) (domain.ReminderRecord, error)
	// ListReminders returns records in the given statuses, or all records
	// when none are given, ordered by fire time.
	ListReminders(ctx context.Context, statuses ...domain.ReminderStatus) ([]domain.ReminderRecord, error)

	GetCheckpoint(ctx context.Context, name string) (Checkpoint, error)
	GetView(ctx context.Context) (View, error)
}

// Tx is a read-write transaction. Nothing is visible to other readers until
// the enclosing Update returns nil.
type Tx interface {
	ReadTx
	eventlog.Appender

	PutList(ctx context.Context, list domain.List) error
	PutGroup(ctx context.Context, group domain.Group) error
	PutTask(ctx context.Context, task domain.Task) error
	DeleteTask(ctx context.Context, id string) error
	PutReminder(ctx context.Context, record domain.ReminderRecord) error
	PutCheckpoint(ctx context.Context, checkpoint Checkpoint) error
	PutView(ctx context.Context, view View) error
}

// Store is the planner's durable store.
type Store interface {
	eventlog.Source

	// Update runs fn in a write transaction and commits when fn returns nil.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// Read runs fn against a consistent read snapshot.
	Read(ctx context.Context, fn func(tx ReadTx) error) error

	// SearchTasks lists tasks matching an AIP-160 filter expression.
	SearchTasks(ctx context.Context, filter string, limit int) ([]domain.Task, error)
	// SearchReminders lists reminder records matching an AIP-160 filter expression.
	SearchReminders(ctx context.Context, filter string, limit int) ([]domain.ReminderRecord, error)

	Close() error
}
