// Package state applies hierarchy mutations to the planner store. Every
// operation runs against one open transaction supplied by the caller, so the
// caller decides what commits together.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/amaya/internal/platform/id"
	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

// ErrIDGeneratorNotConfigured indicates an id generator is required.
var ErrIDGeneratorNotConfigured = errors.New("state id generator is not configured")

// Service applies task hierarchy operations.
type Service struct {
	clock func() time.Time
	newID func() (string, error)
}

// NewService constructs hierarchy operations with the given clock and id source.
func NewService(clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{clock: clock, newID: newID}
}

// Snapshot is the full hierarchy read inside one transaction.
type Snapshot struct {
	Lists  []domain.List
	Groups []domain.Group
	Tasks  []domain.Task
}

// Snapshot reads every list, group and task.
func (s *Service) Snapshot(ctx context.Context, tx storage.ReadTx) (Snapshot, error) {
	if tx == nil {
		return Snapshot{}, fmt.Errorf("transaction is required")
	}
	lists, err := tx.ListLists(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	groups, err := tx.ListGroups(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	tasks, err := tx.ListTasks(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Lists: lists, Groups: groups, Tasks: tasks}, nil
}

func (s *Service) nowUTC() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

func (s *Service) nextID() (string, error) {
	if s == nil || s.newID == nil {
		return "", ErrIDGeneratorNotConfigured
	}
	return s.newID()
}

func (s *Service) loadTask(ctx context.Context, tx storage.ReadTx, taskID string) (domain.Task, error) {
	task, err := tx.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Task{}, domain.NotFound("task", taskID)
		}
		return domain.Task{}, err
	}
	return task, nil
}
