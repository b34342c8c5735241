package state

import (
	"context"
	"slices"
	"time"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

// placement identifies one sibling set: tasks sharing a list, group and parent.
type placement struct {
	list     domain.ListKind
	groupID  string
	parentID string
}

func placementOf(task domain.Task) placement {
	return placement{list: task.List, groupID: task.GroupID, parentID: task.ParentID}
}

// forest indexes the task hierarchy for one operation.
type forest struct {
	byID     map[string]domain.Task
	children map[string][]string
}

func loadForest(ctx context.Context, tx storage.ReadTx) (*forest, error) {
	tasks, err := tx.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return newForest(tasks), nil
}

func newForest(tasks []domain.Task) *forest {
	f := &forest{
		byID:     make(map[string]domain.Task, len(tasks)),
		children: make(map[string][]string),
	}
	for _, task := range tasks {
		f.byID[task.ID] = task
		if task.ParentID != "" {
			f.children[task.ParentID] = append(f.children[task.ParentID], task.ID)
		}
	}
	return f
}

// subtree returns root and all of its descendants, parents before children.
func (f *forest) subtree(root string) []string {
	out := []string{root}
	for i := 0; i < len(out); i++ {
		out = append(out, f.children[out[i]]...)
	}
	return out
}

// isDescendant reports whether candidate lies strictly below ancestor.
func (f *forest) isDescendant(ancestor, candidate string) bool {
	seen := map[string]bool{}
	for current := f.byID[candidate].ParentID; current != ""; current = f.byID[current].ParentID {
		if current == ancestor {
			return true
		}
		if seen[current] {
			return false
		}
		seen[current] = true
	}
	return false
}

// siblings returns the tasks at p ordered by position, skipping excluded ids.
func (f *forest) siblings(p placement, exclude ...string) []domain.Task {
	var out []domain.Task
	for _, task := range f.byID {
		if placementOf(task) != p || slices.Contains(exclude, task.ID) {
			continue
		}
		out = append(out, task)
	}
	slices.SortFunc(out, func(a, b domain.Task) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out
}

// renumber writes dense positions for an ordered sibling set and persists
// every task whose position changed.
func (f *forest) renumber(ctx context.Context, tx storage.Tx, ordered []domain.Task, now time.Time) error {
	for i, task := range ordered {
		if task.Position == i {
			continue
		}
		task.Position = i
		task.UpdatedAt = now
		if err := tx.PutTask(ctx, task); err != nil {
			return err
		}
		f.byID[task.ID] = task
	}
	return nil
}
