package state

import (
	"context"
	"strings"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

// MoveInput describes where a task should go. A parent pins the destination
// to the parent's list and group. Without a parent, an unset list keeps the
// current list and an unset group keeps the current group when the list is
// unchanged, or uses the destination list's default group otherwise. A nil
// position appends to the end of the destination sibling set.
type MoveInput struct {
	TaskID    string
	List      domain.ListKind
	GroupID   string
	GroupName string
	ParentID  string
	Position  *int
}

// MoveResult reports the moved task and every id in its subtree.
type MoveResult struct {
	Task    domain.Task
	Subtree []string
	GroupResult
}

// MoveTask re-parents or re-orders a task together with its subtree.
func (s *Service) MoveTask(ctx context.Context, tx storage.Tx, in MoveInput) (MoveResult, error) {
	if in.Position != nil && *in.Position < 0 {
		return MoveResult{}, domain.InvalidArgument("position", "position must not be negative")
	}
	f, err := loadForest(ctx, tx)
	if err != nil {
		return MoveResult{}, err
	}
	taskID := strings.TrimSpace(in.TaskID)
	task, ok := f.byID[taskID]
	if !ok {
		return MoveResult{}, domain.NotFound("task", taskID)
	}

	var kind domain.ListKind
	if strings.TrimSpace(string(in.List)) != "" {
		if kind, err = domain.ParseListKind(string(in.List)); err != nil {
			return MoveResult{}, err
		}
	}

	var groupResult GroupResult
	parentID := strings.TrimSpace(in.ParentID)
	if parentID != "" {
		if parentID == taskID || f.isDescendant(taskID, parentID) {
			return MoveResult{}, domain.Cycle(taskID, parentID)
		}
		parent, ok := f.byID[parentID]
		if !ok {
			return MoveResult{}, domain.NotFound("task", parentID)
		}
		if kind != "" && kind != parent.List {
			return MoveResult{}, domain.InvalidArgument("parent_id", "parent task is in list "+string(parent.List))
		}
		if groupID := strings.TrimSpace(in.GroupID); groupID != "" && groupID != parent.GroupID {
			return MoveResult{}, domain.InvalidArgument("parent_id", "parent task is in a different group")
		}
		group, err := tx.GetGroup(ctx, parent.GroupID)
		if err != nil {
			return MoveResult{}, err
		}
		if name := strings.TrimSpace(in.GroupName); name != "" && !domain.SameGroupName(name, group.Name) {
			return MoveResult{}, domain.InvalidArgument("parent_id", "parent task is in group "+group.Name)
		}
		kind = parent.List
		groupResult = GroupResult{Group: group}
	} else {
		if kind == "" {
			kind = task.List
		}
		groupID, groupName := in.GroupID, in.GroupName
		if strings.TrimSpace(groupID) == "" && strings.TrimSpace(groupName) == "" && kind == task.List {
			groupID = task.GroupID
		}
		groupResult, err = s.resolveGroup(ctx, tx, kind, groupID, groupName)
		if err != nil {
			return MoveResult{}, err
		}
	}

	now := s.nowUTC()
	from := placementOf(task)
	to := placement{list: kind, groupID: groupResult.Group.ID, parentID: parentID}

	if from != to {
		if err := f.renumber(ctx, tx, f.siblings(from, taskID), now); err != nil {
			return MoveResult{}, err
		}
	}
	dest := f.siblings(to, taskID)
	index := len(dest)
	if in.Position != nil && *in.Position < index {
		index = *in.Position
	}

	task.List = to.list
	task.GroupID = to.groupID
	task.ParentID = to.parentID
	task.Position = index
	task.UpdatedAt = now
	if err := tx.PutTask(ctx, task); err != nil {
		return MoveResult{}, err
	}
	f.byID[taskID] = task

	ordered := make([]domain.Task, 0, len(dest)+1)
	ordered = append(ordered, dest[:index]...)
	ordered = append(ordered, task)
	ordered = append(ordered, dest[index:]...)
	if err := f.renumber(ctx, tx, ordered, now); err != nil {
		return MoveResult{}, err
	}

	subtree := f.subtree(taskID)
	for _, id := range subtree[1:] {
		child := f.byID[id]
		if child.List == to.list && child.GroupID == to.groupID {
			continue
		}
		child.List = to.list
		child.GroupID = to.groupID
		child.UpdatedAt = now
		if err := tx.PutTask(ctx, child); err != nil {
			return MoveResult{}, err
		}
		f.byID[id] = child
	}
	return MoveResult{Task: f.byID[taskID], Subtree: subtree, GroupResult: groupResult}, nil
}
