package state

import (
	"context"
	"strings"
	"time"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

// AddTaskInput describes a new task. The group may be named or given by id;
// with neither, the task lands in the list's default group. A parent pins
// the task to the parent's list and group.
type AddTaskInput struct {
	List            domain.ListKind
	GroupID         string
	GroupName       string
	ParentID        string
	Title           string
	Note            string
	Status          domain.Status
	Priority        domain.Priority
	EstimateMinutes int
	Tags            []string
}

// AddTaskResult is the stored task plus any list or group created for it.
type AddTaskResult struct {
	Task domain.Task
	GroupResult
}

// AddTask creates a task at the end of its sibling set.
func (s *Service) AddTask(ctx context.Context, tx storage.Tx, in AddTaskInput) (AddTaskResult, error) {
	title, err := domain.NormalizeTitle(in.Title)
	if err != nil {
		return AddTaskResult{}, err
	}
	estimate, err := domain.NormalizeEstimate(in.EstimateMinutes)
	if err != nil {
		return AddTaskResult{}, err
	}
	status, err := domain.ParseStatus(string(in.Status))
	if err != nil {
		return AddTaskResult{}, err
	}
	priority, err := domain.ParsePriority(string(in.Priority))
	if err != nil {
		return AddTaskResult{}, err
	}

	var kind domain.ListKind
	if strings.TrimSpace(string(in.List)) != "" {
		kind, err = domain.ParseListKind(string(in.List))
		if err != nil {
			return AddTaskResult{}, err
		}
	}

	f, err := loadForest(ctx, tx)
	if err != nil {
		return AddTaskResult{}, err
	}

	var groupResult GroupResult
	parentID := strings.TrimSpace(in.ParentID)
	if parentID != "" {
		parent, ok := f.byID[parentID]
		if !ok {
			return AddTaskResult{}, domain.NotFound("task", parentID)
		}
		if kind != "" && kind != parent.List {
			return AddTaskResult{}, domain.InvalidArgument("parent_id", "parent task is in list "+string(parent.List))
		}
		if groupID := strings.TrimSpace(in.GroupID); groupID != "" && groupID != parent.GroupID {
			return AddTaskResult{}, domain.InvalidArgument("parent_id", "parent task is in a different group")
		}
		group, err := tx.GetGroup(ctx, parent.GroupID)
		if err != nil {
			return AddTaskResult{}, err
		}
		if name := strings.TrimSpace(in.GroupName); name != "" && !domain.SameGroupName(name, group.Name) {
			return AddTaskResult{}, domain.InvalidArgument("parent_id", "parent task is in group "+group.Name)
		}
		kind = parent.List
		groupResult = GroupResult{Group: group}
	} else {
		if kind == "" {
			return AddTaskResult{}, domain.InvalidArgument("list", "list is required")
		}
		groupResult, err = s.resolveGroup(ctx, tx, kind, in.GroupID, in.GroupName)
		if err != nil {
			return AddTaskResult{}, err
		}
	}

	if priority == "" {
		priority = domain.DefaultPriority(kind)
	}
	taskID, err := s.nextID()
	if err != nil {
		return AddTaskResult{}, err
	}
	now := s.nowUTC()
	task := domain.Task{
		ID:              taskID,
		List:            kind,
		GroupID:         groupResult.Group.ID,
		ParentID:        parentID,
		Title:           title,
		Note:            strings.TrimSpace(in.Note),
		Status:          status,
		Priority:        priority,
		EstimateMinutes: estimate,
		Tags:            domain.NormalizeTags(in.Tags),
		Schedule:        domain.Schedule{Intent: domain.IntentUnscheduled},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	task.Position = len(f.siblings(placementOf(task)))
	if err := tx.PutTask(ctx, task); err != nil {
		return AddTaskResult{}, err
	}
	return AddTaskResult{Task: task, GroupResult: groupResult}, nil
}

// TaskPatch lists the plain fields a patch may change. Nil means unchanged.
type TaskPatch struct {
	Title           *string
	Note            *string
	Status          *domain.Status
	Priority        *domain.Priority
	EstimateMinutes *int
	Tags            *[]string
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Note == nil && p.Status == nil && p.Priority == nil && p.EstimateMinutes == nil && p.Tags == nil
}

// Change reports a task after an operation and the cascade it triggered.
type Change struct {
	Task            domain.Task
	Completed       bool
	ReminderCleared bool
}

// PatchTask updates plain task fields. Patching the status to done cascades
// like CompleteTask.
func (s *Service) PatchTask(ctx context.Context, tx storage.Tx, taskID string, patch TaskPatch) (Change, error) {
	if patch.IsEmpty() {
		return Change{}, domain.InvalidArgument("patch", "no fields to update")
	}
	task, err := s.loadTask(ctx, tx, taskID)
	if err != nil {
		return Change{}, err
	}
	change := Change{}

	if patch.Title != nil {
		if task.Title, err = domain.NormalizeTitle(*patch.Title); err != nil {
			return Change{}, err
		}
	}
	if patch.Note != nil {
		task.Note = strings.TrimSpace(*patch.Note)
	}
	if patch.Priority != nil {
		priority, err := domain.ParsePriority(string(*patch.Priority))
		if err != nil {
			return Change{}, err
		}
		if priority == "" {
			priority = domain.DefaultPriority(task.List)
		}
		task.Priority = priority
	}
	if patch.EstimateMinutes != nil {
		if task.EstimateMinutes, err = domain.NormalizeEstimate(*patch.EstimateMinutes); err != nil {
			return Change{}, err
		}
	}
	if patch.Tags != nil {
		task.Tags = domain.NormalizeTags(*patch.Tags)
	}
	if patch.Status != nil {
		status, err := domain.ParseStatus(string(*patch.Status))
		if err != nil {
			return Change{}, err
		}
		if status == domain.StatusDone && task.Status != domain.StatusDone {
			change.Completed = true
		}
		task.Status = status
	}
	if task.Status == domain.StatusDone && task.Reminder != nil {
		task.Reminder = nil
		change.ReminderCleared = true
	}

	task.UpdatedAt = s.nowUTC()
	if err := tx.PutTask(ctx, task); err != nil {
		return Change{}, err
	}
	change.Task = task
	return change, nil
}

// SetSchedule replaces the task's schedule intent. Dropping the explicit
// time while a reminder is attached is rejected; clear the reminder first.
func (s *Service) SetSchedule(ctx context.Context, tx storage.Tx, taskID string, schedule domain.Schedule) (domain.Task, error) {
	normalized, err := schedule.Normalize()
	if err != nil {
		return domain.Task{}, err
	}
	task, err := s.loadTask(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.Reminder != nil && !normalized.HasExplicitTime() {
		return domain.Task{}, domain.InvalidSchedule("task has a reminder attached; clear it before removing the explicit time")
	}
	task.Schedule = normalized
	task.UpdatedAt = s.nowUTC()
	if err := tx.PutTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// SetReminder attaches or replaces the task's reminder.
func (s *Service) SetReminder(ctx context.Context, tx storage.Tx, taskID string, reminder domain.Reminder) (domain.Task, error) {
	task, err := s.loadTask(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	now := s.nowUTC()
	validated, err := domain.ValidateReminder(task, reminder, now)
	if err != nil {
		return domain.Task{}, err
	}
	task.Reminder = &validated
	task.UpdatedAt = now
	if err := tx.PutTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// ClearReminder removes the task's reminder attachment, if any.
func (s *Service) ClearReminder(ctx context.Context, tx storage.Tx, taskID string) (Change, error) {
	task, err := s.loadTask(ctx, tx, taskID)
	if err != nil {
		return Change{}, err
	}
	change := Change{ReminderCleared: task.Reminder != nil}
	task.Reminder = nil
	task.UpdatedAt = s.nowUTC()
	if err := tx.PutTask(ctx, task); err != nil {
		return Change{}, err
	}
	change.Task = task
	return change, nil
}

// SetReviewHint sets the task's review hint, or clears it when hint is nil.
func (s *Service) SetReviewHint(ctx context.Context, tx storage.Tx, taskID string, hint *domain.ReviewHint) (domain.Task, error) {
	task, err := s.loadTask(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	now := s.nowUTC()
	if hint == nil {
		task.ReviewHint = nil
	} else {
		validated, err := domain.ValidateReviewHint(*hint, now)
		if err != nil {
			return domain.Task{}, err
		}
		task.ReviewHint = &validated
	}
	task.UpdatedAt = now
	if err := tx.PutTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// CompleteTask marks the task done and clears its reminder attachment.
// Completing a done task succeeds and changes nothing but the timestamp.
func (s *Service) CompleteTask(ctx context.Context, tx storage.Tx, taskID string) (Change, error) {
	task, err := s.loadTask(ctx, tx, taskID)
	if err != nil {
		return Change{}, err
	}
	change := Change{
		Completed:       task.Status != domain.StatusDone,
		ReminderCleared: task.Reminder != nil,
	}
	task.Status = domain.StatusDone
	task.Reminder = nil
	task.UpdatedAt = s.nowUTC()
	if err := tx.PutTask(ctx, task); err != nil {
		return Change{}, err
	}
	change.Task = task
	return change, nil
}

// ConsumeReminder drops a reminder attachment after its delivery reached a
// terminal outcome. It only clears an attachment still pointing at fireAt.
func (s *Service) ConsumeReminder(ctx context.Context, tx storage.Tx, taskID string, fireAt time.Time) (Change, error) {
	task, err := s.loadTask(ctx, tx, taskID)
	if err != nil {
		return Change{}, err
	}
	if task.Reminder == nil || !task.Reminder.FireAt.Equal(fireAt) {
		return Change{Task: task}, nil
	}
	task.Reminder = nil
	task.UpdatedAt = s.nowUTC()
	if err := tx.PutTask(ctx, task); err != nil {
		return Change{}, err
	}
	return Change{Task: task, ReminderCleared: true}, nil
}

// DeleteResult reports the removed root and every removed id, root first.
type DeleteResult struct {
	Task    domain.Task
	Removed []string
}

// DeleteTask removes the task and its subtree, then closes the gap among
// its former siblings.
func (s *Service) DeleteTask(ctx context.Context, tx storage.Tx, taskID string) (DeleteResult, error) {
	f, err := loadForest(ctx, tx)
	if err != nil {
		return DeleteResult{}, err
	}
	taskID = strings.TrimSpace(taskID)
	task, ok := f.byID[taskID]
	if !ok {
		return DeleteResult{}, domain.NotFound("task", taskID)
	}
	removed := f.subtree(taskID)
	if err := tx.DeleteTask(ctx, taskID); err != nil {
		return DeleteResult{}, err
	}
	for _, id := range removed {
		delete(f.byID, id)
	}
	if err := f.renumber(ctx, tx, f.siblings(placementOf(task)), s.nowUTC()); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Task: task, Removed: removed}, nil
}
