package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/amaya/internal/services/planner/derive"
	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/eventlog"
	"github.com/louisbranch/amaya/internal/services/planner/state"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

// journal collects the entries one operation appends.
type journal struct {
	at      time.Time
	entries []eventlog.Entry
	err     error
}

func (j *journal) add(entityKind eventlog.EntityKind, entityID string, kind eventlog.Kind, payload any) {
	if j.err != nil {
		return
	}
	entry, err := eventlog.New(entityKind, entityID, kind, payload, j.at)
	if err != nil {
		j.err = err
		return
	}
	j.entries = append(j.entries, entry)
}

func (j *journal) task(kind eventlog.Kind, task domain.Task, subtree []string, reason string) {
	payload := taskPayload(task)
	payload.Subtree = subtree
	payload.Reason = reason
	j.add(eventlog.EntityTask, task.ID, kind, payload)
}

func (j *journal) groups(result state.GroupResult) {
	if result.ListCreated {
		j.add(eventlog.EntityList, string(result.Group.List), eventlog.KindListCreated, eventlog.ListPayload{List: string(result.Group.List)})
	}
	if result.GroupCreated {
		j.add(eventlog.EntityGroup, result.Group.ID, eventlog.KindGroupCreated, eventlog.GroupPayload{
			GroupID: result.Group.ID,
			List:    string(result.Group.List),
			Name:    result.Group.Name,
		})
	}
}

func (j *journal) change(kind eventlog.Kind, change state.Change) {
	j.task(kind, change.Task, nil, "")
	if change.Completed && kind != eventlog.KindTaskCompleted {
		j.task(eventlog.KindTaskCompleted, change.Task, nil, "")
	}
	if change.ReminderCleared {
		j.task(eventlog.KindTaskReminderCleared, change.Task, nil, "")
	}
}

func taskPayload(task domain.Task) eventlog.TaskPayload {
	payload := eventlog.TaskPayload{
		TaskID:      task.ID,
		List:        string(task.List),
		GroupID:     task.GroupID,
		ParentID:    task.ParentID,
		Position:    task.Position,
		Title:       task.Title,
		Status:      string(task.Status),
		Priority:    string(task.Priority),
		Intent:      string(task.Schedule.Intent),
		Date:        task.Schedule.Date,
		Time:        task.Schedule.Time,
		WindowStart: task.Schedule.WindowStart,
		WindowEnd:   task.Schedule.WindowEnd,
	}
	if task.Reminder != nil {
		at := task.Reminder.FireAt.UTC()
		payload.ReminderAt = &at
	}
	if task.ReviewHint != nil {
		at := task.ReviewHint.At.UTC()
		payload.ReviewAt = &at
	}
	return payload
}

// apply runs the state change for op inside tx.
func (o *Orchestrator) apply(ctx context.Context, tx storage.Tx, op Operation, now time.Time) (Result, []eventlog.Entry, error) {
	j := &journal{at: now}
	var result Result

	switch op := op.(type) {
	case CreateList:
		list, created, err := o.state.CreateList(ctx, tx, domain.ListKind(op.List))
		if err != nil {
			return Result{}, nil, err
		}
		if created {
			j.add(eventlog.EntityList, string(list.Kind), eventlog.KindListCreated, eventlog.ListPayload{List: string(list.Kind)})
		}
		result.List = &list

	case CreateGroup:
		res, err := o.state.CreateGroup(ctx, tx, domain.ListKind(op.List), op.Name)
		if err != nil {
			return Result{}, nil, err
		}
		j.groups(res)
		result.Group = &res.Group

	case AddTask:
		res, err := o.state.AddTask(ctx, tx, state.AddTaskInput{
			List:            domain.ListKind(op.List),
			GroupID:         op.GroupID,
			GroupName:       op.GroupName,
			ParentID:        op.ParentID,
			Title:           op.Title,
			Note:            op.Note,
			Status:          domain.Status(op.Status),
			Priority:        domain.Priority(op.Priority),
			EstimateMinutes: op.EstimateMinutes,
			Tags:            op.Tags,
		})
		if err != nil {
			return Result{}, nil, err
		}
		j.groups(res.GroupResult)
		j.task(eventlog.KindTaskAdded, res.Task, nil, "")
		result.Task = &res.Task
		result.Group = &res.Group

	case PatchTask:
		patch := state.TaskPatch{
			Title:           op.Title,
			Note:            op.Note,
			EstimateMinutes: op.EstimateMinutes,
			Tags:            op.Tags,
		}
		if op.Status != nil {
			status := domain.Status(*op.Status)
			patch.Status = &status
		}
		if op.Priority != nil {
			priority := domain.Priority(*op.Priority)
			patch.Priority = &priority
		}
		change, err := o.state.PatchTask(ctx, tx, op.TaskID, patch)
		if err != nil {
			return Result{}, nil, err
		}
		j.change(eventlog.KindTaskPatched, change)
		result.Task = &change.Task

	case SetSchedule:
		task, err := o.state.SetSchedule(ctx, tx, op.TaskID, op.schedule())
		if err != nil {
			return Result{}, nil, err
		}
		j.task(eventlog.KindTaskScheduled, task, nil, "")
		result.Task = &task

	case SetReminder:
		reminder, err := op.reminder(o.cfg.Location)
		if err != nil {
			return Result{}, nil, err
		}
		task, err := o.state.SetReminder(ctx, tx, op.TaskID, reminder)
		if err != nil {
			return Result{}, nil, err
		}
		j.task(eventlog.KindTaskReminderSet, task, nil, "")
		result.Task = &task

	case ClearReminder:
		change, err := o.state.ClearReminder(ctx, tx, op.TaskID)
		if err != nil {
			return Result{}, nil, err
		}
		if change.ReminderCleared {
			j.task(eventlog.KindTaskReminderCleared, change.Task, nil, "cleared")
		}
		result.Task = &change.Task

	case SetReviewHint:
		hint, err := op.hint(o.cfg.Location)
		if err != nil {
			return Result{}, nil, err
		}
		task, err := o.state.SetReviewHint(ctx, tx, op.TaskID, hint)
		if err != nil {
			return Result{}, nil, err
		}
		j.task(eventlog.KindTaskReviewHintSet, task, nil, "")
		result.Task = &task

	case MoveTask:
		res, err := o.state.MoveTask(ctx, tx, state.MoveInput{
			TaskID:    op.TaskID,
			List:      domain.ListKind(op.List),
			GroupID:   op.GroupID,
			GroupName: op.GroupName,
			ParentID:  op.ParentID,
			Position:  op.Position,
		})
		if err != nil {
			return Result{}, nil, err
		}
		j.groups(res.GroupResult)
		j.task(eventlog.KindTaskMoved, res.Task, res.Subtree, "")
		result.Task = &res.Task
		result.Group = &res.Group
		result.Subtree = res.Subtree

	case CompleteTask:
		change, err := o.state.CompleteTask(ctx, tx, op.TaskID)
		if err != nil {
			return Result{}, nil, err
		}
		j.change(eventlog.KindTaskCompleted, change)
		result.Task = &change.Task

	case DeleteTask:
		res, err := o.state.DeleteTask(ctx, tx, op.TaskID)
		if err != nil {
			return Result{}, nil, err
		}
		j.task(eventlog.KindTaskDeleted, res.Task, res.Removed, "")
		result.Task = &res.Task
		result.Removed = res.Removed

	case AcknowledgeReminder:
		record, err := acknowledge(ctx, tx, op.ReminderID, now)
		if err != nil {
			return Result{}, nil, err
		}
		j.add(eventlog.EntityReminder, record.ID, eventlog.KindReminderAcknowledged, derive.Payload(record))
		result.Record = &record

	default:
		return Result{}, nil, fmt.Errorf("unsupported operation %T", op)
	}

	if j.err != nil {
		return Result{}, nil, j.err
	}
	return result, j.entries, nil
}

func acknowledge(ctx context.Context, tx storage.Tx, reminderID string, now time.Time) (domain.ReminderRecord, error) {
	record, err := tx.GetReminder(ctx, reminderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.ReminderRecord{}, domain.NotFound("reminder", reminderID)
		}
		return domain.ReminderRecord{}, err
	}
	if err := record.Transition(domain.ReminderAcknowledged, now); err != nil {
		return domain.ReminderRecord{}, err
	}
	if err := tx.PutReminder(ctx, record); err != nil {
		return domain.ReminderRecord{}, err
	}
	return record, nil
}
