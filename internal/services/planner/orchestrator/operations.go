package orchestrator

import (
	"strings"
	"time"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
)

// Operation is one structured mutation request. The set of operations is
// closed: only types in this package implement it.
type Operation interface {
	// Kind names the operation in the journal and in telemetry.
	Kind() string
	// Validate checks the payload shape against now and the planner timezone
	// without touching storage.
	Validate(now time.Time, loc *time.Location) error
	target() string
}

// CreateList ensures one of the fixed lists exists.
type CreateList struct {
	List string
}

// CreateGroup ensures a named group exists in a list.
type CreateGroup struct {
	List string
	Name string
}

// AddTask creates a task under a list/group or under a parent task.
type AddTask struct {
	List            string
	GroupID         string
	GroupName       string
	ParentID        string
	Title           string
	Note            string
	Status          string
	Priority        string
	EstimateMinutes int
	Tags            []string
}

// PatchTask updates plain task fields. Nil fields are left unchanged.
type PatchTask struct {
	TaskID          string
	Title           *string
	Note            *string
	Status          *string
	Priority        *string
	EstimateMinutes *int
	Tags            *[]string
}

// SetSchedule replaces a task's schedule intent.
type SetSchedule struct {
	TaskID      string
	Intent      string
	Date        string
	Time        string
	WindowStart string
	WindowEnd   string
}

// SetReminder attaches a reminder at an instant. At is RFC 3339 or a local
// date-time in the planner timezone.
type SetReminder struct {
	TaskID  string
	At      string
	Message string
}

// ClearReminder removes a task's reminder attachment.
type ClearReminder struct {
	TaskID string
}

// SetReviewHint sets or clears a task's review hint.
type SetReviewHint struct {
	TaskID string
	At     string
	Reason string
	Clear  bool
}

// MoveTask re-parents or re-orders a task with its subtree.
type MoveTask struct {
	TaskID    string
	List      string
	GroupID   string
	GroupName string
	ParentID  string
	Position  *int
}

// CompleteTask marks a task done.
type CompleteTask struct {
	TaskID string
}

// DeleteTask removes a task and its subtree.
type DeleteTask struct {
	TaskID string
}

// AcknowledgeReminder records that the user saw a sent reminder.
type AcknowledgeReminder struct {
	ReminderID string
}

func (CreateList) Kind() string          { return "create_list" }
func (CreateGroup) Kind() string         { return "create_group" }
func (AddTask) Kind() string             { return "add_task" }
func (PatchTask) Kind() string           { return "patch_task" }
func (SetSchedule) Kind() string         { return "set_schedule" }
func (SetReminder) Kind() string         { return "set_reminder" }
func (ClearReminder) Kind() string       { return "clear_reminder" }
func (SetReviewHint) Kind() string       { return "set_review_hint" }
func (MoveTask) Kind() string            { return "move_task" }
func (CompleteTask) Kind() string        { return "complete_task" }
func (DeleteTask) Kind() string          { return "delete_task" }
func (AcknowledgeReminder) Kind() string { return "acknowledge_reminder" }

func (op CreateList) target() string          { return strings.TrimSpace(op.List) }
func (op CreateGroup) target() string         { return strings.TrimSpace(op.List) }
func (op AddTask) target() string             { return strings.TrimSpace(op.ParentID) }
func (op PatchTask) target() string           { return strings.TrimSpace(op.TaskID) }
func (op SetSchedule) target() string         { return strings.TrimSpace(op.TaskID) }
func (op SetReminder) target() string         { return strings.TrimSpace(op.TaskID) }
func (op ClearReminder) target() string       { return strings.TrimSpace(op.TaskID) }
func (op SetReviewHint) target() string       { return strings.TrimSpace(op.TaskID) }
func (op MoveTask) target() string            { return strings.TrimSpace(op.TaskID) }
func (op CompleteTask) target() string        { return strings.TrimSpace(op.TaskID) }
func (op DeleteTask) target() string          { return strings.TrimSpace(op.TaskID) }
func (op AcknowledgeReminder) target() string { return strings.TrimSpace(op.ReminderID) }

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.InvalidArgument(field, field+" is required")
	}
	return nil
}

// Validate checks the list name.
func (op CreateList) Validate(time.Time, *time.Location) error {
	_, err := domain.ParseListKind(op.List)
	return err
}

// Validate checks the list and group name.
func (op CreateGroup) Validate(time.Time, *time.Location) error {
	if _, err := domain.ParseListKind(op.List); err != nil {
		return err
	}
	_, err := domain.NormalizeGroupName(op.Name)
	return err
}

// Validate checks title, placement and enum fields.
func (op AddTask) Validate(time.Time, *time.Location) error {
	if _, err := domain.NormalizeTitle(op.Title); err != nil {
		return err
	}
	if strings.TrimSpace(op.List) == "" && strings.TrimSpace(op.ParentID) == "" {
		return domain.InvalidArgument("list", "list is required unless a parent task is given")
	}
	if strings.TrimSpace(op.List) != "" {
		if _, err := domain.ParseListKind(op.List); err != nil {
			return err
		}
	}
	if _, err := domain.ParseStatus(op.Status); err != nil {
		return err
	}
	if _, err := domain.ParsePriority(op.Priority); err != nil {
		return err
	}
	_, err := domain.NormalizeEstimate(op.EstimateMinutes)
	return err
}

// Validate checks that the patch changes at least one well-formed field.
func (op PatchTask) Validate(time.Time, *time.Location) error {
	if err := requireID("task_id", op.TaskID); err != nil {
		return err
	}
	if op.Title == nil && op.Note == nil && op.Status == nil && op.Priority == nil && op.EstimateMinutes == nil && op.Tags == nil {
		return domain.InvalidArgument("patch", "no fields to update")
	}
	if op.Title != nil {
		if _, err := domain.NormalizeTitle(*op.Title); err != nil {
			return err
		}
	}
	if op.Status != nil {
		if _, err := domain.ParseStatus(*op.Status); err != nil {
			return err
		}
	}
	if op.Priority != nil {
		if _, err := domain.ParsePriority(*op.Priority); err != nil {
			return err
		}
	}
	if op.EstimateMinutes != nil {
		if _, err := domain.NormalizeEstimate(*op.EstimateMinutes); err != nil {
			return err
		}
	}
	return nil
}

func (op SetSchedule) schedule() domain.Schedule {
	return domain.Schedule{
		Intent:      domain.Intent(op.Intent),
		Date:        op.Date,
		Time:        op.Time,
		WindowStart: op.WindowStart,
		WindowEnd:   op.WindowEnd,
	}
}

// Validate checks the intent against its date and time fields.
func (op SetSchedule) Validate(time.Time, *time.Location) error {
	if err := requireID("task_id", op.TaskID); err != nil {
		return err
	}
	_, err := op.schedule().Normalize()
	return err
}

func (op SetReminder) reminder(loc *time.Location) (domain.Reminder, error) {
	at, err := domain.ParseInstant(op.At, loc)
	if err != nil {
		return domain.Reminder{}, domain.InvalidReminder(err.Error())
	}
	return domain.Reminder{FireAt: at, Message: op.Message}, nil
}

// Validate checks that the reminder instant parses and lies in the future.
func (op SetReminder) Validate(now time.Time, loc *time.Location) error {
	if err := requireID("task_id", op.TaskID); err != nil {
		return err
	}
	reminder, err := op.reminder(loc)
	if err != nil {
		return err
	}
	if !reminder.FireAt.After(now) {
		return domain.InvalidReminder("reminder instant must be in the future")
	}
	return nil
}

// Validate checks the task id.
func (op ClearReminder) Validate(time.Time, *time.Location) error {
	return requireID("task_id", op.TaskID)
}

func (op SetReviewHint) hint(loc *time.Location) (*domain.ReviewHint, error) {
	if op.Clear {
		return nil, nil
	}
	at, err := domain.ParseInstant(op.At, loc)
	if err != nil {
		return nil, domain.InvalidSchedule(err.Error())
	}
	return &domain.ReviewHint{At: at, Reason: op.Reason}, nil
}

// Validate checks the hint instant unless the hint is being cleared.
func (op SetReviewHint) Validate(now time.Time, loc *time.Location) error {
	if err := requireID("task_id", op.TaskID); err != nil {
		return err
	}
	hint, err := op.hint(loc)
	if err != nil || hint == nil {
		return err
	}
	_, err = domain.ValidateReviewHint(*hint, now)
	return err
}

// Validate checks the destination shape.
func (op MoveTask) Validate(time.Time, *time.Location) error {
	if err := requireID("task_id", op.TaskID); err != nil {
		return err
	}
	if strings.TrimSpace(op.List) != "" {
		if _, err := domain.ParseListKind(op.List); err != nil {
			return err
		}
	}
	if op.Position != nil && *op.Position < 0 {
		return domain.InvalidArgument("position", "position must not be negative")
	}
	if strings.TrimSpace(op.ParentID) != "" && strings.TrimSpace(op.ParentID) == strings.TrimSpace(op.TaskID) {
		return domain.Cycle(strings.TrimSpace(op.TaskID), strings.TrimSpace(op.ParentID))
	}
	return nil
}

// Validate checks the task id.
func (op CompleteTask) Validate(time.Time, *time.Location) error {
	return requireID("task_id", op.TaskID)
}

// Validate checks the task id.
func (op DeleteTask) Validate(time.Time, *time.Location) error {
	return requireID("task_id", op.TaskID)
}

// Validate checks the reminder id.
func (op AcknowledgeReminder) Validate(time.Time, *time.Location) error {
	return requireID("reminder_id", op.ReminderID)
}
