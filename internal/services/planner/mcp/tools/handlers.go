// Package tools defines the MCP tools and resources an assistant uses to
// read and change the plan. Every mutation goes through the orchestrator;
// handlers only translate between MCP payloads and planner operations.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/louisbranch/amaya/internal/platform/errors"
	"github.com/louisbranch/amaya/internal/platform/timeouts"
	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/orchestrator"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

// Planner is the mutation and read surface the tools call.
type Planner interface {
	Submit(ctx context.Context, op orchestrator.Operation) (orchestrator.Result, error)
	View(ctx context.Context) (storage.View, error)
	Reminders(ctx context.Context, statuses ...domain.ReminderStatus) ([]domain.ReminderRecord, error)
	Location() *time.Location
}

// Searcher runs AIP-160 filtered listings.
type Searcher interface {
	SearchTasks(ctx context.Context, filter string, limit int) ([]domain.Task, error)
	SearchReminders(ctx context.Context, filter string, limit int) ([]domain.ReminderRecord, error)
}

// ResourceUpdateNotifier tells subscribed clients that a resource changed.
type ResourceUpdateNotifier func(ctx context.Context, uri string)

// NotifyResourceUpdates calls notify once per non-empty uri.
func NotifyResourceUpdates(ctx context.Context, notify ResourceUpdateNotifier, uris ...string) {
	if notify == nil {
		return
	}
	for _, uri := range uris {
		if strings.TrimSpace(uri) == "" {
			continue
		}
		notify(ctx, uri)
	}
}

// ToolError renders a planner error as "CODE: detail" so the caller can
// branch on the code.
func ToolError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return fmt.Errorf("%s: %s", appErr.Code, appErr.Detail())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %s", apperrors.CodePersistence, err.Error())
	}
	return fmt.Errorf("%s: %s", apperrors.CodeUnknown, err.Error())
}

// mutationHandler submits the operation built from input and reports what
// changed.
func mutationHandler[I any](planner Planner, notify ResourceUpdateNotifier, build func(I) orchestrator.Operation) mcp.ToolHandlerFor[I, MutationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input I) (*mcp.CallToolResult, MutationResult, error) {
		if planner == nil {
			return nil, MutationResult{}, fmt.Errorf("planner is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		result, err := planner.Submit(runCtx, build(input))
		if err != nil {
			return nil, MutationResult{}, ToolError(err)
		}

		uris := []string{ViewResource().URI}
		if len(result.Scheduled) > 0 || len(result.Canceled) > 0 || result.Record != nil {
			uris = append(uris, PendingRemindersResource().URI)
		}
		NotifyResourceUpdates(ctx, notify, uris...)
		return &mcp.CallToolResult{}, mutationResultFrom(result, planner.Location()), nil
	}
}

// ListCreateTool defines the list_create tool.
func ListCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_create",
		Description: "Ensures one of the fixed lists exists. Creating an existing list is a no-op.",
	}
}

// ListCreateHandler executes list creation.
func ListCreateHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[ListCreateInput, MutationResult] {
	return mutationHandler(planner, notify, func(in ListCreateInput) orchestrator.Operation {
		return orchestrator.CreateList{List: in.List}
	})
}

// GroupCreateTool defines the group_create tool.
func GroupCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "group_create",
		Description: "Ensures a named group exists in a list; names match ignoring case.",
	}
}

// GroupCreateHandler executes group creation.
func GroupCreateHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[GroupCreateInput, MutationResult] {
	return mutationHandler(planner, notify, func(in GroupCreateInput) orchestrator.Operation {
		return orchestrator.CreateGroup{List: in.List, Name: in.Name}
	})
}

// TaskAddTool defines the task_add tool.
func TaskAddTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_add",
		Description: "Adds a task to a list and group, or as a subtask of parent_id. New tasks are unscheduled.",
	}
}

// TaskAddHandler executes task creation.
func TaskAddHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[TaskAddInput, MutationResult] {
	return mutationHandler(planner, notify, func(in TaskAddInput) orchestrator.Operation {
		return orchestrator.AddTask{
			List:            in.List,
			GroupID:         in.GroupID,
			GroupName:       in.GroupName,
			ParentID:        in.ParentID,
			Title:           in.Title,
			Note:            in.Note,
			Status:          in.Status,
			Priority:        in.Priority,
			EstimateMinutes: in.EstimateMinutes,
			Tags:            in.Tags,
		}
	})
}

// TaskPatchTool defines the task_patch tool.
func TaskPatchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_patch",
		Description: "Updates plain task fields. Omitted fields are unchanged; status done also cancels the task's reminder.",
	}
}

// TaskPatchHandler executes a task patch.
func TaskPatchHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[TaskPatchInput, MutationResult] {
	return mutationHandler(planner, notify, func(in TaskPatchInput) orchestrator.Operation {
		return orchestrator.PatchTask{
			TaskID:          in.TaskID,
			Title:           in.Title,
			Note:            in.Note,
			Status:          in.Status,
			Priority:        in.Priority,
			EstimateMinutes: in.EstimateMinutes,
			Tags:            in.Tags,
		}
	})
}

// TaskSetScheduleTool defines the task_set_schedule tool.
func TaskSetScheduleTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "task_set_schedule",
		Description: "Sets a task's schedule intent. date_only needs date; exact_time needs date and time; " +
			"time_window needs date, window_start and window_end. Times are in the planner timezone.",
	}
}

// TaskSetScheduleHandler executes a schedule change.
func TaskSetScheduleHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[TaskScheduleInput, MutationResult] {
	return mutationHandler(planner, notify, func(in TaskScheduleInput) orchestrator.Operation {
		return orchestrator.SetSchedule{
			TaskID:      in.TaskID,
			Intent:      in.Intent,
			Date:        in.Date,
			Time:        in.Time,
			WindowStart: in.WindowStart,
			WindowEnd:   in.WindowEnd,
		}
	})
}

// TaskSetReminderTool defines the task_set_reminder tool.
func TaskSetReminderTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "task_set_reminder",
		Description: "Attaches a reminder at a future instant. Only tasks scheduled with exact_time or time_window " +
			"accept reminders; for loosely planned work use task_set_review_hint instead.",
	}
}

// TaskSetReminderHandler executes a reminder attachment.
func TaskSetReminderHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[TaskReminderInput, MutationResult] {
	return mutationHandler(planner, notify, func(in TaskReminderInput) orchestrator.Operation {
		return orchestrator.SetReminder{TaskID: in.TaskID, At: in.At, Message: in.Message}
	})
}

// TaskClearReminderTool defines the task_clear_reminder tool.
func TaskClearReminderTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_clear_reminder",
		Description: "Removes a task's reminder and cancels its scheduled notification.",
	}
}

// TaskClearReminderHandler executes a reminder removal.
func TaskClearReminderHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[TaskRefInput, MutationResult] {
	return mutationHandler(planner, notify, func(in TaskRefInput) orchestrator.Operation {
		return orchestrator.ClearReminder{TaskID: in.TaskID}
	})
}

// TaskSetReviewHintTool defines the task_set_review_hint tool.
func TaskSetReviewHintTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_set_review_hint",
		Description: "Sets or clears a soft review hint. Review hints never produce notifications.",
	}
}

// TaskSetReviewHintHandler executes a review hint change.
func TaskSetReviewHintHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[TaskReviewHintInput, MutationResult] {
	return mutationHandler(planner, notify, func(in TaskReviewHintInput) orchestrator.Operation {
		return orchestrator.SetReviewHint{TaskID: in.TaskID, At: in.At, Reason: in.Reason, Clear: in.Clear}
	})
}

// TaskMoveTool defines the task_move tool.
func TaskMoveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_move",
		Description: "Moves a task with its subtree under a new parent or into a list/group, optionally at a position.",
	}
}

// TaskMoveHandler executes a move.
func TaskMoveHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[TaskMoveInput, MutationResult] {
	return mutationHandler(planner, notify, func(in TaskMoveInput) orchestrator.Operation {
		return orchestrator.MoveTask{
			TaskID:    in.TaskID,
			List:      in.List,
			GroupID:   in.GroupID,
			GroupName: in.GroupName,
			ParentID:  in.ParentID,
			Position:  in.Position,
		}
	})
}

// TaskCompleteTool defines the task_complete tool.
func TaskCompleteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_complete",
		Description: "Marks a task done and cancels any reminder that has not been sent.",
	}
}

// TaskCompleteHandler executes task completion.
func TaskCompleteHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[TaskRefInput, MutationResult] {
	return mutationHandler(planner, notify, func(in TaskRefInput) orchestrator.Operation {
		return orchestrator.CompleteTask{TaskID: in.TaskID}
	})
}

// TaskDeleteTool defines the task_delete tool.
func TaskDeleteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_delete",
		Description: "Deletes a task and its subtree, canceling their scheduled reminders.",
	}
}

// TaskDeleteHandler executes task deletion.
func TaskDeleteHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[TaskRefInput, MutationResult] {
	return mutationHandler(planner, notify, func(in TaskRefInput) orchestrator.Operation {
		return orchestrator.DeleteTask{TaskID: in.TaskID}
	})
}

// ReminderAcknowledgeTool defines the reminder_acknowledge tool.
func ReminderAcknowledgeTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "reminder_acknowledge",
		Description: "Records that the user saw a sent reminder.",
	}
}

// ReminderAcknowledgeHandler executes a reminder acknowledgement.
func ReminderAcknowledgeHandler(planner Planner, notify ResourceUpdateNotifier) mcp.ToolHandlerFor[ReminderAckInput, MutationResult] {
	return mutationHandler(planner, notify, func(in ReminderAckInput) orchestrator.Operation {
		return orchestrator.AcknowledgeReminder{ReminderID: in.ReminderID}
	})
}

// TaskListTool defines the task_list tool.
func TaskListTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "task_list",
		Description: "Lists tasks matching an optional AIP-160 filter over id, list, group_id, parent_id, title, " +
			"status, priority, intent, date, estimate, created_at and updated_at.",
	}
}

// TaskListHandler executes a filtered task listing.
func TaskListHandler(planner Planner, search Searcher) mcp.ToolHandlerFor[SearchInput, TaskListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, TaskListResult, error) {
		if planner == nil || search == nil {
			return nil, TaskListResult{}, fmt.Errorf("task search is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		tasks, err := search.SearchTasks(runCtx, input.Filter, input.Limit)
		if err != nil {
			return nil, TaskListResult{}, ToolError(err)
		}
		loc := planner.Location()
		result := TaskListResult{Tasks: make([]TaskResult, 0, len(tasks))}
		for _, task := range tasks {
			result.Tasks = append(result.Tasks, taskResultFrom(task, loc))
		}
		return &mcp.CallToolResult{}, result, nil
	}
}

// ReminderListTool defines the reminder_list tool.
func ReminderListTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "reminder_list",
		Description: "Lists derived reminder records matching an optional AIP-160 filter over id, task_id, status, " +
			"priority, attempts, fire_at and created_at.",
	}
}

// ReminderListHandler executes a filtered reminder listing.
func ReminderListHandler(planner Planner, search Searcher) mcp.ToolHandlerFor[SearchInput, ReminderListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, ReminderListResult, error) {
		if planner == nil || search == nil {
			return nil, ReminderListResult{}, fmt.Errorf("reminder search is not configured")
		}
		runCtx, cancel := context.WithTimeout(ctx, timeouts.ToolCall)
		defer cancel()

		records, err := search.SearchReminders(runCtx, input.Filter, input.Limit)
		if err != nil {
			return nil, ReminderListResult{}, ToolError(err)
		}
		return &mcp.CallToolResult{}, ReminderListResult{Reminders: reminderResults(records, planner.Location())}, nil
	}
}

func mutationResultFrom(result orchestrator.Result, loc *time.Location) MutationResult {
	out := MutationResult{
		Operation: result.Operation,
		Removed:   result.Removed,
		Moved:     result.Subtree,
		Scheduled: reminderResults(result.Scheduled, loc),
		Canceled:  reminderResults(result.Canceled, loc),
		EventSeq:  result.EventSeq,
	}
	if result.List != nil {
		out.List = string(result.List.Kind)
	}
	if result.Group != nil && result.Group.ID != "" {
		out.Group = &GroupResult{
			ID:   result.Group.ID,
			List: string(result.Group.List),
			Name: result.Group.Name,
		}
		out.List = string(result.Group.List)
	}
	if result.Task != nil {
		task := taskResultFrom(*result.Task, loc)
		out.Task = &task
		out.List = task.List
	}
	if result.Record != nil {
		record := reminderResultFrom(*result.Record, loc)
		out.Reminder = &record
	}
	return out
}

func taskResultFrom(task domain.Task, loc *time.Location) TaskResult {
	result := TaskResult{
		ID:              task.ID,
		List:            string(task.List),
		GroupID:         task.GroupID,
		ParentID:        task.ParentID,
		Position:        task.Position,
		Title:           task.Title,
		Note:            task.Note,
		Status:          string(task.Status),
		Priority:        string(task.Priority),
		EstimateMinutes: task.EstimateMinutes,
		Tags:            task.Tags,
		Schedule: ScheduleResult{
			Intent:      string(task.Schedule.Intent),
			Date:        task.Schedule.Date,
			Time:        task.Schedule.Time,
			WindowStart: task.Schedule.WindowStart,
			WindowEnd:   task.Schedule.WindowEnd,
		},
		UpdatedAt: formatTime(task.UpdatedAt, loc),
	}
	if result.Schedule.Intent == "" {
		result.Schedule.Intent = string(domain.IntentUnscheduled)
	}
	if task.Reminder != nil {
		result.ReminderAt = formatTime(task.Reminder.FireAt, loc)
		result.ReminderMessage = task.Reminder.Message
	}
	if task.ReviewHint != nil {
		result.ReviewAt = formatTime(task.ReviewHint.At, loc)
		result.ReviewReason = task.ReviewHint.Reason
	}
	return result
}

func reminderResults(records []domain.ReminderRecord, loc *time.Location) []ReminderResult {
	if len(records) == 0 {
		return nil
	}
	out := make([]ReminderResult, 0, len(records))
	for _, record := range records {
		out = append(out, reminderResultFrom(record, loc))
	}
	return out
}

func reminderResultFrom(record domain.ReminderRecord, loc *time.Location) ReminderResult {
	result := ReminderResult{
		ID:        record.ID,
		TaskID:    record.TaskID,
		FireAt:    formatTime(record.FireAt, loc),
		Status:    string(record.Status),
		Priority:  string(record.Priority),
		Message:   record.Message,
		Attempts:  record.Attempts,
		LastError: record.LastError,
	}
	if record.NextAttemptAt != nil {
		result.NextAttemptAt = formatTime(*record.NextAttemptAt, loc)
	}
	return result
}

// formatTime returns an RFC3339 timestamp in loc, or empty for zero values.
func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(time.RFC3339)
}
