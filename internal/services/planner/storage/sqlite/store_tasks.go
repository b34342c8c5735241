package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

const taskColumns = `id, list, group_id, parent_id, position, title, note, status, priority,
estimate_minutes, tags_json, schedule_intent, schedule_date, schedule_time, window_start, window_end,
reminder_fire_at, reminder_message, review_at, review_reason, created_at, updated_at`

const taskOrder = `ORDER BY list, group_id, COALESCE(parent_id, ''), position, created_at, id`

// PutTask inserts or updates one task row.
func (t *txStore) PutTask(ctx context.Context, task domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeTask(task)
	if err != nil {
		return err
	}
	return putTaskExec(ctx, t.q, normalized)
}

// DeleteTask removes one task row. Child rows cascade.
func (t *txStore) DeleteTask(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("task id is required")
	}
	result, err := t.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetTask loads one task by id.
func (t *txStore) GetTask(ctx context.Context, id string) (domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return domain.Task{}, err
	}
	if t == nil || t.q == nil {
		return domain.Task{}, fmt.Errorf("storage is not configured")
	}
	row := t.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, strings.TrimSpace(id))
	task, err := scanTask(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, storage.ErrNotFound
		}
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// ListTasks returns every task in placement order.
func (t *txStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t == nil || t.q == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := t.q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks `+taskOrder)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]domain.Task, error) {
	defer rows.Close()
	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return tasks, nil
}

func normalizeTask(task domain.Task) (domain.Task, error) {
	task.ID = strings.TrimSpace(task.ID)
	task.GroupID = strings.TrimSpace(task.GroupID)
	task.ParentID = strings.TrimSpace(task.ParentID)
	task.Title = strings.TrimSpace(task.Title)
	if task.ID == "" {
		return domain.Task{}, fmt.Errorf("task id is required")
	}
	if task.List == "" {
		return domain.Task{}, fmt.Errorf("task list is required")
	}
	if task.GroupID == "" {
		return domain.Task{}, fmt.Errorf("task group id is required")
	}
	if task.Title == "" {
		return domain.Task{}, fmt.Errorf("task title is required")
	}
	if task.ParentID == task.ID {
		return domain.Task{}, fmt.Errorf("task cannot be its own parent")
	}
	if task.Status == "" {
		task.Status = domain.StatusTodo
	}
	if task.Priority == "" {
		return domain.Task{}, fmt.Errorf("task priority is required")
	}
	if task.Schedule.Intent == "" {
		task.Schedule.Intent = domain.IntentUnscheduled
	}
	if task.CreatedAt.IsZero() || task.UpdatedAt.IsZero() {
		return domain.Task{}, fmt.Errorf("task timestamps are required")
	}
	return task, nil
}

func putTaskExec(ctx context.Context, execer sqlQueryer, task domain.Task) error {
	tags := task.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode task tags: %w", err)
	}

	var parentID sql.NullString
	if task.ParentID != "" {
		parentID = sql.NullString{String: task.ParentID, Valid: true}
	}
	var reminderAt sql.NullInt64
	reminderMessage := ""
	if task.Reminder != nil {
		reminderAt = nullMillis(&task.Reminder.FireAt)
		reminderMessage = task.Reminder.Message
	}
	var reviewAt sql.NullInt64
	reviewReason := ""
	if task.ReviewHint != nil {
		reviewAt = nullMillis(&task.ReviewHint.At)
		reviewReason = task.ReviewHint.Reason
	}

	_, err = execer.ExecContext(ctx, `
INSERT INTO tasks (`+taskColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    list = excluded.list,
    group_id = excluded.group_id,
    parent_id = excluded.parent_id,
    position = excluded.position,
    title = excluded.title,
    note = excluded.note,
    status = excluded.status,
    priority = excluded.priority,
    estimate_minutes = excluded.estimate_minutes,
    tags_json = excluded.tags_json,
    schedule_intent = excluded.schedule_intent,
    schedule_date = excluded.schedule_date,
    schedule_time = excluded.schedule_time,
    window_start = excluded.window_start,
    window_end = excluded.window_end,
    reminder_fire_at = excluded.reminder_fire_at,
    reminder_message = excluded.reminder_message,
    review_at = excluded.review_at,
    review_reason = excluded.review_reason,
    updated_at = excluded.updated_at
`,
		task.ID,
		string(task.List),
		task.GroupID,
		parentID,
		task.Position,
		task.Title,
		task.Note,
		string(task.Status),
		string(task.Priority),
		task.EstimateMinutes,
		string(tagsJSON),
		string(task.Schedule.Intent),
		task.Schedule.Date,
		task.Schedule.Time,
		task.Schedule.WindowStart,
		task.Schedule.WindowEnd,
		reminderAt,
		reminderMessage,
		reviewAt,
		reviewReason,
		toMillis(task.CreatedAt),
		toMillis(task.UpdatedAt),
	)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return fmt.Errorf("put task %s: list, group or parent does not exist: %w", task.ID, err)
		}
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

func scanTask(scan scanner) (domain.Task, error) {
	var (
		task            domain.Task
		parentID        sql.NullString
		tagsJSON        string
		reminderAt      sql.NullInt64
		reminderMessage string
		reviewAt        sql.NullInt64
		reviewReason    string
		createdAt       int64
		updatedAt       int64
	)
	if err := scan(
		&task.ID,
		&task.List,
		&task.GroupID,
		&parentID,
		&task.Position,
		&task.Title,
		&task.Note,
		&task.Status,
		&task.Priority,
		&task.EstimateMinutes,
		&tagsJSON,
		&task.Schedule.Intent,
		&task.Schedule.Date,
		&task.Schedule.Time,
		&task.Schedule.WindowStart,
		&task.Schedule.WindowEnd,
		&reminderAt,
		&reminderMessage,
		&reviewAt,
		&reviewReason,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Task{}, err
	}
	if parentID.Valid {
		task.ParentID = parentID.String
	}
	if tagsJSON != "" && tagsJSON != "[]" {
		if err := json.Unmarshal([]byte(tagsJSON), &task.Tags); err != nil {
			return domain.Task{}, fmt.Errorf("decode task tags: %w", err)
		}
	}
	if reminderAt.Valid {
		task.Reminder = &domain.Reminder{FireAt: fromMillis(reminderAt.Int64), Message: reminderMessage}
	}
	if reviewAt.Valid {
		task.ReviewHint = &domain.ReviewHint{At: fromMillis(reviewAt.Int64), Reason: reviewReason}
	}
	task.CreatedAt = fromMillis(createdAt)
	task.UpdatedAt = fromMillis(updatedAt)
	return task, nil
}
