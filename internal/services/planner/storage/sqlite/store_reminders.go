package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

const reminderColumns = `id, task_id, fire_at, message, priority, status, attempts, next_attempt_at, last_attempt_at, last_error, created_at, updated_at`

// PutReminder inserts or updates one derived reminder record. A second
// scheduled record for the same task maps to storage.ErrConflict.
func (t *txStore) PutReminder(ctx context.Context, record domain.ReminderRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	record.ID = strings.TrimSpace(record.ID)
	record.TaskID = strings.TrimSpace(record.TaskID)
	if record.ID == "" {
		return fmt.Errorf("reminder id is required")
	}
	if record.TaskID == "" {
		return fmt.Errorf("reminder task id is required")
	}
	if record.FireAt.IsZero() {
		return fmt.Errorf("reminder fire at is required")
	}
	if record.Status == "" {
		return fmt.Errorf("reminder status is required")
	}
	if record.Attempts < 0 {
		return fmt.Errorf("reminder attempts must not be negative")
	}
	if record.CreatedAt.IsZero() || record.UpdatedAt.IsZero() {
		return fmt.Errorf("reminder timestamps are required")
	}

	_, err := t.q.ExecContext(ctx, `
INSERT INTO reminders (`+reminderColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    fire_at = excluded.fire_at,
    message = excluded.message,
    priority = excluded.priority,
    status = excluded.status,
    attempts = excluded.attempts,
    next_attempt_at = excluded.next_attempt_at,
    last_attempt_at = excluded.last_attempt_at,
    last_error = excluded.last_error,
    updated_at = excluded.updated_at
`,
		record.ID,
		record.TaskID,
		toMillis(record.FireAt),
		strings.TrimSpace(record.Message),
		string(record.Priority),
		string(record.Status),
		record.Attempts,
		nullMillis(record.NextAttemptAt),
		nullMillis(record.LastAttemptAt),
		record.LastError,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put reminder: %w", err)
	}
	return nil
}

// GetReminder loads one reminder record by id.
func (t *txStore) GetReminder(ctx context.Context, id string) (domain.ReminderRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ReminderRecord{}, err
	}
	if t == nil || t.q == nil {
		return domain.ReminderRecord{}, fmt.Errorf("storage is not configured")
	}
	row := t.q.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, strings.TrimSpace(id))
	record, err := scanReminder(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ReminderRecord{}, storage.ErrNotFound
		}
		return domain.ReminderRecord{}, fmt.Errorf("get reminder: %w", err)
	}
	return record, nil
}

// ListReminders returns records in the given statuses ordered by fire time.
func (t *txStore) ListReminders(ctx context.Context, statuses ...domain.ReminderStatus) ([]domain.ReminderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t == nil || t.q == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	query := `SELECT ` + reminderColumns + ` FROM reminders`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, 0, len(statuses))
		for _, status := range statuses {
			placeholders = append(placeholders, "?")
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY fire_at, created_at, id`

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return collectReminders(rows)
}

func collectReminders(rows *sql.Rows) ([]domain.ReminderRecord, error) {
	defer rows.Close()
	var records []domain.ReminderRecord
	for rows.Next() {
		record, err := scanReminder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan reminder row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminder rows: %w", err)
	}
	return records, nil
}

func scanReminder(scan scanner) (domain.ReminderRecord, error) {
	var (
		record        domain.ReminderRecord
		fireAt        int64
		nextAttemptAt sql.NullInt64
		lastAttemptAt sql.NullInt64
		createdAt     int64
		updatedAt     int64
	)
	if err := scan(
		&record.ID,
		&record.TaskID,
		&fireAt,
		&record.Message,
		&record.Priority,
		&record.Status,
		&record.Attempts,
		&nextAttemptAt,
		&lastAttemptAt,
		&record.LastError,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.ReminderRecord{}, err
	}
	record.FireAt = fromMillis(fireAt)
	if nextAttemptAt.Valid {
		value := fromMillis(nextAttemptAt.Int64)
		record.NextAttemptAt = &value
	}
	if lastAttemptAt.Valid {
		value := fromMillis(lastAttemptAt.Int64)
		record.LastAttemptAt = &value
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
