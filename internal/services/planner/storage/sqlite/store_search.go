package sqlite

import (
	"context"
	"fmt"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/eventlog"
	"github.com/louisbranch/amaya/internal/services/planner/filter"
)

const defaultSearchLimit = 200

func searchLimit(limit int) int {
	if limit <= 0 || limit > defaultSearchLimit {
		return defaultSearchLimit
	}
	return limit
}

func whereClause(cond filter.SQLCondition) string {
	if cond.IsEmpty() {
		return ""
	}
	return " WHERE " + cond.Clause
}

// SearchTasks lists tasks matching an AIP-160 filter.
func (s *Store) SearchTasks(ctx context.Context, filterStr string, limit int) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	cond, err := filter.Tasks.Parse(filterStr)
	if err != nil {
		return nil, domain.InvalidArgument("filter", err.Error())
	}
	args := append(cond.Params, searchLimit(limit))
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`+whereClause(cond)+` `+taskOrder+` LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	return collectTasks(rows)
}

// SearchReminders lists reminder records matching an AIP-160 filter.
func (s *Store) SearchReminders(ctx context.Context, filterStr string, limit int) ([]domain.ReminderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	cond, err := filter.Reminders.Parse(filterStr)
	if err != nil {
		return nil, domain.InvalidArgument("filter", err.Error())
	}
	args := append(cond.Params, searchLimit(limit))
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+reminderColumns+` FROM reminders`+whereClause(cond)+` ORDER BY fire_at, created_at, id LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("search reminders: %w", err)
	}
	return collectReminders(rows)
}

// SearchEvents lists journal entries matching an AIP-160 filter, newest first.
func (s *Store) SearchEvents(ctx context.Context, filterStr string, limit int) ([]eventlog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	cond, err := filter.Events.Parse(filterStr)
	if err != nil {
		return nil, domain.InvalidArgument("filter", err.Error())
	}
	args := append(cond.Params, searchLimit(limit))
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+eventColumns+` FROM events`+whereClause(cond)+` ORDER BY seq DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return collectEvents(rows)
}
