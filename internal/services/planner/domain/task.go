package domain

import (
	"slices"
	"strings"
	"time"
)

// Status is a task's progress state.
type Status string

const (
	StatusTodo    Status = "todo"
	StatusDoing   Status = "doing"
	StatusDone    Status = "done"
	StatusBlocked Status = "blocked"
)

// ParseStatus normalizes a raw status. Empty means todo.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StatusTodo:
		return StatusTodo, nil
	case StatusDoing:
		return StatusDoing, nil
	case StatusDone:
		return StatusDone, nil
	case StatusBlocked:
		return StatusBlocked, nil
	default:
		return "", InvalidArgument("status", "unknown status "+strings.TrimSpace(raw))
	}
}

// Priority orders tasks and is copied onto derived reminders.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority normalizes a raw priority. Empty is returned as empty so the
// caller can apply the list default.
func ParsePriority(raw string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", nil
	case PriorityLow:
		return PriorityLow, nil
	case PriorityNormal:
		return PriorityNormal, nil
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityCritical:
		return PriorityCritical, nil
	default:
		return "", InvalidArgument("priority", "unknown priority "+strings.TrimSpace(raw))
	}
}

// DefaultPriority is applied when a task is added without a priority.
func DefaultPriority(list ListKind) Priority {
	if list == ListNextAction {
		return PriorityLow
	}
	return PriorityNormal
}

// Task is one node of the plan hierarchy.
type Task struct {
	ID              string
	List            ListKind
	GroupID         string
	ParentID        string
	Position        int
	Title           string
	Note            string
	Status          Status
	Priority        Priority
	EstimateMinutes int
	Tags            []string
	Schedule        Schedule
	Reminder        *Reminder
	ReviewHint      *ReviewHint
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasLiveReminder reports whether the task currently obliges a reminder.
func (t Task) HasLiveReminder() bool {
	return t.Reminder != nil && t.Status != StatusDone
}

// NormalizeTitle trims and collapses whitespace in a title.
func NormalizeTitle(raw string) (string, error) {
	title := strings.Join(strings.Fields(raw), " ")
	if title == "" {
		return "", InvalidArgument("title", "title is required")
	}
	if len([]rune(title)) > 500 {
		return "", InvalidArgument("title", "title is too long")
	}
	return title, nil
}

// NormalizeEstimate validates an estimate in minutes; zero means unknown.
func NormalizeEstimate(minutes int) (int, error) {
	if minutes < 0 {
		return 0, InvalidArgument("estimate_minutes", "estimate must not be negative")
	}
	return minutes, nil
}

// NormalizeTags trims, lowercases, drops empties and de-duplicates tags.
func NormalizeTags(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	slices.Sort(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
