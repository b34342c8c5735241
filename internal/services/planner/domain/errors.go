package domain

import (
	apperrors "github.com/louisbranch/amaya/internal/platform/errors"
)

// InvalidArgument reports a malformed operation payload.
func InvalidArgument(field, message string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, message, map[string]string{"field": field})
}

// InvalidSchedule reports a schedule intent that disagrees with its date/time fields.
func InvalidSchedule(message string) error {
	return apperrors.New(apperrors.CodeInvalidSchedule, message)
}

// InvalidReminder reports a reminder that cannot be attached to its task.
func InvalidReminder(message string) error {
	return apperrors.New(apperrors.CodeInvalidReminder, message)
}

// Cycle reports a move that would make a task its own ancestor.
func Cycle(taskID, parentID string) error {
	return apperrors.WithMetadata(apperrors.CodeCycle, "move would create a parent/child cycle", map[string]string{
		"task_id":   taskID,
		"parent_id": parentID,
	})
}

// NotFound reports an unknown entity id.
func NotFound(kind, id string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound, kind+" not found", map[string]string{
		"kind": kind,
		"id":   id,
	})
}

// InvalidTransition reports a reminder status change the state machine forbids.
func InvalidTransition(from, to ReminderStatus) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidTransition, "reminder status transition not allowed", map[string]string{
		"from": string(from),
		"to":   string(to),
	})
}

// Persistence wraps a durable write failure.
func Persistence(message string, cause error) error {
	return apperrors.Wrap(apperrors.CodePersistence, message, cause)
}

// Delivery wraps a notification collaborator failure.
func Delivery(message string, cause error) error {
	return apperrors.Wrap(apperrors.CodeDelivery, message, cause)
}
