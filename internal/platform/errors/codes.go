// Package errors provides structured, code-carrying errors shared by the
// planner packages.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors, rejected before any write.
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInvalidSchedule   Code = "INVALID_SCHEDULE"
	CodeInvalidReminder   Code = "INVALID_REMINDER"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeCycle             Code = "CYCLE"

	// Lookup errors
	CodeNotFound Code = "NOT_FOUND"

	// Durable write errors
	CodePersistence Code = "PERSISTENCE"

	// Notification collaborator errors
	CodeDelivery Code = "DELIVERY"

	// Transport errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// IsValidation reports whether the code is raised before any write happens.
func (c Code) IsValidation() bool {
	switch c {
	case CodeInvalidArgument,
		CodeInvalidSchedule,
		CodeInvalidReminder,
		CodeInvalidTransition,
		CodeCycle,
		CodeNotFound:
		return true
	default:
		return false
	}
}
