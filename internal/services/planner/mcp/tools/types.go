package tools

// ListCreateInput represents the MCP tool input for list creation.
type ListCreateInput struct {
	List string `json:"list" jsonschema:"list name (inbox, active-now, next-action, someday, waiting, routine, checklist)"`
}

// GroupCreateInput represents the MCP tool input for group creation.
type GroupCreateInput struct {
	List string `json:"list" jsonschema:"list the group belongs to"`
	Name string `json:"name" jsonschema:"group name, unique per list ignoring case"`
}

// TaskAddInput represents the MCP tool input for adding a task.
type TaskAddInput struct {
	List            string   `json:"list,omitempty" jsonschema:"target list; required unless parent_id is set"`
	GroupID         string   `json:"group_id,omitempty" jsonschema:"optional existing group identifier"`
	GroupName       string   `json:"group_name,omitempty" jsonschema:"optional group name, created when missing (defaults to general)"`
	ParentID        string   `json:"parent_id,omitempty" jsonschema:"optional parent task identifier for a subtask"`
	Title           string   `json:"title" jsonschema:"task title"`
	Note            string   `json:"note,omitempty" jsonschema:"optional free-form note"`
	Status          string   `json:"status,omitempty" jsonschema:"task status (todo, doing, done, blocked); defaults to todo"`
	Priority        string   `json:"priority,omitempty" jsonschema:"priority (low, normal, high, critical); defaults per list"`
	EstimateMinutes int      `json:"estimate_minutes,omitempty" jsonschema:"optional estimate in minutes"`
	Tags            []string `json:"tags,omitempty" jsonschema:"optional tags"`
}

// TaskPatchInput represents the MCP tool input for task field updates.
type TaskPatchInput struct {
	TaskID          string    `json:"task_id" jsonschema:"task identifier"`
	Title           *string   `json:"title,omitempty" jsonschema:"optional new title"`
	Note            *string   `json:"note,omitempty" jsonschema:"optional new note"`
	Status          *string   `json:"status,omitempty" jsonschema:"optional status (todo, doing, done, blocked)"`
	Priority        *string   `json:"priority,omitempty" jsonschema:"optional priority (low, normal, high, critical)"`
	EstimateMinutes *int      `json:"estimate_minutes,omitempty" jsonschema:"optional estimate in minutes"`
	Tags            *[]string `json:"tags,omitempty" jsonschema:"optional replacement tag set"`
}

// TaskScheduleInput represents the MCP tool input for scheduling a task.
type TaskScheduleInput struct {
	TaskID      string `json:"task_id" jsonschema:"task identifier"`
	Intent      string `json:"intent" jsonschema:"schedule intent (unscheduled, date_only, time_window, exact_time)"`
	Date        string `json:"date,omitempty" jsonschema:"local date YYYY-MM-DD"`
	Time        string `json:"time,omitempty" jsonschema:"local time HH:MM for exact_time"`
	WindowStart string `json:"window_start,omitempty" jsonschema:"local window start HH:MM for time_window"`
	WindowEnd   string `json:"window_end,omitempty" jsonschema:"local window end HH:MM for time_window"`
}

// TaskReminderInput represents the MCP tool input for attaching a reminder.
type TaskReminderInput struct {
	TaskID  string `json:"task_id" jsonschema:"task identifier"`
	At      string `json:"at" jsonschema:"reminder instant as RFC3339 or local YYYY-MM-DD HH:MM"`
	Message string `json:"message,omitempty" jsonschema:"optional fixed reminder text"`
}

// TaskRefInput represents MCP tool input that only names a task.
type TaskRefInput struct {
	TaskID string `json:"task_id" jsonschema:"task identifier"`
}

// TaskReviewHintInput represents the MCP tool input for review hints.
type TaskReviewHintInput struct {
	TaskID string `json:"task_id" jsonschema:"task identifier"`
	At     string `json:"at,omitempty" jsonschema:"review instant as RFC3339 or local YYYY-MM-DD HH:MM"`
	Reason string `json:"reason,omitempty" jsonschema:"optional reason to revisit the task"`
	Clear  bool   `json:"clear,omitempty" jsonschema:"clear the existing hint instead of setting one"`
}

// TaskMoveInput represents the MCP tool input for moving a task.
type TaskMoveInput struct {
	TaskID    string `json:"task_id" jsonschema:"task identifier"`
	List      string `json:"list,omitempty" jsonschema:"destination list for a top-level move"`
	GroupID   string `json:"group_id,omitempty" jsonschema:"destination group identifier"`
	GroupName string `json:"group_name,omitempty" jsonschema:"destination group name, created when missing"`
	ParentID  string `json:"parent_id,omitempty" jsonschema:"destination parent task identifier"`
	Position  *int   `json:"position,omitempty" jsonschema:"optional zero-based position among siblings"`
}

// ReminderAckInput represents the MCP tool input for acknowledging a reminder.
type ReminderAckInput struct {
	ReminderID string `json:"reminder_id" jsonschema:"reminder record identifier"`
}

// SearchInput represents the MCP tool input for filtered listings.
type SearchInput struct {
	Filter string `json:"filter,omitempty" jsonschema:"optional AIP-160 filter, e.g. status = \"todo\" AND list = \"inbox\""`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum results (default and cap 200)"`
}

// ScheduleResult describes a task schedule.
type ScheduleResult struct {
	Intent      string `json:"intent" jsonschema:"schedule intent"`
	Date        string `json:"date,omitempty" jsonschema:"local date"`
	Time        string `json:"time,omitempty" jsonschema:"local time"`
	WindowStart string `json:"window_start,omitempty" jsonschema:"local window start"`
	WindowEnd   string `json:"window_end,omitempty" jsonschema:"local window end"`
}

// TaskResult represents a task in MCP tool output.
type TaskResult struct {
	ID              string         `json:"id" jsonschema:"task identifier"`
	List            string         `json:"list" jsonschema:"list name"`
	GroupID         string         `json:"group_id,omitempty" jsonschema:"group identifier for top-level tasks"`
	ParentID        string         `json:"parent_id,omitempty" jsonschema:"parent task identifier for subtasks"`
	Position        int            `json:"position" jsonschema:"zero-based sibling position"`
	Title           string         `json:"title" jsonschema:"task title"`
	Note            string         `json:"note,omitempty" jsonschema:"task note"`
	Status          string         `json:"status" jsonschema:"task status"`
	Priority        string         `json:"priority" jsonschema:"task priority"`
	EstimateMinutes int            `json:"estimate_minutes,omitempty" jsonschema:"estimate in minutes"`
	Tags            []string       `json:"tags,omitempty" jsonschema:"task tags"`
	Schedule        ScheduleResult `json:"schedule" jsonschema:"schedule intent and fields"`
	ReminderAt      string         `json:"reminder_at,omitempty" jsonschema:"RFC3339 reminder instant in the planner timezone"`
	ReminderMessage string         `json:"reminder_message,omitempty" jsonschema:"fixed reminder text"`
	ReviewAt        string         `json:"review_at,omitempty" jsonschema:"RFC3339 review hint instant"`
	ReviewReason    string         `json:"review_reason,omitempty" jsonschema:"review hint reason"`
	UpdatedAt       string         `json:"updated_at" jsonschema:"RFC3339 timestamp of the last change"`
}

// GroupResult represents a group in MCP tool output.
type GroupResult struct {
	ID   string `json:"id" jsonschema:"group identifier"`
	List string `json:"list" jsonschema:"list name"`
	Name string `json:"name" jsonschema:"group name"`
}

// ReminderResult represents a derived reminder record in MCP output.
type ReminderResult struct {
	ID            string `json:"id" jsonschema:"reminder record identifier"`
	TaskID        string `json:"task_id" jsonschema:"source task identifier"`
	FireAt        string `json:"fire_at" jsonschema:"RFC3339 reminder instant in the planner timezone"`
	Status        string `json:"status" jsonschema:"delivery status (scheduled, sent, acknowledged, canceled, failed)"`
	Priority      string `json:"priority" jsonschema:"priority copied from the task"`
	Message       string `json:"message,omitempty" jsonschema:"fixed reminder text"`
	Attempts      int    `json:"attempts" jsonschema:"delivery attempts so far"`
	NextAttemptAt string `json:"next_attempt_at,omitempty" jsonschema:"RFC3339 retry instant after a failed attempt"`
	LastError     string `json:"last_error,omitempty" jsonschema:"last delivery error"`
}

// MutationResult represents the MCP tool output of an accepted mutation.
type MutationResult struct {
	Operation string           `json:"operation" jsonschema:"operation kind"`
	List      string           `json:"list,omitempty" jsonschema:"list touched by the operation"`
	Group     *GroupResult     `json:"group,omitempty" jsonschema:"group created or used"`
	Task      *TaskResult      `json:"task,omitempty" jsonschema:"task after the change"`
	Reminder  *ReminderResult  `json:"reminder,omitempty" jsonschema:"reminder record after the change"`
	Removed   []string         `json:"removed,omitempty" jsonschema:"task identifiers removed with a delete"`
	Moved     []string         `json:"moved,omitempty" jsonschema:"task identifiers moved with a move"`
	Scheduled []ReminderResult `json:"scheduled,omitempty" jsonschema:"reminder records created or rescheduled"`
	Canceled  []ReminderResult `json:"canceled,omitempty" jsonschema:"reminder records canceled"`
	EventSeq  uint64           `json:"event_seq" jsonschema:"journal sequence after the commit"`
}

// TaskListResult represents the MCP tool output of task_list.
type TaskListResult struct {
	Tasks []TaskResult `json:"tasks,omitempty" jsonschema:"matching tasks"`
}

// ReminderListResult represents the MCP tool output of reminder_list.
type ReminderListResult struct {
	Reminders []ReminderResult `json:"reminders,omitempty" jsonschema:"matching reminder records"`
}

// PendingPayload is the plan://reminders/pending resource body.
type PendingPayload struct {
	Timezone  string           `json:"timezone"`
	Scheduled []ReminderResult `json:"scheduled"`
	Sent      []ReminderResult `json:"sent"`
}

// FailedPayload is the plan://reminders/failed resource body.
type FailedPayload struct {
	Timezone string           `json:"timezone"`
	Failed   []ReminderResult `json:"failed"`
}
