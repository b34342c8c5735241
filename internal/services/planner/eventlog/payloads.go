package eventlog

import "time"

// ReminderPayload is carried by every reminder.* entry.
type ReminderPayload struct {
	ReminderID string     `json:"reminder_id"`
	TaskID     string     `json:"task_id"`
	FireAt     time.Time  `json:"fire_at"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	Overdue    bool       `json:"overdue,omitempty"`
	Redelivery bool       `json:"redelivery,omitempty"`
}

// RejectedPayload is carried by operation.rejected entries.
type RejectedPayload struct {
	Operation string `json:"operation"`
	TargetID  string `json:"target_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// ListPayload is carried by list.created entries.
type ListPayload struct {
	List string `json:"list"`
}

// GroupPayload is carried by group.created entries.
type GroupPayload struct {
	GroupID string `json:"group_id"`
	List    string `json:"list"`
	Name    string `json:"name"`
}

// TaskPayload is carried by task.* entries. It captures the task as stored
// after the change; Subtree lists every id a delete or move touched.
type TaskPayload struct {
	TaskID      string     `json:"task_id"`
	List        string     `json:"list"`
	GroupID     string     `json:"group_id"`
	ParentID    string     `json:"parent_id,omitempty"`
	Position    int        `json:"position"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Intent      string     `json:"intent"`
	Date        string     `json:"date,omitempty"`
	Time        string     `json:"time,omitempty"`
	WindowStart string     `json:"window_start,omitempty"`
	WindowEnd   string     `json:"window_end,omitempty"`
	ReminderAt  *time.Time `json:"reminder_at,omitempty"`
	ReviewAt    *time.Time `json:"review_at,omitempty"`
	Subtree     []string   `json:"subtree,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}
